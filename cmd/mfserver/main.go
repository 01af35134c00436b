// Copyright 2016 Aleksandr Demakin. All rights reserved.

// mfserver creates the message queue arena, keeps it alive until it is signalled,
// and then destroys it.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	shmq "github.com/nxgtw/go-shmq"
	"github.com/nxgtw/go-shmq/config"
	"github.com/nxgtw/go-shmq/internal/logging"
	"github.com/nxgtw/go-shmq/metrics"
	"github.com/nxgtw/go-shmq/mq"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	shutdownTimeout = 5 * time.Second
)

var (
	cfgFile     string
	logLevel    string
	logDev      bool
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "mfserver",
	Short: "Owns the shared memory message queue arena",
	Long: `mfserver creates the shared memory arena described by the config file
and keeps it until SIGINT, SIGTERM or SIGHUP is received.
The arena is destroyed on exit. Statistics can be exported in prometheus format.`,
	SilenceUsage: true,
	RunE:         runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level, logCfg.Development = logLevel, logDev
	log, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	var loader config.Loader = config.FileLoader{Path: cfgFile}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	log.Info("configuration loaded",
		zap.String("file", cfgFile),
		zap.String("name", cfg.Name),
		zap.Int("size_kb", cfg.SizeKB),
		zap.Int("max_queues", cfg.MaxQueues),
		zap.Int("max_msgs_in_queue", cfg.MaxMsgsInQueue))

	arena, err := mq.Init(cfg, mq.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		if err := arena.Destroy(); err != nil {
			log.Error("failed to destroy arena", zap.Error(err))
		}
	}()

	var srv *http.Server
	if len(metricsAddr) > 0 {
		srv = serveMetrics(arena, log)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	log.Info("server is running", zap.Int("pid", os.Getpid()))
	sig := <-sigCh
	log.Info("received signal, shutting down", zap.Stringer("signal", sig))

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}
	return nil
}

func serveMetrics(arena *mq.Arena, log *zap.Logger) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		metrics.NewCollector(arena, log),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("serving metrics", zap.String("addr", metricsAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}

func main() {
	rootCmd.Flags().StringVar(&cfgFile, "config", shmq.DefaultConfigFile, "Config file path")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().BoolVar(&logDev, "log-dev", false, "Human readable console logs")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve prometheus metrics on, e.g. :9100")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mfserver:", err)
		os.Exit(1)
	}
}
