// Copyright 2016 Aleksandr Demakin. All rights reserved.

// mfctl is a command line client of the shared memory message queues.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	shmq "github.com/nxgtw/go-shmq"
	"github.com/nxgtw/go-shmq/config"
	"github.com/nxgtw/go-shmq/internal/logging"
	"github.com/nxgtw/go-shmq/mq"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile   string
	arenaName string
	logLevel  string

	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "mfctl",
	Short: "Manage and use shared memory message queues",
	Long: `mfctl attaches to an arena, created by mfserver, and manages its queues.
The arena name is taken from --arena, or from the config file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logCfg := logging.DefaultConfig()
		logCfg.Level, logCfg.Development = logLevel, true
		log, err = logging.New(logCfg)
		return err
	},
}

// resolveArenaName returns the name of the arena to attach to.
func resolveArenaName() (string, error) {
	if len(arenaName) > 0 {
		return arenaName, nil
	}
	cfg, err := config.FileLoader{Path: cfgFile}.Load()
	if err != nil {
		return "", err
	}
	return cfg.Name, nil
}

// withArena attaches to the arena, runs f, and detaches.
func withArena(f func(arena *mq.Arena) error) error {
	name, err := resolveArenaName()
	if err != nil {
		return err
	}
	arena, err := mq.Connect(name, mq.WithLogger(log))
	if err != nil {
		return err
	}
	defer arena.Disconnect()
	return f(arena)
}

// withQueue opens the queue, runs f, and closes the queue.
func withQueue(name string, f func(arena *mq.Arena, h mq.Handle) error) error {
	return withArena(func(arena *mq.Arena) error {
		h, err := arena.OpenQueue(name)
		if err != nil {
			return err
		}
		defer arena.CloseQueue(h)
		return f(arena, h)
	})
}

// interruptContext returns a context, which is cancelled on SIGINT or SIGTERM,
// so that blocked queue operations return and deferred cleanup runs.
// A non-negative timeout also limits the context.
func interruptContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if timeout < 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", shmq.DefaultConfigFile, "Config file path")
	rootCmd.PersistentFlags().StringVar(&arenaName, "arena", "", "Arena name (default: SHMEM_NAME from the config file)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.AddCommand(
		newCreateCmd(),
		newRemoveCmd(),
		newSendCmd(),
		newRecvCmd(),
		newPurgeCmd(),
		newPrintCmd(),
		newDumpCmd(),
		newDestroyCmd(),
		newFlowCmd(),
	)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "mfctl:", err)
		os.Exit(1)
	}
}
