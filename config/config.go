// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package config loads the arena configuration from a text file and the environment.
//
// The file consists of 'KEY value' lines (KEY=value is also accepted).
// Empty lines and lines starting with '#' are skipped, unknown keys are ignored.
// Every key can be overridden by an environment variable with SHMQ_ prefix,
// for example SHMQ_SHMEM_SIZE=1024.
package config

import (
	"bufio"
	"io"
	"math/bits"
	"os"
	"strconv"
	"strings"

	shmq "github.com/nxgtw/go-shmq"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix is the prefix of the environment variables, which override file values.
	EnvPrefix = "SHMQ"

	keyName      = "SHMEM_NAME"
	keySize      = "SHMEM_SIZE"
	keyMaxMsgs   = "MAX_MSGS_IN_QUEUE"
	keyMaxQueues = "MAX_QUEUES_IN_SHMEM"
)

// Config holds the arena parameters.
type Config struct {
	// Name is the name of the shared memory object.
	Name string `envconfig:"SHMEM_NAME"`
	// SizeKB is the arena size in kilobytes.
	SizeKB int `envconfig:"SHMEM_SIZE"`
	// MaxMsgsInQueue limits the number of messages stored in a single queue.
	MaxMsgsInQueue int `envconfig:"MAX_MSGS_IN_QUEUE"`
	// MaxQueues is the number of directory slots.
	MaxQueues int `envconfig:"MAX_QUEUES_IN_SHMEM"`
}

// Loader loads configuration from some source.
type Loader interface {
	Load() (*Config, error)
}

// FileLoader loads configuration from a file, applying environment overrides.
type FileLoader struct {
	Path string
}

// Load implements Loader.
func (l FileLoader) Load() (*Config, error) {
	return Load(l.Path)
}

// Parse reads configuration lines from r. It does not validate values.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := splitLine(line)
		if !ok {
			return nil, shmq.Errorf(shmq.ErrConfig, "line %d: no value for %q", lineNo, line)
		}
		var err error
		switch key {
		case keyName:
			cfg.Name = value
		case keySize:
			cfg.SizeKB, err = parseInt(value)
		case keyMaxMsgs:
			cfg.MaxMsgsInQueue, err = parseInt(value)
		case keyMaxQueues:
			cfg.MaxQueues, err = parseInt(value)
		}
		if err != nil {
			return nil, shmq.Errorf(shmq.ErrConfig, "line %d: invalid value for %s: %v", lineNo, key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, shmq.Wrap(err, shmq.ErrConfig, "failed to read config")
	}
	return cfg, nil
}

// Load reads and validates the configuration file at path.
// Environment variables override values from the file.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, shmq.Wrap(err, shmq.ErrConfig, "failed to open config file")
	}
	defer file.Close()
	cfg, err := Parse(file)
	if err != nil {
		return nil, err
	}
	if err = cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides the values with SHMQ_* environment variables.
func (cfg *Config) ApplyEnv() error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return shmq.Wrap(err, shmq.ErrConfig, "failed to process environment")
	}
	return nil
}

// Validate checks, that all parameters are present and within the limits.
func (cfg *Config) Validate() error {
	switch {
	case len(cfg.Name) == 0:
		return shmq.Errorf(shmq.ErrConfig, "%s is missing", keyName)
	case len(cfg.Name) >= shmq.MaxNameLen:
		return shmq.Errorf(shmq.ErrConfig, "%s is too long", keyName)
	case strings.ContainsRune(cfg.Name, '/'):
		return shmq.Errorf(shmq.ErrConfig, "%s must not contain '/'", keyName)
	case cfg.SizeKB == 0:
		return shmq.Errorf(shmq.ErrConfig, "%s is missing", keySize)
	case cfg.SizeKB < shmq.MinShmemSizeKB || cfg.SizeKB > shmq.MaxShmemSizeKB:
		return shmq.Errorf(shmq.ErrConfig, "%s must be in [%d, %d], got %d",
			keySize, shmq.MinShmemSizeKB, shmq.MaxShmemSizeKB, cfg.SizeKB)
	case bits.OnesCount(uint(cfg.SizeKB)) != 1:
		return shmq.Errorf(shmq.ErrConfig, "%s must be a power of two, got %d", keySize, cfg.SizeKB)
	case cfg.MaxMsgsInQueue <= 0:
		return shmq.Errorf(shmq.ErrConfig, "%s must be positive", keyMaxMsgs)
	case cfg.MaxQueues <= 0:
		return shmq.Errorf(shmq.ErrConfig, "%s must be positive", keyMaxQueues)
	}
	return nil
}

// SizeBytes returns the arena size in bytes.
func (cfg *Config) SizeBytes() int {
	return cfg.SizeKB * shmq.KB
}

func splitLine(line string) (string, string, bool) {
	if idx := strings.IndexByte(line, '='); idx >= 0 {
		key, value := strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:])
		return key, value, len(key) > 0 && len(value) > 0
	}
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}

func parseInt(value string) (int, error) {
	return strconv.Atoi(value)
}
