// Copyright 2015 Aleksandr Demakin. All rights reserved.

// Package ipc_testing runs helper processes for cross-process tests.
// A helper process is the test binary itself, started with a filter, which selects
// a single helper test, and an environment variable, which enables it.
package ipc_testing

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

const (
	// HelperEnv is set in the environment of helper processes.
	HelperEnv     = "SHMQ_TEST_HELPER"
	argsSeparator = "--"
)

// AppResult is a result of a helper process launch.
type AppResult struct {
	Output string
	Err    error
}

// HelperArgs returns arguments, passed to the helper process.
// It returns false, if the current process is not a helper.
func HelperArgs() ([]string, bool) {
	if os.Getenv(HelperEnv) != "1" {
		return nil, false
	}
	for i, arg := range os.Args {
		if arg == argsSeparator {
			return os.Args[i+1:], true
		}
	}
	return nil, true
}

func startHelper(testName string, args []string) (*exec.Cmd, *bytes.Buffer, error) {
	cmdArgs := append([]string{"-test.run=^" + testName + "$", argsSeparator}, args...)
	cmd := exec.Command(os.Args[0], cmdArgs...)
	cmd.Env = append(os.Environ(), HelperEnv+"=1")
	buff := bytes.NewBuffer(nil)
	cmd.Stderr = buff
	cmd.Stdout = buff
	if err := cmd.Start(); err != nil {
		return nil, nil, errors.Wrap(err, "failed to start helper process")
	}
	return cmd, buff, nil
}

func waitForCommand(cmd *exec.Cmd, buff *bytes.Buffer) (result AppResult) {
	if result.Err = cmd.Wait(); result.Err != nil {
		if exiterr, ok := result.Err.(*exec.ExitError); ok {
			if status, ok := exiterr.Sys().(syscall.WaitStatus); ok {
				result.Err = errors.Errorf("%v, status code = %d", result.Err, status.ExitStatus())
			}
		}
	}
	result.Output = buff.String()
	return
}

// RunHelperAsync starts a helper process and returns immediately.
// To wait for the program to finish, receive on AppResult chan.
func RunHelperAsync(testName string, args ...string) <-chan AppResult {
	ch := make(chan AppResult, 1)
	if cmd, buff, err := startHelper(testName, args); err != nil {
		ch <- AppResult{Err: err}
	} else {
		go func() {
			ch <- waitForCommand(cmd, buff)
		}()
	}
	return ch
}

// WaitForAppResultChan waits for a value from ch with a timeout
func WaitForAppResultChan(ch <-chan AppResult, d time.Duration) (AppResult, bool) {
	select {
	case value := <-ch:
		return value, true
	case <-time.After(d):
		return AppResult{}, false
	}
}

// TrimOutput removes go test noise from the helper output.
func TrimOutput(output string) string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if line == "PASS" || line == "FAIL" || strings.HasPrefix(line, "ok ") || len(line) == 0 {
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
