// Copyright 2016 Aleksandr Demakin. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	shmq "github.com/nxgtw/go-shmq"
	"github.com/nxgtw/go-shmq/mq"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create NAME SIZE_KB",
		Short: "Create a queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sizeKB, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrap(err, "invalid queue size")
			}
			return withArena(func(arena *mq.Arena) error {
				return arena.CreateQueue(args[0], sizeKB)
			})
		},
	}
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArena(func(arena *mq.Arena) error {
				return arena.RemoveQueue(args[0])
			})
		},
	}
}

func newSendCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "send NAME MESSAGE",
		Short: "Send a message to a queue",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(args[0], func(arena *mq.Arena, h mq.Handle) error {
				if timeout == 0 {
					return arena.SendTimeout(h, []byte(args[1]), 0)
				}
				ctx, cancel := interruptContext(timeout)
				defer cancel()
				return arena.SendContext(ctx, h, []byte(args[1]))
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", -1, "Max time to wait for free space, negative to wait until interrupted")
	return cmd
}

func newRecvCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "recv NAME",
		Short: "Receive a message from a queue and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(args[0], func(arena *mq.Arena, h mq.Handle) error {
				buf := make([]byte, shmq.MaxDataLen)
				var n int
				var err error
				if timeout == 0 {
					n, err = arena.RecvTimeout(h, buf, 0)
				} else {
					ctx, cancel := interruptContext(timeout)
					defer cancel()
					n, err = arena.RecvContext(ctx, h, buf)
				}
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", buf[:n])
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", -1, "Max time to wait for a message, negative to wait until interrupted")
	return cmd
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge NAME",
		Short: "Drop all messages of a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(args[0], func(arena *mq.Arena, h mq.Handle) error {
				n, err := arena.Purge(h)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d messages dropped\n", n)
				return err
			})
		},
	}
}

func newPrintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Print arena and queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArena(func(arena *mq.Arena) error {
				return arena.Print(cmd.OutOrStdout())
			})
		},
	}
}

func newDumpCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Write raw arena memory to a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, err := os.Create(out)
			if err != nil {
				return errors.Wrap(err, "failed to create dump file")
			}
			defer file.Close()
			return withArena(func(arena *mq.Arena) error {
				n, err := arena.Dump(file)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d bytes written to %s\n", n, out)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "arena.dump", "Output file")
	return cmd
}

func newDestroyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "destroy",
		Short: "Remove the arena object, left by a crashed server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := resolveArenaName()
			if err != nil {
				return err
			}
			return mq.DestroyArena(name)
		},
	}
}
