// Copyright 2016 Aleksandr Demakin. All rights reserved.

package main

import (
	"bytes"
	"context"
	"fmt"
	"math/rand"
	"time"

	shmq "github.com/nxgtw/go-shmq"
	"github.com/nxgtw/go-shmq/mq"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type flowParams struct {
	queues   int
	messages int
	sizeKB   int
	timeout  time.Duration
}

func newFlowCmd() *cobra.Command {
	var p flowParams
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Run producer/consumer pairs over temporary queues and verify messages",
		Long: `flow creates the given number of queues. For every queue a producer sends
messages of random length, and a consumer receives and verifies them.
Producers and consumers use separate attachments, as different processes do.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, err := resolveArenaName()
			if err != nil {
				return err
			}
			start := time.Now()
			if err := runFlow(cmd.Context(), name, p); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d messages transferred over %d queues in %v\n",
				p.messages*p.queues, p.queues, time.Since(start))
			return err
		},
	}
	cmd.Flags().IntVar(&p.queues, "queues", 2, "Number of queues")
	cmd.Flags().IntVar(&p.messages, "messages", 1000, "Messages per queue")
	cmd.Flags().IntVar(&p.sizeKB, "size", shmq.MinQueueSizeKB, "Queue size, KB")
	cmd.Flags().DurationVar(&p.timeout, "timeout", time.Minute, "Time limit of the whole run")
	return cmd
}

func flowQueueName(i int) string {
	return fmt.Sprintf("mfctl-flow-%d", i)
}

// flowMessage fills buf with the content of the i'th message of a queue.
func flowMessage(buf []byte, queue, i int) []byte {
	for j := range buf {
		buf[j] = byte(queue*31 + i + j)
	}
	return buf
}

func runFlow(ctx context.Context, arenaName string, p flowParams) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	admin, err := mq.Connect(arenaName, mq.WithLogger(log))
	if err != nil {
		return err
	}
	defer admin.Disconnect()
	for i := 0; i < p.queues; i++ {
		if err := admin.CreateQueue(flowQueueName(i), p.sizeKB); err != nil {
			return err
		}
		defer removeFlowQueue(admin, flowQueueName(i))
	}
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.queues; i++ {
		g.Go(func() error {
			return flowProducer(ctx, arenaName, i, p.messages)
		})
		g.Go(func() error {
			return flowConsumer(ctx, arenaName, i, p.messages)
		})
	}
	return g.Wait()
}

// removeFlowQueue removes a temporary queue, logging a failure.
func removeFlowQueue(arena *mq.Arena, name string) {
	if err := arena.RemoveQueue(name); err != nil {
		log.Warn("failed to remove flow queue", zap.String("queue", name), zap.Error(err))
	}
}

func flowAttach(arenaName string, queue int) (*mq.Arena, mq.Handle, error) {
	arena, err := mq.Connect(arenaName, mq.WithLogger(log))
	if err != nil {
		return nil, 0, err
	}
	h, err := arena.OpenQueue(flowQueueName(queue))
	if err != nil {
		arena.Disconnect()
		return nil, 0, err
	}
	return arena, h, nil
}

func flowProducer(ctx context.Context, arenaName string, queue, messages int) error {
	arena, h, err := flowAttach(arenaName, queue)
	if err != nil {
		return err
	}
	defer arena.Disconnect()
	defer arena.CloseQueue(h)
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	buf := make([]byte, shmq.MaxDataLen)
	for i := 0; i < messages; i++ {
		n := shmq.MinDataLen + rnd.Intn(shmq.MaxDataLen-shmq.MinDataLen+1)
		if err := arena.SendContext(ctx, h, flowMessage(buf[:n], queue, i)); err != nil {
			return errors.Wrapf(err, "queue %d: failed to send message %d", queue, i)
		}
		log.Debug("message sent", zap.Int("queue", queue), zap.Int("len", n))
	}
	return nil
}

func flowConsumer(ctx context.Context, arenaName string, queue, messages int) error {
	arena, h, err := flowAttach(arenaName, queue)
	if err != nil {
		return err
	}
	defer arena.Disconnect()
	defer arena.CloseQueue(h)
	buf := make([]byte, shmq.MaxDataLen)
	expected := make([]byte, shmq.MaxDataLen)
	for i := 0; i < messages; i++ {
		n, err := arena.RecvContext(ctx, h, buf)
		if err != nil {
			return errors.Wrapf(err, "queue %d: failed to receive message %d", queue, i)
		}
		if !bytes.Equal(buf[:n], flowMessage(expected[:n], queue, i)) {
			return errors.Errorf("queue %d: message %d is corrupted", queue, i)
		}
		log.Debug("message received", zap.Int("queue", queue), zap.Int("len", n))
	}
	return nil
}
