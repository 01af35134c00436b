// Copyright 2016 Aleksandr Demakin. All rights reserved.

package mq

import (
	"fmt"
	"io"
	"text/tabwriter"

	shmq "github.com/nxgtw/go-shmq"
	"github.com/nxgtw/go-shmq/mmf"

	"github.com/pkg/errors"
)

// Print writes a human readable description of the arena and its queues to w.
func (a *Arena) Print(w io.Writer) error {
	info, err := a.Info()
	if err != nil {
		return err
	}
	queues, err := a.Queues()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "arena %q id=%s created=%s\n", info.Name, info.ID, info.Created.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "size=%d KB queues=%d/%d max_msgs=%d attached=%d pages=%d/%d free\n",
		info.Size/shmq.KB, info.QueueCount, info.MaxQueues, info.MaxMsgsInQueue, info.Attached,
		info.FreePages, info.HeapPages)
	if len(queues) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLOT\tNAME\tSIZE\tUSED\tMSGS\tREFS\tSENT\tRECEIVED")
	for _, q := range queues {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\n",
			q.Slot, q.Name, q.Capacity, q.Used, q.Frames, q.RefCount, q.Sent, q.Received)
	}
	return errors.Wrap(tw.Flush(), "failed to print queues")
}

// Dump writes raw arena memory to w.
func (a *Arena) Dump(w io.Writer) (int64, error) {
	if err := a.enter(); err != nil {
		return 0, err
	}
	defer a.leave()
	n, err := io.Copy(w, mmf.NewMemoryRegionReader(a.region))
	return n, errors.Wrap(err, "failed to dump arena")
}
