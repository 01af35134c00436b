// Copyright 2016 Aleksandr Demakin. All rights reserved.

package metrics

import (
	"testing"

	shmq "github.com/nxgtw/go-shmq"
	"github.com/nxgtw/go-shmq/mq"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	info   mq.Info
	queues []mq.QueueInfo
	err    error
}

func (s *fakeSource) Info() (mq.Info, error) {
	return s.info, s.err
}

func (s *fakeSource) Queues() ([]mq.QueueInfo, error) {
	return s.queues, s.err
}

func gather(t *testing.T, c *Collector) map[string][]float64 {
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
	families, err := reg.Gather()
	require.NoError(t, err)
	result := make(map[string][]float64)
	for _, family := range families {
		for _, m := range family.GetMetric() {
			var value float64
			if m.GetGauge() != nil {
				value = m.GetGauge().GetValue()
			} else {
				value = m.GetCounter().GetValue()
			}
			result[family.GetName()] = append(result[family.GetName()], value)
		}
	}
	return result
}

func TestCollector(t *testing.T) {
	a := assert.New(t)
	src := &fakeSource{
		info: mq.Info{QueueCount: 2, MaxQueues: 8, Attached: 3, FreePages: 10},
		queues: []mq.QueueInfo{
			{Name: "a", Capacity: 16384, Used: 104, Frames: 1, RefCount: 2, Sent: 5, Received: 4},
			{Name: "b", Capacity: 32768},
		},
	}
	values := gather(t, NewCollector(src, nil))
	a.Equal([]float64{2}, values["shmq_queues"])
	a.Equal([]float64{8}, values["shmq_queue_max"])
	a.Equal([]float64{3}, values["shmq_attachments"])
	a.Equal([]float64{10}, values["shmq_free_pages"])
	a.Equal([]float64{16384, 32768}, values["shmq_queue_capacity_bytes"])
	a.Equal([]float64{104, 0}, values["shmq_queue_used_bytes"])
	a.Equal([]float64{5, 0}, values["shmq_queue_sent_total"])
	a.Equal([]float64{4, 0}, values["shmq_queue_received_total"])
	a.Equal([]float64{0}, values["shmq_scrape_errors_total"])
}

func TestCollectorError(t *testing.T) {
	a := assert.New(t)
	src := &fakeSource{err: shmq.Errorf(shmq.ErrResource, "arena is detached")}
	values := gather(t, NewCollector(src, nil))
	a.Equal([]float64{1}, values["shmq_scrape_errors_total"])
	a.NotContains(values, "shmq_queues")
}
