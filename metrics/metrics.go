// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package metrics exports arena and queue statistics as prometheus metrics.
package metrics

import (
	"github.com/nxgtw/go-shmq/mq"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const namespace = "shmq"

// Source provides arena statistics. *mq.Arena implements it.
type Source interface {
	Info() (mq.Info, error)
	Queues() ([]mq.QueueInfo, error)
}

var (
	_ prometheus.Collector = (*Collector)(nil)
	_ Source               = (*mq.Arena)(nil)
)

// Collector is a prometheus collector, which reads the statistics on every scrape.
type Collector struct {
	src Source
	log *zap.Logger

	queues     *prometheus.Desc
	queueMax   *prometheus.Desc
	attached   *prometheus.Desc
	freePages  *prometheus.Desc
	capacity   *prometheus.Desc
	used       *prometheus.Desc
	frames     *prometheus.Desc
	refs       *prometheus.Desc
	sent       *prometheus.Desc
	received   *prometheus.Desc
	scrapeErrs prometheus.Counter
}

// NewCollector returns a collector for the source. log may be nil.
func NewCollector(src Source, log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	queueLabels := []string{"queue"}
	return &Collector{
		src:       src,
		log:       log,
		queues:    prometheus.NewDesc(namespace+"_queues", "Number of queues in the arena.", nil, nil),
		queueMax:  prometheus.NewDesc(namespace+"_queue_max", "Size of the queue directory.", nil, nil),
		attached:  prometheus.NewDesc(namespace+"_attachments", "Number of processes attached to the arena.", nil, nil),
		freePages: prometheus.NewDesc(namespace+"_free_pages", "Number of unallocated buffer pages.", nil, nil),
		capacity:  prometheus.NewDesc(namespace+"_queue_capacity_bytes", "Queue buffer size.", queueLabels, nil),
		used:      prometheus.NewDesc(namespace+"_queue_used_bytes", "Bytes occupied by queued messages.", queueLabels, nil),
		frames:    prometheus.NewDesc(namespace+"_queue_frames", "Number of messages ready to be received.", queueLabels, nil),
		refs:      prometheus.NewDesc(namespace+"_queue_refs", "Number of open handles of the queue.", queueLabels, nil),
		sent:      prometheus.NewDesc(namespace+"_queue_sent_total", "Messages sent to the queue.", queueLabels, nil),
		received:  prometheus.NewDesc(namespace+"_queue_received_total", "Messages received from the queue.", queueLabels, nil),
		scrapeErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_errors_total",
			Help:      "Number of failed arena reads.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range []*prometheus.Desc{
		c.queues, c.queueMax, c.attached, c.freePages,
		c.capacity, c.used, c.frames, c.refs, c.sent, c.received,
	} {
		ch <- desc
	}
	c.scrapeErrs.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	defer c.scrapeErrs.Collect(ch)
	info, err := c.src.Info()
	if err != nil {
		c.failed(err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.queues, prometheus.GaugeValue, float64(info.QueueCount))
	ch <- prometheus.MustNewConstMetric(c.queueMax, prometheus.GaugeValue, float64(info.MaxQueues))
	ch <- prometheus.MustNewConstMetric(c.attached, prometheus.GaugeValue, float64(info.Attached))
	ch <- prometheus.MustNewConstMetric(c.freePages, prometheus.GaugeValue, float64(info.FreePages))
	queues, err := c.src.Queues()
	if err != nil {
		c.failed(err)
		return
	}
	for _, q := range queues {
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(q.Capacity), q.Name)
		ch <- prometheus.MustNewConstMetric(c.used, prometheus.GaugeValue, float64(q.Used), q.Name)
		ch <- prometheus.MustNewConstMetric(c.frames, prometheus.GaugeValue, float64(q.Frames), q.Name)
		ch <- prometheus.MustNewConstMetric(c.refs, prometheus.GaugeValue, float64(q.RefCount), q.Name)
		ch <- prometheus.MustNewConstMetric(c.sent, prometheus.CounterValue, float64(q.Sent), q.Name)
		ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(q.Received), q.Name)
	}
}

func (c *Collector) failed(err error) {
	c.scrapeErrs.Inc()
	c.log.Warn("failed to read arena statistics", zap.Error(err))
}
