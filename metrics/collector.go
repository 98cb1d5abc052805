// Package metrics exports topic counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/aradilov/ringbus"
)

const namespace = "ringbus"

// Snapshotter is anything that can report per-topic stats. Both the
// in-process and the shared-memory registries satisfy it.
type Snapshotter interface {
	Snapshot() []ringbus.TopicStats
}

// Collector is a prometheus.Collector that reads a fresh snapshot on every scrape.
type Collector struct {
	src Snapshotter

	published   *prometheus.Desc
	received    *prometheus.Desc
	dropped     *prometheus.Desc
	length      *prometheus.Desc
	capacity    *prometheus.Desc
	latestEpoch *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector over src. constLabels are attached to every
// series, e.g. the registry directory.
func NewCollector(src Snapshotter, constLabels prometheus.Labels) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "topic", name),
			help, []string{"topic"}, constLabels,
		)
	}
	return &Collector{
		src:         src,
		published:   desc("published_total", "Payloads published to the topic."),
		received:    desc("received_total", "Payloads consumed from the topic."),
		dropped:     desc("dropped_total", "Payloads overwritten before anyone received them."),
		length:      desc("len", "Unread payloads currently held."),
		capacity:    desc("capacity", "Ring depth of the topic."),
		latestEpoch: desc("latest_epoch", "Epoch of the most recent publish."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.published
	ch <- c.received
	ch <- c.dropped
	ch <- c.length
	ch <- c.capacity
	ch <- c.latestEpoch
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, st := range c.src.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.published, prometheus.CounterValue, float64(st.Published), st.Name)
		ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(st.Received), st.Name)
		ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(st.Dropped), st.Name)
		ch <- prometheus.MustNewConstMetric(c.length, prometheus.GaugeValue, float64(st.Len), st.Name)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(st.Capacity), st.Name)
		ch <- prometheus.MustNewConstMetric(c.latestEpoch, prometheus.GaugeValue, float64(st.LatestEpoch), st.Name)
	}
}
