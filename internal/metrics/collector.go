package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streamfold/wan-publisher/internal/wanstats"
)

const namespace = "wan_publisher"

var states = []wanstats.PublisherState{wanstats.StateReplicating, wanstats.StatePaused, wanstats.StateStopped}

// PublisherCollector exports the status of every publisher of a source on
// each scrape. Statuses are read without locking.
type PublisherCollector struct {
	source wanstats.Source

	connected      *prometheus.Desc
	queueSize      *prometheus.Desc
	publishedTotal *prometheus.Desc
	latencyTotal   *prometheus.Desc
	state          *prometheus.Desc
	sentEvents     *prometheus.Desc
}

func NewPublisherCollector(source wanstats.Source) *PublisherCollector {
	return &PublisherCollector{
		source: source,
		connected: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "connected"),
			"Whether the publisher is connected to its target",
			[]string{"publisher"}, nil,
		),
		queueSize: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "outbound_queue_size"),
			"Number of events waiting in the outbound queue",
			[]string{"publisher"}, nil,
		),
		publishedTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "published_events_total"),
			"Total number of events published to the target",
			[]string{"publisher"}, nil,
		),
		latencyTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "publish_latency_milliseconds_total"),
			"Sum of the publish latencies of all published events",
			[]string{"publisher"}, nil,
		),
		state: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "state"),
			"Lifecycle state of the publisher, 1 for the current state",
			[]string{"publisher", "state"}, nil,
		),
		sentEvents: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sent_events_total"),
			"Events sent per replicated map or cache",
			[]string{"publisher", "object_type", "object", "kind"}, nil,
		),
	}
}

func (c *PublisherCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connected
	ch <- c.queueSize
	ch <- c.publishedTotal
	ch <- c.latencyTotal
	ch <- c.state
	ch <- c.sentEvents
}

func (c *PublisherCollector) Collect(ch chan<- prometheus.Metric) {
	statuses := c.source.Statuses()

	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		snap := statuses[name].Snapshot()

		connected := 0.0
		if snap.Connected {
			connected = 1
		}
		ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, connected, name)
		ch <- prometheus.MustNewConstMetric(c.queueSize, prometheus.GaugeValue, float64(snap.OutboundQueueSize), name)
		ch <- prometheus.MustNewConstMetric(c.publishedTotal, prometheus.CounterValue, float64(snap.TotalPublishedEventCount), name)
		ch <- prometheus.MustNewConstMetric(c.latencyTotal, prometheus.CounterValue, float64(snap.TotalPublishLatency), name)

		for _, st := range states {
			v := 0.0
			if st == snap.State {
				v = 1
			}
			ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, v, name, st.String())
		}

		c.collectCounters(ch, name, "map", snap.SentMapEventCounters)
		c.collectCounters(ch, name, "cache", snap.SentCacheEventCounters)
	}
}

func (c *PublisherCollector) collectCounters(ch chan<- prometheus.Metric, publisher, objectType string, counters map[string]*wanstats.EventCounters) {
	for object, ec := range counters {
		snap := ec.Snapshot()
		for kind, v := range map[string]uint64{
			"sync":    snap.SyncCount,
			"update":  snap.UpdateCount,
			"remove":  snap.RemoveCount,
			"dropped": snap.DroppedCount,
		} {
			ch <- prometheus.MustNewConstMetric(c.sentEvents, prometheus.CounterValue, float64(v), publisher, objectType, object, kind)
		}
	}
}

// NewRegistry returns a registry holding the publisher collector and the
// standard process and Go collectors.
func NewRegistry(source wanstats.Source) *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(NewPublisherCollector(source))
	r.MustRegister(collectors.NewGoCollector())
	r.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return r
}
