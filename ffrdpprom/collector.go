// Package ffrdpprom exposes FFRDP endpoint statistics as prometheus metrics.
// Endpoints are registered on a Collector, which snapshots their counters on
// every scrape.
package ffrdpprom

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/asdlei99/ffrdp"
)

type info struct {
	description *prometheus.Desc
	supplier    func(s ffrdp.Stats, labelValues []string) prometheus.Metric
}

// Collector implements prometheus.Collector over a set of live endpoints.
// Label names are fixed at construction; values are supplied when adding an
// endpoint, so one collector can serve many sessions.
type Collector struct {
	mu        sync.Mutex
	endpoints map[*ffrdp.Endpoint][]string
	infos     []info
}

// NewCollector returns a collector publishing under prefix (e.g. "ffrdp").
// endpointLabels are known up front; values are provided per Add call.
// constLabels is meant for labels whose values are constant for the whole
// process.
func NewCollector(prefix string, endpointLabels []string, constLabels prometheus.Labels) *Collector {
	c := &Collector{
		endpoints: make(map[*ffrdp.Endpoint][]string),
	}
	c.addMetrics(prefix, endpointLabels, constLabels)
	return c
}

// Add registers an endpoint with its label values. The endpoint is scraped
// until Remove is called; closing an endpoint without removing it yields
// frozen final values, which is usually what dashboards want during
// teardown.
func (c *Collector) Add(e *ffrdp.Endpoint, labelValues []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endpoints[e] = labelValues
}

// Remove unregisters an endpoint.
func (c *Collector) Remove(e *ffrdp.Endpoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.endpoints, e)
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	for _, info := range c.infos {
		descs <- info.description
	}
}

func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for e, labels := range c.endpoints {
		s := e.Stats()
		for _, info := range c.infos {
			metrics <- info.supplier(s, labels)
		}
	}
}

func (c *Collector) addMetrics(prefix string, labels []string, constLabels prometheus.Labels) {
	gauge := func(name, help string, value func(ffrdp.Stats) float64) info {
		desc := prometheus.NewDesc(prefix+"_"+name, help, labels, constLabels)
		return info{
			description: desc,
			supplier: func(s ffrdp.Stats, lv []string) prometheus.Metric {
				m, _ := prometheus.NewConstMetric(desc, prometheus.GaugeValue, value(s), lv...)
				return m
			},
		}
	}
	counter := func(name, help string, value func(ffrdp.Stats) float64) info {
		desc := prometheus.NewDesc(prefix+"_"+name, help, labels, constLabels)
		return info{
			description: desc,
			supplier: func(s ffrdp.Stats, lv []string) prometheus.Metric {
				m, _ := prometheus.NewConstMetric(desc, prometheus.CounterValue, value(s), lv...)
				return m
			},
		}
	}
	c.infos = []info{
		gauge("rtt_smoothed_ms", "Smoothed round-trip time estimate.", func(s ffrdp.Stats) float64 { return float64(s.RTTSmoothed) }),
		gauge("rtt_deviation_ms", "Round-trip time deviation estimate.", func(s ffrdp.Stats) float64 { return float64(s.RTTDeviation) }),
		gauge("rto_ms", "Current retransmission timeout.", func(s ffrdp.Stats) float64 { return float64(s.RTO) }),
		gauge("peer_window_bytes", "Receive window last advertised by the peer.", func(s ffrdp.Stats) float64 { return float64(s.RecvWindow) }),
		gauge("wait_send_frames", "Frames queued and not yet acknowledged.", func(s ffrdp.Stats) float64 { return float64(s.WaitSend) }),
		gauge("recv_buffered_bytes", "Delivered bytes not yet read by the application.", func(s ffrdp.Stats) float64 { return float64(s.Buffered) }),
		counter("send_first_total", "Frames transmitted for the first time.", func(s ffrdp.Stats) float64 { return float64(s.SendFirst) }),
		counter("send_failed_total", "Writes refused by admission control.", func(s ffrdp.Stats) float64 { return float64(s.SendFailed) }),
		counter("resend_rto_total", "Retransmissions due to timeout.", func(s ffrdp.Stats) float64 { return float64(s.ResendRTO) }),
		counter("resend_fast_total", "Fast retransmissions inferred from selective ACKs.", func(s ffrdp.Stats) float64 { return float64(s.ResendFast) }),
		counter("query_rwin_total", "Window probes emitted.", func(s ffrdp.Stats) float64 { return float64(s.QueryRwin) }),
		counter("fec_recovered_total", "Frames reconstructed from XOR parity.", func(s ffrdp.Stats) float64 { return float64(s.FEC.Recovered) }),
		counter("fec_failed_total", "FEC groups with more than one frame missing.", func(s ffrdp.Stats) float64 { return float64(s.FEC.Failed) }),
	}
}
