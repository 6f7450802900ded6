package cellular

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/modemlink/cellular/pktio"
)

// Collector exposes the packet engine counters as prometheus metrics.
// Register it with a prometheus.Registerer; one collector serves one
// context.
type Collector struct {
	ctx   *Context
	infos []collectorInfo
}

type collectorInfo struct {
	desc     *prometheus.Desc
	supplier func(s pktio.Stats) float64
}

// NewCollector creates a collector over the context's engine counters.
// prefix namespaces the metric names, e.g. "cellular".
func NewCollector(ctx *Context, prefix string) *Collector {
	labels := prometheus.Labels{"modem": ctx.id.String()}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prefix+"_"+name, help, nil, labels)
	}
	return &Collector{
		ctx: ctx,
		infos: []collectorInfo{
			{desc("bytes_read_total", "Bytes read from the comm interface."),
				func(s pktio.Stats) float64 { return float64(s.BytesRead) }},
			{desc("lines_framed_total", "Complete lines framed by the receiver."),
				func(s pktio.Stats) float64 { return float64(s.LinesFramed) }},
			{desc("urcs_dispatched_total", "Unsolicited result codes dispatched."),
				func(s pktio.Stats) float64 { return float64(s.URCsDispatched) }},
			{desc("undefined_lines_total", "Lines no classification accounted for."),
				func(s pktio.Stats) float64 { return float64(s.UndefinedLines) }},
			{desc("commands_complete_total", "Commands terminated by the modem."),
				func(s pktio.Stats) float64 { return float64(s.CommandsComplete) }},
			{desc("command_timeouts_total", "Commands abandoned on timeout."),
				func(s pktio.Stats) float64 { return float64(s.CommandTimeouts) }},
			{desc("buffers_discarded_total", "Receive buffers discarded as unparseable."),
				func(s pktio.Stats) float64 { return float64(s.BuffersDiscarded) }},
		},
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	for _, info := range c.infos {
		descs <- info.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	s := c.ctx.Stats()
	for _, info := range c.infos {
		metrics <- prometheus.MustNewConstMetric(info.desc, prometheus.CounterValue, info.supplier(s))
	}
}
