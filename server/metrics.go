package server

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/blockberries/stf"
	"github.com/blockberries/stf/types"
)

// Metrics holds the server's prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	height     prometheus.Gauge
	blocks     *prometheus.CounterVec
	extrinsics *prometheus.CounterVec
	verdicts   *prometheus.CounterVec
	halts      *prometheus.CounterVec
	blockBytes prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		height: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stf_committed_height",
			Help: "Number of the last committed block.",
		}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stf_blocks_total",
			Help: "Blocks committed, by how they were produced.",
		}, []string{"source"}),
		extrinsics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stf_extrinsics_total",
			Help: "Extrinsics offered to ApplyExtrinsic, by result.",
		}, []string{"result"}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stf_validations_total",
			Help: "Transaction validity verdicts, by kind.",
		}, []string{"kind"}),
		halts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stf_halts_total",
			Help: "Fatal faults, by kind.",
		}, []string{"kind"}),
		blockBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stf_block_extrinsics_bytes",
			Help:    "Encoded extrinsic bytes per imported block.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}),
	}
	reg.MustRegister(m.height, m.blocks, m.extrinsics, m.verdicts,
		m.halts, m.blockBytes)
	return m
}

func (m *Metrics) committed(h types.Header, source string) {
	if m == nil {
		return
	}
	m.height.Set(float64(h.Number))
	m.blocks.WithLabelValues(source).Inc()
}

func (m *Metrics) imported(b types.Block) {
	if m == nil {
		return
	}
	var n int
	for _, xt := range b.Extrinsics {
		n += len(xt)
	}
	m.blockBytes.Observe(float64(n))
}

func (m *Metrics) applied(outcome types.ApplyOutcome, err error) {
	if m == nil {
		return
	}
	result := "success"
	var applyErr types.ApplyError
	switch {
	case errors.As(err, &applyErr):
		result = applyErr.String()
	case err != nil:
		return
	case !outcome.OK():
		result = "fail"
	}
	m.extrinsics.WithLabelValues(result).Inc()
}

func (m *Metrics) validated(v types.TransactionValidity) {
	if m == nil {
		return
	}
	m.verdicts.WithLabelValues(v.Kind.String()).Inc()
}

func (m *Metrics) halted(err error) {
	if m == nil {
		return
	}
	kind := stf.FaultUnknown
	if h, ok := stf.IsHalt(err); ok {
		kind = h.Kind
	}
	m.halts.WithLabelValues(kind.String()).Inc()
}

// Height returns the committed height gauge.
func (m *Metrics) Height() prometheus.Gauge { return m.height }

// Extrinsics returns the ApplyExtrinsic counter for result: "success",
// "fail" or an ApplyError name.
func (m *Metrics) Extrinsics(result string) prometheus.Counter {
	return m.extrinsics.WithLabelValues(result)
}

// Validations returns the verdict counter for kind.
func (m *Metrics) Validations(kind types.ValidityKind) prometheus.Counter {
	return m.verdicts.WithLabelValues(kind.String())
}

// Halts returns the fatal fault counter for kind.
func (m *Metrics) Halts(kind stf.FaultKind) prometheus.Counter {
	return m.halts.WithLabelValues(kind.String())
}
