package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Prom is a Provider backed by github.com/prometheus/client_golang.
// Every Counter/Gauge/Histogram call creates a new instrument and
// registers it against the given registerer with MustRegister, so asking
// twice for the same name panics (pass prometheus.DefaultRegisterer to
// expose them on the process-wide /metrics endpoint).
type Prom struct {
	reg prometheus.Registerer
}

// NewProm constructs a Prom provider registering instruments against reg.
func NewProm(reg prometheus.Registerer) *Prom {
	return &Prom{reg: reg}
}

func (p *Prom) Counter(name, help string) Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help})
	p.reg.MustRegister(c)
	return promCounter{c}
}

func (p *Prom) Gauge(name, help string) Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	p.reg.MustRegister(g)
	return promGauge{g}
}

func (p *Prom) Histogram(name, help string) Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    name,
		Help:    help,
		Buckets: prometheus.DefBuckets,
	})
	p.reg.MustRegister(h)
	return promHistogram{h}
}

type promCounter struct{ c prometheus.Counter }

func (p promCounter) Inc()          { p.c.Inc() }
func (p promCounter) Add(n float64) { p.c.Add(n) }

type promGauge struct{ g prometheus.Gauge }

func (p promGauge) Set(v float64) { p.g.Set(v) }
func (p promGauge) Inc()          { p.g.Inc() }
func (p promGauge) Dec()          { p.g.Dec() }

type promHistogram struct{ h prometheus.Histogram }

func (p promHistogram) Observe(v float64) { p.h.Observe(v) }
