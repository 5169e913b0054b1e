// Package metrics holds the Prometheus collectors exported by jsonpoll pollers.
//
// Collectors are vectors labelled by target URL so that several pollers can
// register against the same registry; registering twice reuses the collector
// that is already there.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "jsonpoll"

// Metrics is the set of collectors registered with one registry.
type Metrics struct {
	ticks         *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	connections   *prometheus.CounterVec
	running       *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	ticks, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Poll ticks by outcome.",
	}, []string{"url", "outcome"}))
	if err != nil {
		return nil, err
	}

	fetchDuration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fetch_duration_seconds",
		Help:      "Time from tick start until the response was decoded or the tick failed.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"url"}))
	if err != nil {
		return nil, err
	}

	connections, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_total",
		Help:      "Connections obtained by the transport, split by whether they were reused from the pool.",
	}, []string{"url", "reused"}))
	if err != nil {
		return nil, err
	}

	running, err := register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "running",
		Help:      "1 while the poll loop for the URL is running.",
	}, []string{"url"}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ticks:         ticks,
		fetchDuration: fetchDuration,
		connections:   connections,
		running:       running,
	}, nil
}

// register registers c, or returns the equivalent collector already present.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// ForURL returns the observers for a single poller.
func (m *Metrics) ForURL(url string) *Poller {
	return &Poller{
		url:     url,
		metrics: m,
	}
}

// Poller records observations for one URL. A nil *Poller discards them.
type Poller struct {
	url     string
	metrics *Metrics
}

// ObserveTick records the outcome and duration of a tick.
func (p *Poller) ObserveTick(outcome string, elapsed time.Duration) {
	if p == nil {
		return
	}
	p.metrics.ticks.WithLabelValues(p.url, outcome).Inc()
	p.metrics.fetchDuration.WithLabelValues(p.url).Observe(elapsed.Seconds())
}

// ObserveConn records how the transport obtained a connection.
func (p *Poller) ObserveConn(reused bool) {
	if p == nil {
		return
	}
	p.metrics.connections.WithLabelValues(p.url, strconv.FormatBool(reused)).Inc()
}

// SetRunning flips the running gauge.
func (p *Poller) SetRunning(running bool) {
	if p == nil {
		return
	}
	v := 0.0
	if running {
		v = 1
	}
	p.metrics.running.WithLabelValues(p.url).Set(v)
}
