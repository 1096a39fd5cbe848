package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the gateway's Prometheus instruments on a private
// registry so tests can scrape without touching global state.
type Metrics struct {
	registry *prometheus.Registry

	auctionsCreated   prometheus.Counter
	bidsSubmitted     prometheus.Counter
	auctionsFinalized prometheus.Counter
	requestErrors     *prometheus.CounterVec
	eventsDropped     prometheus.GaugeFunc
}

// NewMetrics builds the instrument set. droppedEvents reports the event-bus
// drop counter; pass nil to skip that gauge.
func NewMetrics(droppedEvents func() uint64) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		auctionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghostbid_auctions_created_total",
			Help: "Auctions accepted by the registry.",
		}),
		bidsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghostbid_bids_submitted_total",
			Help: "Encrypted bids admitted into ledgers.",
		}),
		auctionsFinalized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ghostbid_auctions_finalized_total",
			Help: "Auctions with a recorded winner ciphertext.",
		}),
		requestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ghostbid_request_errors_total",
			Help: "Gateway requests rejected, by HTTP status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.auctionsCreated, m.bidsSubmitted, m.auctionsFinalized, m.requestErrors)
	reg.MustRegister(collectors.NewGoCollector())

	if droppedEvents != nil {
		m.eventsDropped = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "ghostbid_events_dropped_total",
			Help: "Bus events discarded due to slow subscribers.",
		}, func() float64 { return float64(droppedEvents()) })
		reg.MustRegister(m.eventsDropped)
	}
	return m
}

// Handler serves the scrape endpoint for this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
