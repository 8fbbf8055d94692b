package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains all driver-level metrics
type Metrics struct {
	// Connection metrics
	FramesReceived  *prometheus.CounterVec
	FramesDropped   prometheus.Counter
	QueriesSent     *prometheus.CounterVec
	WriteErrors     prometheus.Counter
	ReconnectsTotal prometheus.Counter
	Connected       prometheus.Gauge

	// Cursor metrics
	CursorsActive    prometheus.Gauge
	CursorsOpened    prometheus.Counter
	CursorsClosed    *prometheus.CounterVec
	Deliveries       *prometheus.CounterVec
	DeliveryDuration *prometheus.HistogramVec
	HandlerFaults    prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all driver metrics
func NewMetrics() *Metrics {
	return &Metrics{
		FramesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "querystream",
				Subsystem: "connection",
				Name:      "frames_received_total",
				Help:      "Total number of response frames received by type",
			},
			[]string{"type"},
		),

		FramesDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "querystream",
				Subsystem: "connection",
				Name:      "frames_dropped_total",
				Help:      "Total number of frames dropped because no cursor was registered for the token",
			},
		),

		QueriesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "querystream",
				Subsystem: "connection",
				Name:      "queries_sent_total",
				Help:      "Total number of query frames dispatched by type",
			},
			[]string{"type"},
		),

		WriteErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "querystream",
				Subsystem: "connection",
				Name:      "write_errors_total",
				Help:      "Total number of transport write failures",
			},
		),

		ReconnectsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "querystream",
				Subsystem: "connection",
				Name:      "reconnects_total",
				Help:      "Total number of reconnect attempts",
			},
		),

		Connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "querystream",
				Subsystem: "connection",
				Name:      "connected",
				Help:      "Connection status (0=closed, 1=open)",
			},
		),

		CursorsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "querystream",
				Subsystem: "cursor",
				Name:      "active",
				Help:      "Number of cursors currently registered",
			},
		),

		CursorsOpened: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "querystream",
				Subsystem: "cursor",
				Name:      "opened_total",
				Help:      "Total number of cursors opened",
			},
		),

		CursorsClosed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "querystream",
				Subsystem: "cursor",
				Name:      "closed_total",
				Help:      "Total number of cursors closed by reason",
			},
			[]string{"reason"},
		),

		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "querystream",
				Subsystem: "cursor",
				Name:      "deliveries_total",
				Help:      "Total number of handler deliveries by outcome",
			},
			[]string{"outcome"},
		),

		DeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "querystream",
				Subsystem: "cursor",
				Name:      "delivery_duration_seconds",
				Help:      "Time spent inside handler deliveries",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"outcome"},
		),

		HandlerFaults: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "querystream",
				Subsystem: "cursor",
				Name:      "handler_faults_total",
				Help:      "Total number of panics or errors raised by user handlers during delivery",
			},
		),
	}
}

// RecordFrameReceived increments the received-frame counter for a response type
func (m *Metrics) RecordFrameReceived(responseType string) {
	m.FramesReceived.WithLabelValues(responseType).Inc()
}

// RecordFrameDropped increments the dropped-frame counter
func (m *Metrics) RecordFrameDropped() {
	m.FramesDropped.Inc()
}

// RecordQuerySent increments the sent-query counter for a query type
func (m *Metrics) RecordQuerySent(queryType string) {
	m.QueriesSent.WithLabelValues(queryType).Inc()
}

// RecordWriteError increments the transport write failure counter
func (m *Metrics) RecordWriteError() {
	m.WriteErrors.Inc()
}

// RecordReconnect increments the reconnect attempt counter
func (m *Metrics) RecordReconnect() {
	m.ReconnectsTotal.Inc()
}

// RecordConnected updates the connection status gauge
func (m *Metrics) RecordConnected(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.Connected.Set(value)
}

// RecordCursorOpened tracks a newly registered cursor
func (m *Metrics) RecordCursorOpened() {
	m.CursorsOpened.Inc()
	m.CursorsActive.Inc()
}

// RecordCursorClosed tracks a cursor reaching its terminal state
func (m *Metrics) RecordCursorClosed(reason string) {
	m.CursorsClosed.WithLabelValues(reason).Inc()
	m.CursorsActive.Dec()
}

// RecordDelivery records one handler delivery and its duration
func (m *Metrics) RecordDelivery(outcome string, duration time.Duration) {
	m.Deliveries.WithLabelValues(outcome).Inc()
	m.DeliveryDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordHandlerFault increments the handler fault counter
func (m *Metrics) RecordHandlerFault() {
	m.HandlerFaults.Inc()
}
