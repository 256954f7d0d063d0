package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the receiver's Prometheus metrics
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	receiptsTotal       *prometheus.CounterVec
	receivedTextsTotal  prometheus.Counter
	websocketClients    prometheus.Gauge
	apiRate             prometheus.Gauge
}

// NewMetrics registers the receiver metrics with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		receiptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notify_delivery_receipts_total",
				Help: "Delivery receipts stored, by notification type and status",
			},
			[]string{"type", "status"},
		),
		receivedTextsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "notify_received_texts_total",
				Help: "Inbound text messages stored",
			},
		),
		websocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "notify_websocket_clients",
				Help: "Connected status stream clients",
			},
		),
		apiRate: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "notify_api_requests_per_second",
				Help: "Requests made to the Notify API in the last second, across replicas",
			},
		),
	}
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordReceipt counts a stored delivery receipt
func (m *Metrics) RecordReceipt(notificationType, status string) {
	m.receiptsTotal.WithLabelValues(notificationType, status).Inc()
}

// RecordReceivedText counts a stored inbound message
func (m *Metrics) RecordReceivedText() {
	m.receivedTextsTotal.Inc()
}

// RateReporter reports the shared Notify API request rate
type RateReporter interface {
	GetCurrentRate(ctx context.Context) (int64, error)
}

// MetricsHandler handles metrics endpoints
type MetricsHandler struct {
	metrics  *Metrics
	gatherer prometheus.Gatherer
	rate     RateReporter
	hub      *WebSocketHub
}

// NewMetricsHandler creates a new MetricsHandler. rate may be nil.
func NewMetricsHandler(metrics *Metrics, gatherer prometheus.Gatherer, rate RateReporter, hub *WebSocketHub) *MetricsHandler {
	return &MetricsHandler{
		metrics:  metrics,
		gatherer: gatherer,
		rate:     rate,
		hub:      hub,
	}
}

// Handler returns the Prometheus HTTP handler
func (h *MetricsHandler) Handler() http.Handler {
	return promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})
}

// RealtimeMetrics represents point-in-time receiver metrics
type RealtimeMetrics struct {
	APIRequestsPerSec int64 `json:"api_requests_per_sec"`
	WebSocketClients  int   `json:"websocket_clients"`
}

// RealtimeMetrics handles real-time metrics requests
// @Summary Real-time metrics
// @Description Get the current Notify API request rate and stream client count
// @Tags metrics
// @Produce json
// @Success 200 {object} Response{data=RealtimeMetrics}
// @Failure 500 {object} Response
// @Router /metrics/realtime [get]
func (h *MetricsHandler) RealtimeMetrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	var metrics RealtimeMetrics

	if h.rate != nil {
		rate, err := h.rate.GetCurrentRate(ctx)
		if err != nil {
			JSONError(w, http.StatusInternalServerError, "METRICS_ERROR", "Failed to get API request rate", nil)
			return
		}
		metrics.APIRequestsPerSec = rate
		h.metrics.apiRate.Set(float64(rate))
	}

	if h.hub != nil {
		metrics.WebSocketClients = h.hub.GetClientCount()
		h.metrics.websocketClients.Set(float64(metrics.WebSocketClients))
	}

	JSON(w, http.StatusOK, metrics)
}
