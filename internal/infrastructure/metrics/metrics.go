// Package metrics métricas Prometheus del servicio: HTTP y libro de stock.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

var _ inventory.Observer = (*Metrics)(nil)

// Metrics colectores con registro propio (no el global), para poder crear varios en tests.
type Metrics struct {
	service  string
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	movements       *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	recordDuration  prometheus.Histogram
}

// New registra los colectores del servicio más los de proceso y runtime de Go.
func New(service string) *Metrics {
	m := &Metrics{
		service:  service,
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total de requests HTTP",
		}, []string{"service", "method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duración de los requests HTTP en segundos",
			Buckets: prometheus.DefBuckets,
		}, []string{"service", "method", "path", "status"}),
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_movements_recorded_total",
			Help: "Movimientos registrados por tipo",
		}, []string{"kind"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_movements_rejected_total",
			Help: "Movimientos rechazados por tipo y motivo",
		}, []string{"kind", "reason"}),
		recordDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stock_movement_record_duration_seconds",
			Help:    "Duración de Record (bloqueo + transacción)",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
	m.registry.MustRegister(
		m.requests, m.requestDuration, m.movements, m.rejections, m.recordDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry registro con todos los colectores.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler exposición en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware mide cada request. path es la ruta registrada, no la URL, para acotar cardinalidad.
func (m *Metrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}
		method := c.Method()
		path := c.Route().Path
		statusStr := strconv.Itoa(status)
		m.requests.WithLabelValues(m.service, method, path, statusStr).Inc()
		m.requestDuration.WithLabelValues(m.service, method, path, statusStr).Observe(time.Since(start).Seconds())
		return err
	}
}

// MovementRecorded implementa inventory.Observer.
func (m *Metrics) MovementRecorded(mov *entity.StockMovement, elapsed time.Duration) {
	m.movements.WithLabelValues(mov.Kind.String()).Inc()
	m.recordDuration.Observe(elapsed.Seconds())
}

// MovementRejected implementa inventory.Observer.
func (m *Metrics) MovementRejected(kind entity.MovementKind, err error) {
	m.rejections.WithLabelValues(kind.String(), reason(err)).Inc()
}

func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidMovement):
		return "invalid"
	case errors.Is(err, domain.ErrUnknownReference):
		return "unknown_reference"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "conflict"
	default:
		return "internal"
	}
}
