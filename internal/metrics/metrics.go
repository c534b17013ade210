// metrics — prometheus-коллекторы сервиса.
//
// Все методы безопасны для вызова на nil *Metrics: это позволяет не
// подключать метрики в тестах и утилитах.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "books_auth"

// Metrics — набор коллекторов сервиса.
type Metrics struct {
	authOps      *prometheus.CounterVec
	revocations  prometheus.Counter
	purged       prometheus.Counter
	registrySize prometheus.Gauge
	httpDuration *prometheus.HistogramVec
}

// New создаёт коллекторы и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		authOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Auth operations by name and outcome.",
		}, []string{"op", "result"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_total",
			Help:      "Tokens added to the revocation registry.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revocations_purged_total",
			Help:      "Revocation entries dropped by the janitor.",
		}),
		registrySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "revocation_registry_size",
			Help:      "Current number of revocation registry entries.",
		}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(m.authOps, m.revocations, m.purged, m.registrySize, m.httpDuration)

	return m
}

// AuthOp учитывает исход операции координатора.
func (m *Metrics) AuthOp(op, result string) {
	if m == nil {
		return
	}
	m.authOps.WithLabelValues(op, result).Inc()
}

// Revoked учитывает новую запись в реестре отзыва.
func (m *Metrics) Revoked() {
	if m == nil {
		return
	}
	m.revocations.Inc()
}

// Purged учитывает удалённые janitor-ом записи и текущий размер реестра.
func (m *Metrics) Purged(n, size int) {
	if m == nil {
		return
	}
	m.purged.Add(float64(n))
	m.registrySize.Set(float64(size))
}

// ObserveHTTP записывает длительность HTTP-запроса.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
}
