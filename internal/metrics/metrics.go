// Package metrics holds the prometheus collectors of the service.
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authsession"

// Outcomes of a refresh request.
const (
	RefreshRotated  = "rotated"
	RefreshReplayed = "replayed"
	RefreshInvalid  = "invalid"
)

// Outcomes of a login request.
const (
	LoginSuccess         = "success"
	LoginUserNotFound    = "user_not_found"
	LoginInvalidPassword = "invalid_password"
)

type Metrics struct {
	registry *prometheus.Registry
	handler  http.Handler

	logins       *prometheus.CounterVec
	refreshes    *prometheus.CounterVec
	serverErrors prometheus.Counter
	swept        prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_total",
		Help:      "Login requests by outcome",
	}, []string{"outcome"})

	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_total",
		Help:      "Refresh token requests by outcome",
	}, []string{"outcome"})

	serverErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "server_errors_total",
		Help:      "Requests answered with a ServerError envelope",
	})

	swept := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_tokens_swept_total",
		Help:      "Expired refresh token rows removed by the cleaner",
	})

	registry.MustRegister(logins, refreshes, serverErrors, swept)
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Metrics{
		registry:     registry,
		handler:      promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		logins:       logins,
		refreshes:    refreshes,
		serverErrors: serverErrors,
		swept:        swept,
	}
}

func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRefresh(outcome string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveServerError() {
	if m == nil {
		return
	}
	m.serverErrors.Inc()
}

func (m *Metrics) ObserveSwept(n int64) {
	if m == nil {
		return
	}
	m.swept.Add(float64(n))
}

func (m *Metrics) RegisterHandlers(rg *gin.RouterGroup) {
	rg.GET("/metrics", gin.WrapH(m.handler))
}
