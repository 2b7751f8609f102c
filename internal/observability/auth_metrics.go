package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

type Prom struct {
	// Credential exchanges issued by the client
	ExchangesTotal   *prometheus.CounterVec
	ExchangeDuration *prometheus.HistogramVec

	// Refresh coordination
	RefreshShared    prometheus.Counter
	SessionTeardowns *prometheus.CounterVec

	// Stub server HTTP surface
	RequestsTotal    *prometheus.CounterVec
	RequestsDuration *prometheus.HistogramVec
}

func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		ExchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mentorlink",
				Subsystem: "auth",
				Name:      "exchanges_total",
				Help:      "Credential exchanges by operation and outcome.",
			},
			[]string{"op", "outcome"}, // outcome=ok|auth|protocol|timeout
		),
		ExchangeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mentorlink",
				Subsystem: "auth",
				Name:      "exchange_duration_seconds",
				Help:      "Credential exchange latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"op"},
		),
		RefreshShared: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "mentorlink",
				Subsystem: "auth",
				Name:      "refresh_shared_total",
				Help:      "Callers that joined an already in-flight refresh instead of issuing their own.",
			},
		),
		SessionTeardowns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mentorlink",
				Subsystem: "session",
				Name:      "teardowns_total",
				Help:      "Session destructions by reason.",
			},
			[]string{"reason"}, // reason=logout|refresh_failed|rejected|role_changed|external
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "mentorlink",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests processed by the stub server.",
			},
			[]string{"method", "route", "status"},
		),
		RequestsDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "mentorlink",
				Name:      "http_request_duration_seconds",
				Help:      "Stub server HTTP request latency distributions.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"method", "route", "status"},
		),
	}
	reg.MustRegister(p.ExchangesTotal, p.ExchangeDuration, p.RefreshShared, p.SessionTeardowns, p.RequestsTotal, p.RequestsDuration)

	return p
}

func (p *Prom) ObserveExchange(op string, outcome string, d time.Duration) {
	p.ExchangesTotal.WithLabelValues(op, outcome).Inc()
	p.ExchangeDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (p *Prom) GinHandleMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()

		// route template is only available after routing; best effort:
		route := ctx.FullPath()

		if route == "" {
			route = "unmatched"
		}

		method := ctx.Request.Method
		ctx.Next()

		status := strconv.Itoa(ctx.Writer.Status())
		secs := time.Since(start).Seconds()

		p.RequestsTotal.WithLabelValues(method, route, status).Inc()
		p.RequestsDuration.WithLabelValues(method, route, status).Observe(secs)
	}
}
