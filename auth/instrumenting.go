package auth

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors recorded for every Service call.
type Metrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewMetrics creates the authentication collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Total number of authentication requests by operation and outcome",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auth_request_duration_seconds",
			Help:    "Histogram of authentication request latency in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	reg.MustRegister(m.requests, m.latency)
	return m
}

type instrumentingService struct {
	next    Service
	metrics *Metrics
}

func NewInstrumentingService(next Service, metrics *Metrics) Service {
	return &instrumentingService{next: next, metrics: metrics}
}

func (s *instrumentingService) Register(ctx context.Context, r RegisterRequest) (token string, err error) {
	defer s.observe("register", time.Now(), &err)
	return s.next.Register(ctx, r)
}

func (s *instrumentingService) Login(ctx context.Context, r LoginRequest) (token string, err error) {
	defer s.observe("login", time.Now(), &err)
	return s.next.Login(ctx, r)
}

func (s *instrumentingService) InitiatePasswordReset(ctx context.Context, emailOrUsername string) (err error) {
	defer s.observe("forgot_password", time.Now(), &err)
	return s.next.InitiatePasswordReset(ctx, emailOrUsername)
}

func (s *instrumentingService) observe(op string, begin time.Time, err *error) {
	s.metrics.latency.WithLabelValues(op).Observe(time.Since(begin).Seconds())
	s.metrics.requests.WithLabelValues(op, outcome(*err)).Inc()
}

func outcome(err error) string {
	if _, ok := IsValidationError(err); ok {
		return "invalid"
	}
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyExists):
		return "exists"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidCredentials):
		return "bad_credentials"
	default:
		return "error"
	}
}
