// Package observability provides Prometheus metrics for the auth service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// AuthBuckets defines histogram buckets suited for auth request latencies,
// ranging from 1ms to 5s (bcrypt dominates the tail).
var AuthBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

var (
	// LoginsTotal counts login attempts by outcome
	// (success, invalid, inactive, rate_limited, error).
	LoginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_logins_total",
			Help: "Login attempts",
		},
		[]string{"outcome"},
	)

	// RotationsTotal counts refresh rotations by outcome
	// (success, invalid, expired, reuse, inactive, error).
	RotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_rotations_total",
			Help: "Refresh-secret rotations",
		},
		[]string{"outcome"},
	)

	// ReuseDetectionsTotal counts reuse-of-retired-secret detections.
	ReuseDetectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "authcore_reuse_detections_total",
			Help: "Retired refresh secrets presented within the detection window",
		},
	)

	// AuthzDenialsTotal counts authorization denials by reason.
	AuthzDenialsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_authz_denials_total",
			Help: "Authorization denials",
		},
		[]string{"reason"},
	)

	// RateLimitRejectedTotal counts requests rejected by the rate limiter.
	RateLimitRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_ratelimit_rejected_total",
			Help: "Rate limit rejections",
		},
		[]string{"route"},
	)

	// RequestDuration records HTTP request duration in seconds by route and
	// status class.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authcore_request_duration_seconds",
			Help:    "Request duration",
			Buckets: AuthBuckets,
		},
		[]string{"route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		LoginsTotal,
		RotationsTotal,
		ReuseDetectionsTotal,
		AuthzDenialsTotal,
		RateLimitRejectedTotal,
		RequestDuration,
	)
}
