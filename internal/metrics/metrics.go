// Package metrics holds the Prometheus collectors of the digest service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BytesHashed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "digest",
		Subsystem: "engine",
		Name:      "hashed_bytes_total",
		Help:      "Total number of bytes absorbed by the SHA-256 engine",
	})
	DigestsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digest",
		Subsystem: "engine",
		Name:      "digests_total",
		Help:      "Total number of digests produced, per operation (compute/register/verify)",
	}, []string{"operation"})
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digest",
		Subsystem: "service",
		Name:      "verifications_total",
		Help:      "Total number of verify requests, per result (match/mismatch)",
	}, []string{"result"})
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "digest",
		Subsystem: "service",
		Name:      "cache_lookups_total",
		Help:      "Total number of record cache lookups, per result (hit/miss)",
	}, []string{"result"})
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "digest",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by the rate limiter",
	})
)
