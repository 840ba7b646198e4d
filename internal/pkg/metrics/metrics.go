package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flashshare",
		Name:      "uploads_total",
		Help:      "Files uploaded successfully.",
	})

	DownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flashshare",
		Name:      "downloads_total",
		Help:      "Download slots consumed.",
	})

	ReclaimedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flashshare",
		Name:      "reclaimed_total",
		Help:      "Files removed by lifecycle reclamation.",
	}, []string{"reason"})

	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flashshare",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
)

// Reclaim reasons. Fixed set so the label cardinality stays bounded.
const (
	ReasonExpired   = "expired"
	ReasonExhausted = "exhausted"
	ReasonOrphaned  = "orphaned"
	ReasonDangling  = "dangling"
	ReasonDeleted   = "deleted"
)
