package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreated  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "gnarhub", Name: "session_requests_created_total", Help: "Total number of session requests created"})
	BookingsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gnarhub", Name: "bookings_accepted_total", Help: "Sessions booked, by acceptance path"},
		[]string{"path"},
	)
	BookingConflicts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "gnarhub", Name: "booking_conflicts_total", Help: "Acceptances rejected because the session or request moved on"})
	RequestsSwept    = promauto.NewCounter(prometheus.CounterOpts{Namespace: "gnarhub", Name: "session_requests_swept_total", Help: "Competing requests declined after a booking"})

	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gnarhub", Name: "notifications_delivered_total", Help: "Notification events delivered, by sink"},
		[]string{"sink"},
	)
	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gnarhub", Name: "notifications_failed_total", Help: "Notification deliveries that failed, by sink"},
		[]string{"sink"},
	)
	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{Namespace: "gnarhub", Name: "notifications_dropped_total", Help: "Notification events dropped because the queue was full"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "gnarhub", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "gnarhub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
