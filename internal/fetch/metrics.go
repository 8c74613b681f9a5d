package fetch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal tracks the number of page fetches dispatched.
	requestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ricwatch_fetches_total",
		Help: "The total number of page fetches dispatched.",
	})
	// requestErrorsTotal tracks fetches that failed at the transport level.
	requestErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ricwatch_fetch_errors_total",
		Help: "The total number of fetches that failed with a transport error.",
	})
	// blockedTotal tracks responses classified as bot challenges.
	blockedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ricwatch_fetch_blocked_total",
		Help: "The total number of responses classified as challenge pages.",
	})
)
