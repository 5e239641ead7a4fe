// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restapi

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var requestCount = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "diffeo",
		Subsystem: "modelrest",
		Name:      "requests_total",
		Help:      "Resource requests served",
	},
	[]string{
		"resource",
		"operation",
		"status",
	},
)

var requestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "diffeo",
		Subsystem: "modelrest",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving resource requests",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{
		"resource",
		"operation",
	},
)

func init() {
	prometheus.MustRegister(requestCount)
	prometheus.MustRegister(requestDuration)
}

func observeRequest(resource, op string, status int, elapsed time.Duration) {
	requestCount.With(prometheus.Labels{
		"resource":  resource,
		"operation": op,
		"status":    strconv.Itoa(status),
	}).Inc()
	requestDuration.With(prometheus.Labels{
		"resource":  resource,
		"operation": op,
	}).Observe(elapsed.Seconds())
}
