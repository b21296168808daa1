package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RestapiTimes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "streamgate_restapi_time_seconds",
		Help:    "Duration of restapi processing",
		Buckets: []float64{.005, .01, .025, .050, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"method", "path"})
	RestapiCodes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_restapi_response_codes",
		Help: "The response codes for restapi endpoints",
	}, []string{"method", "path", "code"})
)
