package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TopKeysTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamgate_top_keys_tracked",
		Help: "Number of keys currently held by the top-key tracker",
	})
	TopKeyEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_top_key_evictions_total",
		Help: "The total number of keys displaced from the top-key tracker",
	})
)
