package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SketchValuesChecked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_sketch_values_checked_total",
		Help: "The total number of values checked against a count-min sketch",
	})
	SketchValuesRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_sketch_values_removed_total",
		Help: "The total number of values removed by the limit filter, by bound",
	}, []string{"bound"})
	SketchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_sketches_created_total",
		Help: "The total number of sketches allocated on cache miss",
	})
	SketchesFlushed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_sketches_flushed_total",
		Help: "The total number of sketches written to disk on eviction or close",
	})
	SketchCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamgate_sketch_cache_entries",
		Help: "Number of sketches currently held in the limit filter cache",
	})
)
