package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsFiltered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_records_filtered_total",
		Help: "The total number of records dropped, by stage and reason",
	}, []string{"stage", "state"})
	RecordsAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamgate_records_accepted_total",
		Help: "The total number of records that passed every stage",
	})
	PipelineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamgate_pipeline_errors_total",
		Help: "The total number of record processing errors, by stage",
	}, []string{"stage"})
	PipelineStageSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "streamgate_pipeline_stage_seconds",
		Help: "Seconds spent in the last run of each pipeline stage",
	}, []string{"stage"})
)
