/*
Package filters holds the record filtering stages and the pipeline that
runs them in order over incoming records.
*/
package filters

import (
	"fmt"
	"reflect"
	"time"

	"github.com/goccy/go-json"

	"github.com/rs/zerolog/log"
	"github.com/streamgate-io/streamgate/prom"
	"github.com/streamgate-io/streamgate/records"
	st "github.com/streamgate-io/streamgate/settings"
)

// Params carries per-invocation context about where records came from.
type Params struct {
	// name of the stream or file being processed
	Source string `json:"source"`
	// user agent of the client when records arrive over the restapi
	UserAgent string `json:"user_agent"`
}

// Action represents a stage of pipeline filtering.
type Action interface {
	// Apply allows for flexible side effects and transformation of a record.
	// A nil record return drops the record, with the state string describing why.
	Apply(rec *records.Record, meta *Params) (string, *records.Record)
	GetName() string
}

// Pipeline encapsulates a series of filters that are applied to records.
type Pipeline struct {
	actions []Action
	names   []string
}

func NewPipeline(actions ...Action) *Pipeline {
	filteredActions := []Action{}
	names := []string{}
	for _, act := range actions {
		if act == nil || reflect.ValueOf(act).IsNil() {
			// this stage was not initialised, so should be dropped
			continue
		}
		filteredActions = append(filteredActions, act)
		names = append(names, act.GetName())
	}
	return &Pipeline{filteredActions, names}
}

// Names returns the stage names in execution order.
func (p *Pipeline) Names() []string { return append([]string{}, p.names...) }

// Run executes each pipeline action in order over the given records.
// The returned map counts why records were dropped, keyed by stage and
// state; the returned slice holds the surviving (possibly mutated) records.
func (p *Pipeline) Run(recs []*records.Record, meta *Params) (map[string]int, []*records.Record) {
	states := map[string]int{}
	for i, f := range p.actions {
		stageName := p.names[i]
		startTime := time.Now()
		for index := range recs {
			if recs[index] == nil {
				continue
			}
			state, replacement := f.Apply(recs[index], meta)
			recs[index] = replacement
			if replacement == nil {
				if len(state) > 0 {
					// use stage name in state to prevent confusion about source of filtering
					states[stageName+"-"+state]++
					prom.RecordsFiltered.WithLabelValues(stageName, state).Inc()
				} else {
					states[stageName+"-unspecified"]++
					prom.RecordsFiltered.WithLabelValues(stageName, "unspecified").Inc()
				}
			}
		}
		prom.PipelineStageSeconds.WithLabelValues(stageName).Set(time.Since(startTime).Seconds())
	}
	kept := make([]*records.Record, 0, len(recs))
	for _, rec := range recs {
		if rec != nil {
			kept = append(kept, rec)
		}
	}
	prom.RecordsAccepted.Add(float64(len(kept)))
	return states, kept
}

type pipelineError struct {
	Time        string `json:"time"`
	Source      string `json:"source"`
	Stage       string `json:"stage"`
	Description string `json:"description"`
	Error       string `json:"error"`
	RecordBytes int    `json:"record_bytes"`
	Record      string `json:"record"`
}

// HandleFilterError captures important information about pipeline errors.
// Increments the prometheus error counter, logs to stdout and to the pipeline error file.
func HandleFilterError(meta *Params, stage string, rec *records.Record, inErr error, desc string, args ...any) {
	if inErr == nil {
		inErr = fmt.Errorf("no error provided")
	}
	var raw []byte
	if rec != nil {
		raw = rec.Bytes()
	}
	description := fmt.Sprintf(desc, args...)
	prom.PipelineErrors.WithLabelValues(stage).Inc()
	log.Err(inErr).Str("source", meta.Source).Str("stage", stage).Int("bytes", len(raw)).Msg(description)

	logLineStruct := pipelineError{
		Time:        time.Now().Format(time.RFC3339),
		Source:      meta.Source,
		Stage:       stage,
		Description: description,
		Error:       inErr.Error(),
		RecordBytes: len(raw),
		Record:      string(raw),
	}
	logline, err := json.Marshal(logLineStruct)
	if err != nil {
		log.Err(err).Str("record", logLineStruct.Record).Msg("could not encode pipeline error log line")
		return
	}
	if st.ChLogPipelineErr != nil {
		st.ChLogPipelineErr <- logline
	}
}
