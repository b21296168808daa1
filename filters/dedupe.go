package filters

import (
	"github.com/streamgate-io/streamgate/dedupe"
	"github.com/streamgate-io/streamgate/records"
)

type DedupeConfig struct {
	// record field holding the unique id
	IDField string `yaml:"id_field"`
	// bytes to allocate for the lookup table
	SizeBytes uint64 `yaml:"size_bytes"`
}

// FilterDuplicates drops records whose id field was already seen.
type FilterDuplicates struct {
	IDField string
	Seen    *dedupe.Lookup
}

func NewFilterDuplicates(cfg DedupeConfig) *FilterDuplicates {
	return &FilterDuplicates{IDField: cfg.IDField, Seen: dedupe.New(cfg.SizeBytes)}
}

func (f *FilterDuplicates) GetName() string { return "FilterDuplicates" }

// Apply drops the record if its id has been processed before.
func (f *FilterDuplicates) Apply(rec *records.Record, meta *Params) (string, *records.Record) {
	id, ok := rec.GetString(f.IDField)
	if !ok {
		HandleFilterError(meta, f.GetName(), rec, nil, "record has no id field %q", f.IDField)
		return "error", nil
	}
	if f.Seen.SeenAndMark(id) {
		return "duplicate", nil
	}
	return "", rec
}
