package filters

import (
	"fmt"
	"sync"

	"github.com/streamgate-io/streamgate/prom"
	"github.com/streamgate-io/streamgate/records"
	"github.com/streamgate-io/streamgate/topk"
)

type TopKeysConfig struct {
	// record field whose values are ranked
	Field string `yaml:"field"`
	// how many keys to keep
	Capacity int `yaml:"capacity"`
	// optional weight field, 1 per record when empty
	WeightField string `yaml:"weight_field"`
	// evicting keys inherit the displaced minimum count
	Lossy bool `yaml:"lossy"`
	// record per-key error upper bounds
	TrackErrors bool `yaml:"track_errors"`
}

// TopKeys feeds a record field's values into a bounded top-N tracker for
// hot key reporting. It never drops records.
type TopKeys struct {
	Field       string
	WeightField string
	Capacity    int

	mu     sync.Mutex
	topper *topk.Topper
}

func NewTopKeys(cfg TopKeysConfig) (*TopKeys, error) {
	if cfg.Field == "" {
		return nil, fmt.Errorf("topkeys: 'field' is required")
	}
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("topkeys: 'capacity' must be positive, got %d", cfg.Capacity)
	}
	topper := topk.New(cfg.Lossy)
	topper.EnableErrors(cfg.TrackErrors)
	return &TopKeys{
		Field:       cfg.Field,
		WeightField: cfg.WeightField,
		Capacity:    cfg.Capacity,
		topper:      topper,
	}, nil
}

func (f *TopKeys) GetName() string { return "TopKeys" }

// Apply counts the record's field value. Records without the field pass
// through uncounted.
func (f *TopKeys) Apply(rec *records.Record, meta *Params) (string, *records.Record) {
	value, ok := rec.GetString(f.Field)
	if !ok {
		return "", rec
	}
	weight := int64(1)
	if f.WeightField != "" {
		if w, ok := rec.GetCount(f.WeightField); ok {
			weight = w
		}
	}
	if weight <= 0 {
		return "", rec
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	// bump in place when tracked, otherwise go through admission
	if f.topper.IncrementExisting(value) {
		weight--
	}
	if weight > 0 {
		dropped, err := f.topper.Increment(value, uint64(weight), f.Capacity)
		if err != nil {
			HandleFilterError(meta, f.GetName(), rec, err, "top key tracking failed")
			return "", rec
		}
		if dropped != "" && dropped != value {
			prom.TopKeyEvictions.Inc()
		}
	}
	prom.TopKeysTracked.Set(float64(f.topper.Size()))
	return "", rec
}

// Snapshot returns the tracked keys sorted by count descending.
func (f *TopKeys) Snapshot() []topk.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.topper.SortedEntries()
}

// Encoded returns the tracker's binary wire form.
func (f *TopKeys) Encoded() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.topper.BytesEncode(1)
}
