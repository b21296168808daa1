package filters

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shenwei356/countminsketch"
	"github.com/streamgate-io/streamgate/prom"
	"github.com/streamgate-io/streamgate/records"
)

// Bound selects whether the limit caps values seen too often (upper) or
// holds back values until they have been seen often enough (lower).
type Bound string

const (
	BoundUpper Bound = "upper"
	BoundLower Bound = "lower"
)

const keySeparator = "&"

type CMSLimitConfig struct {
	// record fields whose values are joined to pick the sketch, in order
	KeyFields []string `yaml:"key_fields"`
	// record field whose value(s) the limit applies to
	ValueField string `yaml:"value_field"`
	// optional record field supplying the weight of one occurrence
	CountField string `yaml:"count_field"`
	// directory evicted and closed sketches are written under
	DataDir string `yaml:"data_dir"`
	// max sketches held in memory at once
	CacheSize int `yaml:"cache_size"`
	// reject the whole record when a key field is missing
	RejectNull bool `yaml:"reject_null"`
	// explicit sketch width in buckets, mutually exclusive with percentage
	Width uint `yaml:"width"`
	// explicit sketch depth in rows, ignored when confidence is given
	Depth uint `yaml:"depth"`
	// frequency threshold the bound compares against
	Limit uint64 `yaml:"limit"`
	// confidence that the error tolerance is satisfied, as a fraction
	Confidence float64 `yaml:"confidence"`
	// max error tolerated as a fraction of cardinality, mutually exclusive with width
	Percentage float64 `yaml:"percentage"`
	Bound      Bound   `yaml:"bound"`
}

/*
CMSLimit applies a frequency limit to a record field using per-group
count-min sketches.

Scalar values that fail the limit are removed from the record and the
record is rejected. Array values are filtered element by element in a
single left-to-right pass and the record is always accepted.

The sketches live in a bounded LRU cache; the least recently used sketch
is serialized to <dataDir>/<groupKey> when displaced, and Close writes out
everything still cached. A group revisited after eviction starts over with
a fresh empty sketch - the on-disk files are a shutdown snapshot, they are
never read back mid-run.
*/
type CMSLimit struct {
	cfg CMSLimitConfig
	// effective sketch dimensions, fixed at construction
	width uint
	depth uint

	mu    sync.Mutex
	cache *lru.Cache[string, *countminsketch.CountMinSketch]
	// first write failure raised by the eviction callback of the current operation
	flushErr error
	// set while Close drains the cache, its sketches are already written
	purging bool
}

// NewCMSLimit validates the configuration and computes the effective
// sketch dimensions. Exactly one of width and percentage must be given;
// confidence, when given, overrides depth.
func NewCMSLimit(cfg CMSLimitConfig) (*CMSLimit, error) {
	if (cfg.Width == 0) == (cfg.Percentage == 0) {
		return nil, fmt.Errorf("cmslimit: exactly one of 'width' or 'percentage' must be specified")
	}
	if cfg.Percentage < 0 {
		return nil, fmt.Errorf("cmslimit: 'percentage' must be positive, got %v", cfg.Percentage)
	}
	if cfg.Confidence < 0 || cfg.Confidence >= 1 {
		return nil, fmt.Errorf("cmslimit: 'confidence' must be between 0 and 1, got %v", cfg.Confidence)
	}
	if len(cfg.KeyFields) == 0 {
		return nil, fmt.Errorf("cmslimit: at least one key field is required")
	}
	if cfg.ValueField == "" {
		return nil, fmt.Errorf("cmslimit: 'value_field' is required")
	}
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("cmslimit: 'cache_size' must be positive, got %d", cfg.CacheSize)
	}
	if cfg.Bound != BoundUpper && cfg.Bound != BoundLower {
		return nil, fmt.Errorf("cmslimit: 'bound' must be %q or %q, got %q", BoundUpper, BoundLower, cfg.Bound)
	}
	width := cfg.Width
	if width == 0 {
		width = uint(math.Ceil(math.E / cfg.Percentage))
	}
	depth := cfg.Depth
	if cfg.Confidence > 0 {
		depth = uint(math.Ceil(-math.Log(1 - cfg.Confidence)))
	}
	if depth == 0 {
		return nil, fmt.Errorf("cmslimit: sketch depth resolved to zero, set 'depth' or 'confidence'")
	}
	f := &CMSLimit{cfg: cfg, width: width, depth: depth}
	cache, err := lru.NewWithEvict(cfg.CacheSize, f.onEvict)
	if err != nil {
		return nil, fmt.Errorf("cmslimit: creating sketch cache: %w", err)
	}
	f.cache = cache
	return f, nil
}

// Width returns the effective sketch width in buckets.
func (f *CMSLimit) Width() uint { return f.width }

// Depth returns the effective sketch depth in rows.
func (f *CMSLimit) Depth() uint { return f.depth }

func (f *CMSLimit) GetName() string { return "CMSLimit" }

// Apply runs Filter as a pipeline stage, dropping rejected records.
func (f *CMSLimit) Apply(rec *records.Record, meta *Params) (string, *records.Record) {
	ok, err := f.Filter(rec)
	if err != nil {
		HandleFilterError(meta, f.GetName(), rec, err, "sketch limit failed")
		return "error", nil
	}
	if !ok {
		return "limited", nil
	}
	return "", rec
}

// Filter checks a record against its group's sketch. The returned bool is
// whether the record is accepted; the record may have been mutated (a
// failing scalar field removed, failing array elements dropped) either
// way. An error means an eviction write failed and the record was not
// judged.
func (f *CMSLimit) Filter(rec *records.Record) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := make([]string, 0, len(f.cfg.KeyFields))
	for _, field := range f.cfg.KeyFields {
		if v, ok := rec.GetString(field); ok {
			parts = append(parts, v)
		} else if f.cfg.RejectNull {
			return false, nil
		}
	}
	sketch, err := f.sketchFor(strings.Join(parts, keySeparator))
	if err != nil {
		return false, err
	}

	value := rec.GetValue(f.cfg.ValueField)
	if !value.Exists() {
		return false, nil
	}
	if value.IsArray() {
		elems := value.Array()
		kept := make([]string, 0, len(elems))
		for _, elem := range elems {
			if f.checkValue(sketch, elem.String(), rec) {
				kept = append(kept, elem.Raw)
			}
		}
		if len(kept) < len(elems) {
			if err := rec.SetRawArray(f.cfg.ValueField, kept); err != nil {
				return false, err
			}
		}
		return true, nil
	}
	if !f.checkValue(sketch, value.String(), rec) {
		if err := rec.Remove(f.cfg.ValueField); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// checkValue applies the bound to a single value. Under the upper bound a
// value at the limit fails and the sketch is untouched; under the lower
// bound a value below the limit fails but is still counted, so it can
// accumulate toward eventually passing.
func (f *CMSLimit) checkValue(sketch *countminsketch.CountMinSketch, value string, rec *records.Record) bool {
	prom.SketchValuesChecked.Inc()
	current := sketch.EstimateString(value)
	switch f.cfg.Bound {
	case BoundUpper:
		if current >= f.cfg.Limit {
			prom.SketchValuesRemoved.WithLabelValues(string(BoundUpper)).Inc()
			return false
		}
		f.updateCount(sketch, value, rec)
		return true
	default: // BoundLower
		if current < f.cfg.Limit {
			f.updateCount(sketch, value, rec)
			prom.SketchValuesRemoved.WithLabelValues(string(BoundLower)).Inc()
			return false
		}
		return true
	}
}

// updateCount adds one occurrence to the sketch, weighted by the count
// field when configured. A missing or nonpositive weight adds nothing.
func (f *CMSLimit) updateCount(sketch *countminsketch.CountMinSketch, value string, rec *records.Record) {
	weight := int64(1)
	if f.cfg.CountField != "" {
		weight, _ = rec.GetCount(f.cfg.CountField)
	}
	if weight > 0 {
		sketch.UpdateString(value, uint64(weight))
	}
}

// sketchFor returns the cached sketch for a group key, allocating a fresh
// empty one on miss. Inserting may displace the least recently used
// sketch, which is written to disk before this returns; a failed write
// fails the whole lookup.
func (f *CMSLimit) sketchFor(key string) (*countminsketch.CountMinSketch, error) {
	if sketch, ok := f.cache.Get(key); ok {
		return sketch, nil
	}
	sketch, err := countminsketch.New(f.depth, f.width)
	if err != nil {
		return nil, fmt.Errorf("cmslimit: allocating sketch: %w", err)
	}
	prom.SketchesCreated.Inc()
	f.flushErr = nil
	f.cache.Add(key, sketch)
	prom.SketchCacheSize.Set(float64(f.cache.Len()))
	if f.flushErr != nil {
		return nil, f.flushErr
	}
	return sketch, nil
}

// onEvict is invoked by the cache with f.mu held (all cache calls happen
// under it). The write error is surfaced through flushErr because the
// cache callback cannot return one.
func (f *CMSLimit) onEvict(key string, sketch *countminsketch.CountMinSketch) {
	if f.purging {
		return
	}
	if err := f.writeSketch(key, sketch); err != nil && f.flushErr == nil {
		f.flushErr = err
	}
}

func (f *CMSLimit) writeSketch(key string, sketch *countminsketch.CountMinSketch) error {
	if err := os.MkdirAll(f.cfg.DataDir, 0770); err != nil {
		return fmt.Errorf("cmslimit: creating data dir %q: %w", f.cfg.DataDir, err)
	}
	path := filepath.Join(f.cfg.DataDir, key)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cmslimit: creating sketch file %q: %w", path, err)
	}
	if _, err := sketch.WriteTo(file); err != nil {
		file.Close()
		return fmt.Errorf("cmslimit: writing sketch %q: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("cmslimit: closing sketch file %q: %w", path, err)
	}
	prom.SketchesFlushed.Inc()
	return nil
}

// Close writes every cached sketch to disk, then drops them. A write
// failure returns before anything is dropped, so the caller can retry.
// Safe to call more than once; later calls find an empty cache.
func (f *CMSLimit) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range f.cache.Keys() {
		sketch, ok := f.cache.Peek(key)
		if !ok {
			continue
		}
		if err := f.writeSketch(key, sketch); err != nil {
			return err
		}
	}
	f.purging = true
	f.cache.Purge()
	f.purging = false
	prom.SketchCacheSize.Set(0)
	return nil
}
