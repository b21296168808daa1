/*
Package topk maintains a bounded top-N count for string keys.

It implements the Space-Saving admission policy: once full, a new key can
displace the current minimum entry, optionally inheriting its count (lossy
mode) and recording an upper bound on the error that inheritance introduces.
*/
package topk

import (
	"fmt"
	"sort"
)

// Topper tracks the top N keys by count for a stream of string keys.
// The zero value is not usable, construct with New.
//
// Topper has no internal locking. A caller sharing one instance across
// goroutines must hold a mutex over every call, reads included.
type Topper struct {
	entries map[string]uint64
	// cached minimum entry, regenerated lazily as needed
	minKey string
	minVal uint64
	minSet bool
	lossy  bool
	// error upper bounds per key, only allocated when error tracking is on
	errors map[string]uint64
}

// Entry is one tracked key and its count.
type Entry struct {
	Key   string `json:"key"`
	Count uint64 `json:"count"`
	Error uint64 `json:"error,omitempty"`
}

func New(lossy bool) *Topper {
	return &Topper{
		entries: make(map[string]uint64),
		lossy:   lossy,
	}
}

// EnableErrors switches error bound tracking on or off. Disabling discards
// any recorded bounds.
func (t *Topper) EnableErrors(enable bool) {
	if enable {
		if t.errors == nil {
			t.errors = make(map[string]uint64)
		}
	} else {
		t.errors = nil
	}
}

func (t *Topper) HasErrors() bool { return t.errors != nil }

func (t *Topper) Lossy() bool { return t.lossy }

func (t *Topper) Size() int { return len(t.entries) }

// Get returns the current count for key, or false if the key is not tracked.
func (t *Topper) Get(key string) (uint64, bool) {
	v, ok := t.entries[key]
	return v, ok
}

// Error returns an upper bound on the error associated with a key's count.
// The second return is false if error tracking is disabled. A tracked key
// with no recorded bound reports 0.
func (t *Topper) Error(key string) (uint64, bool) {
	if t.errors == nil {
		return 0, false
	}
	return t.errors[key], true
}

// SortedEntries returns all tracked entries ordered by count, greatest
// first. Ties are in no contractual order.
func (t *Topper) SortedEntries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for k, v := range t.entries {
		e := Entry{Key: k, Count: v}
		if t.errors != nil {
			e.Error = t.errors[k]
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

// recreateMinimum regenerates the cached minimum key and value if the map
// is non-empty and the cache is missing, or if force is true. Use force
// after the minimum key has been evicted or its count has changed.
//
// Postcondition: either the map is empty or the cached minimum is set.
func (t *Topper) recreateMinimum(force bool) {
	if len(t.entries) > 0 && (!t.minSet || force) {
		first := true
		for k, v := range t.entries {
			if first || v < t.minVal {
				t.minKey = k
				t.minVal = v
				first = false
			}
		}
		t.minSet = true
	}
}

// Increment adds weight to key's count, admitting the key if there is a
// free slot or its count beats the current minimum. In lossy mode a key not
// currently tracked starts from the minimum value instead of zero, so new
// arrivals are not unfairly disadvantaged against long-tracked keys.
//
// Returns the key dropped to make room, the offered key itself if it was
// rejected, or "" if nothing was dropped.
func (t *Topper) Increment(key string, weight uint64, maxSize int) (string, error) {
	count, ok := t.entries[key]
	if !ok {
		if t.lossy && len(t.entries) >= maxSize {
			t.recreateMinimum(false)
			count = t.minVal
		} else {
			count = 0
		}
	}
	return t.Update(key, count+weight, maxSize)
}

// IncrementExisting adds 1 to key's count only if the key is already
// tracked, and reports whether it was. It never inserts or evicts, which
// makes it safe as the second stage of a two-phase update where membership
// was established earlier.
func (t *Topper) IncrementExisting(key string) bool {
	v, ok := t.entries[key]
	if !ok {
		return false
	}
	t.entries[key] = v + 1
	if t.minSet && key == t.minKey {
		t.recreateMinimum(true)
	}
	return true
}

// Update sets key's count to value if there is a free slot or value is at
// least the current minimum. When a key is admitted into a full tracker the
// minimum entry is evicted, and with error tracking enabled the evicted
// minimum value is recorded as the incoming key's error bound.
//
// Returns the evicted key, the offered key itself if it was rejected, or ""
// if the key was stored with nothing dropped.
func (t *Topper) Update(key string, value uint64, maxSize int) (string, error) {
	if maxSize <= 0 {
		return "", fmt.Errorf("topk: max size was %d but expected positive integer", maxSize)
	}
	// guaranteed capacity to insert or update
	if len(t.entries) < maxSize {
		t.entries[key] = value
		if !t.minSet {
			// the cache can be unset with older entries present, such as
			// after a decode; seeding it from this value alone would hide
			// a smaller existing entry
			t.recreateMinimum(false)
		} else if value < t.minVal {
			// new minimum identified
			t.minKey = key
			t.minVal = value
		} else if key == t.minKey {
			// the minimum key itself changed value
			t.recreateMinimum(true)
		}
		return "", nil
	}
	t.recreateMinimum(false)
	if value < t.minVal {
		// not eligible for the top
		return key, nil
	}
	evicted := ""
	_, present := t.entries[key]
	if !present {
		delete(t.entries, t.minKey)
		if t.errors != nil {
			delete(t.errors, t.minKey)
			t.errors[key] = t.minVal
		}
		evicted = t.minKey
	}
	t.entries[key] = value
	// regenerate only if the minimum entry was removed or updated
	if !present || key == t.minKey {
		t.recreateMinimum(true)
	}
	return evicted, nil
}

// MinKey returns the cached minimum key, which may be stale or unset until
// the next mutation regenerates it.
func (t *Topper) MinKey() string { return t.minKey }

// MinVal returns the cached minimum value paired with MinKey.
func (t *Topper) MinVal() uint64 { return t.minVal }

func (t *Topper) String() string {
	return fmt.Sprintf("topper(min:%s=%d->%v,lossy:%v)", t.minKey, t.minVal, t.entries, t.lossy)
}
