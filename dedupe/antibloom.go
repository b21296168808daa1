/*
Package dedupe provides the fixed-size lookup used to drop records already
seen by the pipeline.

It follows the "opposite of a bloom filter" construction: a power-of-two
table of xxHash64 values indexed by the low bits of the hash. It never
falsely reports a new record as a duplicate (up to 64 bit hash collisions)
but may forget a record whose slot was overwritten, so duplicates can slip
through at the table's collision rate.
*/
package dedupe

import (
	"math"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
	"github.com/streamgate-io/streamgate/prom"
)

// Lookup is the antibloom table. Safe for concurrent use.
type Lookup struct {
	hashes   []uint64
	slotMask uint64
}

// New returns a Lookup occupying roughly the specified number of bytes,
// rounded up to a power of two. Each slot holds one 8 byte hash.
func New(sizeBytes uint64) *Lookup {
	sizeBytes = uint64(math.Pow(2, math.Ceil(math.Log2(float64(sizeBytes)))))
	if sizeBytes < 8 {
		sizeBytes = 8
	}
	slots := sizeBytes / 8
	// prealloc to trigger any mem issues upfront
	return &Lookup{hashes: make([]uint64, slots), slotMask: slots - 1}
}

// SeenAndMark reports whether id was already recorded, marking it as seen
// either way.
func (l *Lookup) SeenAndMark(id string) bool {
	prom.DedupeCacheLookups.Inc()
	h := xxhash.Sum64String(id)
	old := swapSlot(l.hashes, h&l.slotMask, h)
	if old == h {
		prom.DedupeCacheHits.Inc()
	} else if old != 0 {
		prom.CacheCollisions.Inc()
	}
	return old == h
}

// swapSlot replaces the value at index and returns the previous content.
func swapSlot(arr []uint64, index uint64, val uint64) uint64 {
	slot := &arr[index]
	for {
		old := atomic.LoadUint64(slot)
		if atomic.CompareAndSwapUint64(slot, old, val) {
			return old
		}
	}
}
