package dedupe

import (
	"math/rand"
	"testing"
)

var result bool

func TestLookup(t *testing.T) {
	l := New(16)
	shouldNotContain(t, "Empty lookup", l, "aaaaaa")
	shouldContain(t, "Last set", l, "aaaaaa")
	shouldNotContain(t, "New non colliding value", l, "bbbbbb")
	shouldContain(t, "Still set", l, "aaaaaa")
	shouldContain(t, "Last set", l, "bbbbbb")
	shouldNotContain(t, "New colliding value", l, "cccccc")
	shouldNotContain(t, "New colliding value", l, "dddddd")
	shouldNotContain(t, "Was evicted", l, "bbbbbb")
}

func BenchmarkLookup(b *testing.B) {
	l := New(100000)
	var seed [1000][]byte
	for i := 0; i < len(seed); i++ {
		seed[i] = make([]byte, 200)
		rand.Read(seed[i])
	}
	b.ReportAllocs()
	for n := 0; n < b.N; n++ {
		val := seed[rand.Intn(len(seed))]
		result = l.SeenAndMark(string(val))
	}
}

func shouldContain(t *testing.T, msg string, l *Lookup, id string) {
	if !l.SeenAndMark(id) {
		t.Errorf("should contain, %s: id %q, table: %v", msg, id, l.hashes)
	}
}

func shouldNotContain(t *testing.T, msg string, l *Lookup, id string) {
	if l.SeenAndMark(id) {
		t.Errorf("should not contain, %s: %q", msg, id)
	}
}
