package topk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, in *Topper) *Topper {
	t.Helper()
	data, err := in.BytesEncode(1)
	require.NoError(t, err)
	out := New(in.Lossy())
	require.NoError(t, out.BytesDecode(data, 1))
	return out
}

func requireSameEntries(t *testing.T, want, got *Topper) {
	t.Helper()
	require.Equal(t, want.Size(), got.Size())
	for _, e := range want.SortedEntries() {
		count, ok := got.Get(e.Key)
		require.True(t, ok, "missing key %q", e.Key)
		require.Equal(t, e.Count, count, "count mismatch for %q", e.Key)
		wantBound, wantOK := want.Error(e.Key)
		gotBound, gotOK := got.Error(e.Key)
		require.Equal(t, wantOK, gotOK)
		require.Equal(t, wantBound, gotBound)
	}
}

func TestRoundTripEmpty(t *testing.T) {
	topper := New(false)
	data, err := topper.BytesEncode(1)
	require.NoError(t, err)
	require.Len(t, data, 0)

	out := roundTrip(t, topper)
	require.Equal(t, 0, out.Size())
	require.False(t, out.HasErrors())
}

func TestRoundTrip(t *testing.T) {
	topper := New(false)
	for i := 0; i < 40; i++ {
		_, err := topper.Update(fmt.Sprintf("key-%d", i), uint64(i)*1000003, 50)
		require.NoError(t, err)
	}
	// a count large enough to need the full varint width
	_, err := topper.Update("big", 1<<62, 50)
	require.NoError(t, err)

	out := roundTrip(t, topper)
	require.False(t, out.HasErrors())
	requireSameEntries(t, topper, out)

	// the cached minimum is recoverable after decode
	out.recreateMinimum(true)
	topper.recreateMinimum(true)
	require.Equal(t, topper.MinVal(), out.MinVal())
}

func TestRoundTripWithErrors(t *testing.T) {
	const capacity = 3
	topper := New(true)
	topper.EnableErrors(true)
	for i := 0; i < 10; i++ {
		_, err := topper.Increment(fmt.Sprintf("key-%d", i%5), uint64(i+1), capacity)
		require.NoError(t, err)
	}
	require.True(t, topper.HasErrors())

	out := roundTrip(t, topper)
	require.True(t, out.HasErrors())
	requireSameEntries(t, topper, out)
}

func TestSentinelDisambiguation(t *testing.T) {
	// without error tracking the first byte is the entry count varint,
	// which can never be zero for a non-empty tracker
	topper := New(false)
	for i := 0; i < 200; i++ {
		_, err := topper.Update(fmt.Sprintf("key-%d", i), uint64(i+1), 500)
		require.NoError(t, err)
	}
	data, err := topper.BytesEncode(1)
	require.NoError(t, err)
	require.NotEqual(t, byte(0), data[0])

	withErrors := New(false)
	withErrors.EnableErrors(true)
	_, err = withErrors.Update("a", 1, 5)
	require.NoError(t, err)
	data, err = withErrors.BytesEncode(1)
	require.NoError(t, err)
	require.Equal(t, byte(0), data[0])
}

func TestDecodeTruncated(t *testing.T) {
	topper := New(false)
	_, err := topper.Update("some-key", 77, 5)
	require.NoError(t, err)
	data, err := topper.BytesEncode(1)
	require.NoError(t, err)

	for cut := 1; cut < len(data); cut++ {
		out := New(false)
		if err := out.BytesDecode(data[:cut], 1); err == nil {
			t.Errorf("decoding %d of %d bytes did not fail", cut, len(data))
		}
	}
}

func TestDecodeLeavesTrackerUsable(t *testing.T) {
	topper := New(false)
	_, err := topper.Update("a", 1, 5)
	require.NoError(t, err)
	require.Error(t, topper.BytesDecode([]byte{5}, 1))

	// failed decode did not clobber the tracked state
	count, ok := topper.Get("a")
	require.True(t, ok)
	require.Equal(t, uint64(1), count)
	_, err = topper.Update("b", 2, 5)
	require.NoError(t, err)
}

func TestDecodedTrackerRecomputesMinimum(t *testing.T) {
	src := New(false)
	_, err := src.Update("a", 5, 3)
	require.NoError(t, err)
	_, err = src.Update("b", 3, 3)
	require.NoError(t, err)

	topper := roundTrip(t, src)

	// an under-capacity insert after decoding must not hide the smaller
	// decoded entry behind a freshly seeded minimum cache
	dropped, err := topper.Update("c", 4, 3)
	require.NoError(t, err)
	require.Equal(t, "", dropped)

	// the tracker is full, admission compares against the true minimum
	dropped, err = topper.Update("d", 3, 3)
	require.NoError(t, err)
	require.Equal(t, "b", dropped)

	count, ok := topper.Get("d")
	require.True(t, ok)
	require.Equal(t, uint64(3), count)
	_, ok = topper.Get("b")
	require.False(t, ok)
}
