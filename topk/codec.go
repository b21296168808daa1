package topk

import (
	"encoding/binary"
	"fmt"
)

/*
Wire format, all integers unsigned LEB128 varints:

	[sentinel 0x00]        only when error tracking is enabled
	entryCount             always >= 1, so its first byte is never 0x00
	per entry:
	  keyLen, keyBytes (UTF-8), count, [errorBound]

An empty tracker encodes to zero bytes. The sentinel disambiguation relies
on "empty map => zero-length output" and "entry count >= 1" holding; do not
weaken either invariant.
*/

// MarshalBinary encodes the tracker's entries and, when enabled, their
// error bounds. The cached minimum is not serialized.
func (t *Topper) MarshalBinary() ([]byte, error) {
	if len(t.entries) == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, 0, 16*len(t.entries))
	if t.errors != nil {
		buf = append(buf, 0)
	}
	buf = binary.AppendUvarint(buf, uint64(len(t.entries)))
	for k, v := range t.entries {
		buf = binary.AppendUvarint(buf, uint64(len(k)))
		buf = append(buf, k...)
		buf = binary.AppendUvarint(buf, v)
		if t.errors != nil {
			buf = binary.AppendUvarint(buf, t.errors[k])
		}
	}
	return buf, nil
}

// UnmarshalBinary reconstructs the tracker from bytes produced by
// MarshalBinary, replacing current contents. A leading zero byte marks the
// error tracking format. The cached minimum is left unset and regenerated
// lazily. On error the tracker is unchanged.
func (t *Topper) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		t.entries = make(map[string]uint64)
		t.errors = nil
		t.minSet = false
		t.minKey = ""
		t.minVal = 0
		return nil
	}
	hasErrors := false
	if b[0] == 0 {
		hasErrors = true
		b = b[1:]
	}
	size, n := binary.Uvarint(b)
	if n <= 0 {
		return fmt.Errorf("topk: decode failed reading entry count")
	}
	b = b[n:]
	entries := make(map[string]uint64, size)
	var errors map[string]uint64
	if hasErrors {
		errors = make(map[string]uint64, size)
	}
	for i := uint64(0); i < size; i++ {
		keyLen, n := binary.Uvarint(b)
		if n <= 0 {
			return fmt.Errorf("topk: decode failed reading key length of entry %d", i)
		}
		b = b[n:]
		if uint64(len(b)) < keyLen {
			return fmt.Errorf("topk: decode truncated inside key of entry %d", i)
		}
		key := string(b[:keyLen])
		b = b[keyLen:]
		count, n := binary.Uvarint(b)
		if n <= 0 {
			return fmt.Errorf("topk: decode failed reading count of entry %d (%q)", i, key)
		}
		b = b[n:]
		entries[key] = count
		if hasErrors {
			bound, n := binary.Uvarint(b)
			if n <= 0 {
				return fmt.Errorf("topk: decode failed reading error bound of entry %d (%q)", i, key)
			}
			b = b[n:]
			if bound != 0 {
				errors[key] = bound
			}
		}
	}
	t.entries = entries
	t.errors = errors
	t.minSet = false
	t.minKey = ""
	t.minVal = 0
	return nil
}

// BytesEncode is the versioned form of MarshalBinary. The version parameter
// is part of the external codec contract but the format does not consult it.
func (t *Topper) BytesEncode(version uint64) ([]byte, error) {
	_ = version
	return t.MarshalBinary()
}

// BytesDecode is the versioned form of UnmarshalBinary.
func (t *Topper) BytesDecode(b []byte, version uint64) error {
	_ = version
	return t.UnmarshalBinary(b)
}
