/*
Package records wraps a JSON document with the narrow field operations the
filter pipeline needs: read a field as string, read a typed value, read a
count, remove a field, and rewrite an array field in place.
*/
package records

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Record is one structured record flowing through the pipeline, held as
// raw JSON bytes. Field names are gjson paths.
type Record struct {
	data []byte
}

// FromJSON validates the document and wraps it. The bytes are retained, not
// copied.
func FromJSON(data []byte) (*Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("records: input is not valid json")
	}
	return &Record{data: data}, nil
}

// Bytes returns the record's current serialized form.
func (r *Record) Bytes() []byte { return r.data }

// GetString reads a field as a string. A missing or null field reports
// false. Non-string scalars are stringified.
func (r *Record) GetString(path string) (string, bool) {
	res := gjson.GetBytes(r.data, path)
	if !res.Exists() || res.Type == gjson.Null {
		return "", false
	}
	return res.String(), true
}

// GetValue reads a field as a typed value; callers branch on whether it is
// an array or a scalar. A missing field reports Exists() false.
func (r *Record) GetValue(path string) gjson.Result {
	return gjson.GetBytes(r.data, path)
}

// GetCount reads a field as an integer count. A missing, null or
// non-numeric field reports false.
func (r *Record) GetCount(path string) (int64, bool) {
	res := gjson.GetBytes(r.data, path)
	if !res.Exists() || res.Type != gjson.Number {
		return 0, false
	}
	return res.Int(), true
}

// Remove deletes a field from the record.
func (r *Record) Remove(path string) error {
	out, err := sjson.DeleteBytes(r.data, path)
	if err != nil {
		return fmt.Errorf("records: removing %q: %w", path, err)
	}
	r.data = out
	return nil
}

// SetRawArray replaces an array field with the given raw JSON elements,
// preserving their order. Used to write back the survivors of an in-place
// array filtering pass.
func (r *Record) SetRawArray(path string, raws []string) error {
	arr := []byte{'['}
	for i, raw := range raws {
		if i > 0 {
			arr = append(arr, ',')
		}
		arr = append(arr, raw...)
	}
	arr = append(arr, ']')
	out, err := sjson.SetRawBytes(r.data, path, arr)
	if err != nil {
		return fmt.Errorf("records: rewriting array %q: %w", path, err)
	}
	r.data = out
	return nil
}
