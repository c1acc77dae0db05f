// Package serialize turns optimizer result tables into JSON-safe records.
package serialize

import (
	"bytes"
	"encoding/json"
	"math"

	"github.com/microgrid-sizing/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

// Record is one table row as an ordered column to value mapping. Its JSON
// and msgpack encodings keep the column order.
type Record struct {
	keys   []string
	values []any
}

// NewRecord pairs keys with values by position. Missing values are nil.
func NewRecord(keys []string, values []any) Record {
	r := Record{keys: keys, values: make([]any, len(keys))}
	copy(r.values, values)
	return r
}

// Keys returns the column names in order.
func (r Record) Keys() []string { return r.keys }

// Get returns the value of a column.
func (r Record) Get(key string) (any, bool) {
	for i, k := range r.keys {
		if k == key {
			return r.values[i], true
		}
	}
	return nil, false
}

// Map returns the record as an unordered map.
func (r Record) Map() map[string]any {
	m := make(map[string]any, len(r.keys))
	for i, k := range r.keys {
		m[k] = r.values[i]
	}
	return m
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var _ msgpack.CustomEncoder = Record{}

func (r Record) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(len(r.keys)); err != nil {
		return err
	}
	for i, k := range r.keys {
		if err := enc.EncodeString(k); err != nil {
			return err
		}
		if err := enc.Encode(r.values[i]); err != nil {
			return err
		}
	}
	return nil
}

// Records converts a result value to its serializable form. Tables become
// row records with missing cells and non-finite floats replaced by 0; maps pass through
// unchanged; nil becomes an empty slice. Other values are returned as is.
func Records(v any) any {
	switch t := v.(type) {
	case nil:
		return []Record{}
	case *models.Table:
		return tableRecords(t)
	case models.Table:
		return tableRecords(&t)
	case map[string]any:
		return t
	default:
		return v
	}
}

func tableRecords(t *models.Table) []Record {
	if t == nil {
		return []Record{}
	}
	out := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		r := NewRecord(t.Columns, row)
		for i, v := range r.values {
			r.values[i] = Sanitize(v)
		}
		out = append(out, r)
	}
	return out
}

// Sanitize replaces missing values, NaN and infinite floats with 0.
func Sanitize(v any) any {
	switch f := v.(type) {
	case nil:
		return 0.0
	case float64:
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0.0
		}
	case float32:
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return float32(0)
		}
	}
	return v
}
