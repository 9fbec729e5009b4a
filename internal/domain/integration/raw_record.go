package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RawRecord is one untyped platform record as decoded from the wire.
// Numbers are kept as json.Number so that order ids and amounts survive
// without float rounding.
type RawRecord map[string]any

// DecodeRawRecords decodes a JSON array of objects into raw records
func DecodeRawRecords(data []byte) ([]RawRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var records []RawRecord
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode raw records: %w", err)
	}
	return records, nil
}

// Lookup resolves a dot separated path such as "post_addr.province".
// Missing keys, nil values and non-object intermediates report false.
func (r RawRecord) Lookup(path string) (any, bool) {
	var cur any = map[string]any(r)
	for _, part := range strings.Split(path, ".") {
		var m map[string]any
		switch v := cur.(type) {
		case map[string]any:
			m = v
		case RawRecord:
			m = v
		default:
			return nil, false
		}
		next, ok := m[part]
		if !ok || next == nil {
			return nil, false
		}
		cur = next
	}
	return cur, true
}

// String returns the value at path rendered as a trimmed string
func (r RawRecord) String(path string) (string, bool) {
	v, ok := r.Lookup(path)
	if !ok {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		s = strconv.Itoa(t)
	case int64:
		s = strconv.FormatInt(t, 10)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// FirstString returns the first non-empty string among the paths, in order
func (r RawRecord) FirstString(paths []string) (string, string, bool) {
	for _, p := range paths {
		if s, ok := r.String(p); ok {
			return s, p, true
		}
	}
	return "", "", false
}

// Decimal parses the value at path as a decimal. Present-but-unparsable
// values return an error so callers can reject the record.
func (r RawRecord) Decimal(path string) (decimal.Decimal, bool, error) {
	s, ok := r.String(path)
	if !ok {
		return decimal.Zero, false, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, true, fmt.Errorf("not a number: %q", s)
	}
	return d, true, nil
}

// Int parses the value at path as an integer
func (r RawRecord) Int(path string) (int64, bool, error) {
	d, ok, err := r.Decimal(path)
	if !ok || err != nil {
		return 0, ok, err
	}
	if !d.IsInteger() {
		return 0, true, fmt.Errorf("not an integer: %s", d.String())
	}
	if d.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || d.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, true, fmt.Errorf("out of range: %s", d.String())
	}
	return d.IntPart(), true, nil
}

// Records returns the list of objects at path
func (r RawRecord) Records(path string) []RawRecord {
	v, ok := r.Lookup(path)
	if !ok {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]RawRecord, 0, len(items))
	for _, item := range items {
		switch m := item.(type) {
		case map[string]any:
			out = append(out, RawRecord(m))
		case RawRecord:
			out = append(out, m)
		}
	}
	return out
}
