package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// IDField is the Baserow row identifier field.
const IDField = "id"

// Record is one Baserow row keyed by user field names. Values are strings,
// json.Number, bool, nil or nested JSON structures, passed through untouched.
type Record map[string]any

// ID returns the integer row id. ok is false when the field is absent or not an integer.
func (r Record) ID() (id int64, ok bool) {
	switch v := r[IDField].(type) {
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case int:
		return int64(v), true
	case int64:
		return v, true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// Text returns field as display text, or fallback when the field is absent,
// null or empty.
func (r Record) Text(field, fallback string) string {
	v, ok := r[field]
	if !ok || v == nil {
		return fallback
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case map[string]any:
		// Baserow single-select / link values carry a "value" or "name" key
		if x, ok := t["value"]; ok {
			s = fmt.Sprint(x)
		} else if x, ok := t["name"]; ok {
			s = fmt.Sprint(x)
		}
	default:
		s = fmt.Sprint(t)
	}
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// Decode parses a JSON object into a Record, keeping numbers as json.Number.
func Decode(b []byte) (Record, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var r Record
	if err := dec.Decode(&r); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("record is null")
	}
	return r, nil
}
