package schemas

import (
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// -- Permissive Records --

// Record is a permissive, map-backed JSON object. The upstream API adds fields
// between releases and leaves most of them nullable, so resources are decoded into
// a Record and read through typed accessors instead of fixed structs.
//
// Every accessor takes a path of object keys and returns (value, ok). A missing key,
// an explicit null, or a value of the wrong type all yield ok == false. Accessors
// never allocate intermediate objects.
type Record map[string]interface{}

// DecodeRecord decodes a JSON object into a Record.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return r, nil
}

// Lookup returns the raw value at path.
func (r Record) Lookup(path ...string) (interface{}, bool) {
	if r == nil || len(path) == 0 {
		return nil, false
	}
	var cur interface{} = map[string]interface{}(r)
	for _, key := range path {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// Map returns the nested object at path.
func (r Record) Map(path ...string) (Record, bool) {
	v, ok := r.Lookup(path...)
	if !ok {
		return nil, false
	}
	m, ok := asMap(v)
	if !ok {
		return nil, false
	}
	return Record(m), true
}

// String returns the string at path. Numbers and booleans are formatted, since the
// Jamf APIs are inconsistent about quoting ids.
func (r Record) String(path ...string) (string, bool) {
	v, ok := r.Lookup(path...)
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

// Float returns the number at path. Numeric strings are accepted.
func (r Record) Float(path ...string) (float64, bool) {
	v, ok := r.Lookup(path...)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// Int returns the number at path truncated to an int.
func (r Record) Int(path ...string) (int, bool) {
	f, ok := r.Float(path...)
	if !ok {
		return 0, false
	}
	return int(f), true
}

// Bool returns the boolean at path. The strings "true"/"false" are accepted.
func (r Record) Bool(path ...string) (bool, bool) {
	v, ok := r.Lookup(path...)
	if !ok {
		return false, false
	}
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}

// timeLayouts are the timestamp shapes seen across the Pro and Classic APIs.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006/01/02 at 3:04 PM",
	"2006-01-02",
}

// Time parses the timestamp at path. Epoch milliseconds are accepted for numbers.
func (r Record) Time(path ...string) (time.Time, bool) {
	v, ok := r.Lookup(path...)
	if !ok {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(t)).UTC(), true
	case string:
		return ParseTime(t)
	}
	return time.Time{}, false
}

// ParseTime parses s with the layouts the Jamf APIs emit.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// Records returns the array of objects at path. Non-object elements are skipped.
func (r Record) Records(path ...string) []Record {
	v, ok := r.Lookup(path...)
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		// A single repeated XML element decodes as an object rather than a list.
		if m, isMap := asMap(v); isMap {
			return []Record{Record(m)}
		}
		return nil
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if m, ok := asMap(item); ok {
			out = append(out, Record(m))
		}
	}
	return out
}

// Strings returns the array of strings at path. Non-string elements are skipped.
func (r Record) Strings(path ...string) []string {
	v, ok := r.Lookup(path...)
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return t, true
	case Record:
		return t, true
	}
	return nil, false
}
