package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"slices"
)

// Meta is the free-form JSON property bag carried by models, columns and views.
// It is persisted as a JSON string.
type Meta map[string]any

// ParseMeta decodes a stored meta string. Malformed or empty input yields an
// empty Meta.
func ParseMeta(raw string) Meta {
	m := Meta{}
	if raw == "" {
		return m
	}
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		return Meta{}
	}
	return m
}

// ToMeta normalizes a meta value that may arrive as a JSON string, a map or
// nothing at all.
func ToMeta(v any) Meta {
	switch t := v.(type) {
	case nil:
		return Meta{}
	case Meta:
		return t.Clone()
	case map[string]any:
		return Meta(t).Clone()
	case string:
		return ParseMeta(t)
	case []byte:
		return ParseMeta(string(t))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Meta{}
	}
	return ParseMeta(string(b))
}

// UnmarshalJSON accepts an object or a JSON string holding one, the form meta
// is stored in.
func (m *Meta) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*m = nil
		return nil
	case len(data) > 0 && data[0] == '"':
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*m = ParseMeta(raw)
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*m = Meta(obj)
	return nil
}

// rawToString keeps JSON strings as their text and compacts any other
// payload into string form.
func rawToString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")):
		return "", nil
	case raw[0] == '"':
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (m Meta) String() string {
	if m == nil {
		return "{}"
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func (m Meta) Clone() Meta {
	out := make(Meta, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m Meta) Bool(key string) bool {
	v, _ := m[key].(bool)
	return v
}

// StringifyJSON returns v as a JSON string, passing strings through unchanged.
func StringifyJSON(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case json.RawMessage:
		return string(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// Float returns a pointer to v, for order fields.
func Float(v float64) *float64 { return &v }

// OrderValue treats a missing order as greater than any number.
func OrderValue(o *float64) float64 {
	if o == nil {
		return math.Inf(1)
	}
	return *o
}

// SortByOrder sorts items ascending by order with missing orders last. The
// sort is stable so equal orders keep their incoming sequence.
func SortByOrder[T any](items []T, order func(*T) *float64) {
	slices.SortStableFunc(items, func(a, b T) int {
		oa, ob := OrderValue(order(&a)), OrderValue(order(&b))
		switch {
		case oa < ob:
			return -1
		case oa > ob:
			return 1
		}
		return 0
	})
}
