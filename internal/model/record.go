package model

import (
	"bytes"
	"encoding/json"
)

type Field struct {
	Name  string
	Value any
}

// Record is a row keyed by column name. It keeps column order when encoded
// to JSON, unlike a map.
type Record []Field

func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

func (r Record) Names() []string {
	names := make([]string, len(r))
	for i, f := range r {
		names[i] = f.Name
	}
	return names
}

func (r Record) Values() []any {
	values := make([]any, len(r))
	for i, f := range r {
		values[i] = f.Value
	}
	return values
}

// Set replaces the value of an existing field or appends a new one.
func (r Record) Set(name string, value any) Record {
	for i := range r {
		if r[i].Name == name {
			r[i].Value = value
			return r
		}
	}
	return append(r, Field{Name: name, Value: value})
}

func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FilterRecord keeps the payload entries whose key is in allowed, in the
// order of allowed. Unknown keys are dropped silently.
func FilterRecord(payload map[string]any, allowed []string) Record {
	out := Record{}
	for _, name := range allowed {
		if v, ok := payload[name]; ok {
			out = append(out, Field{Name: name, Value: v})
		}
	}
	return out
}
