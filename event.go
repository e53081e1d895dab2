package netflow

import (
	"bytes"
	"encoding/json"
)

// Event is the canonical decoded record: an insertion-ordered mapping
// from field name to scalar value. Order matters because downstream
// consumers serialize events as they arrived on the wire, synthesized
// header fields first.
type Event struct {
	keys   []string
	values map[string]interface{}
}

func NewEvent() *Event {
	return &Event{
		keys:   make([]string, 0, 16),
		values: make(map[string]interface{}, 16),
	}
}

// Set stores value under name, keeping the position of an existing key.
func (e *Event) Set(name string, value interface{}) {
	if _, ok := e.values[name]; !ok {
		e.keys = append(e.keys, name)
	}
	e.values[name] = value
}

// SetDefault stores value only when name is not present yet. Used by
// sampler decoration, which must never overwrite decoded fields.
func (e *Event) SetDefault(name string, value interface{}) {
	if _, ok := e.values[name]; ok {
		return
	}
	e.Set(name, value)
}

// Get returns the value stored under name.
func (e *Event) Get(name string) (interface{}, bool) {
	v, ok := e.values[name]
	return v, ok
}

// Has reports whether name is present.
func (e *Event) Has(name string) bool {
	_, ok := e.values[name]
	return ok
}

// Len returns the number of fields.
func (e *Event) Len() int {
	return len(e.keys)
}

// Keys returns the field names in insertion order. The returned slice is
// the event's own backing array and must not be mutated.
func (e *Event) Keys() []string {
	return e.keys
}

// MarshalJSON serializes the event as a JSON object in insertion order.
func (e *Event) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range e.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(e.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
