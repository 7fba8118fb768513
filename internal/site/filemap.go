package site

import (
	"bytes"
	"encoding/json"
)

// FileMap is a filename -> content mapping that remembers insertion order.
// Setting an existing key replaces its content in place.
type FileMap struct {
	keys   []string
	values map[string]string
}

// NewFileMap returns an empty map.
func NewFileMap() *FileMap {
	return &FileMap{values: map[string]string{}}
}

// Set inserts or replaces name.
func (m *FileMap) Set(name, content string) {
	if _, ok := m.values[name]; !ok {
		m.keys = append(m.keys, name)
	}
	m.values[name] = content
}

// Get returns the content stored under name.
func (m *FileMap) Get(name string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m.values[name]
	return v, ok
}

// Has reports whether name is present.
func (m *FileMap) Has(name string) bool {
	_, ok := m.Get(name)
	return ok
}

// Len returns the number of files.
func (m *FileMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Names returns filenames in insertion order.
func (m *FileMap) Names() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.keys...)
}

// Each calls fn for every file in insertion order.
func (m *FileMap) Each(fn func(name, content string)) {
	if m == nil {
		return
	}
	for _, k := range m.keys {
		fn(k, m.values[k])
	}
}

// MarshalJSON encodes the map as a JSON object preserving insertion order.
func (m *FileMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
