/*
Copyright 2023 Alexander Bartolomey (github@alexanderbartolomey.de)

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package netflow

import (
	"io"
)

const (
	// VariableLength is the sentinel wire length in template records denoting
	// a variable-length encoded field whose actual length is prefixed inline.
	VariableLength uint16 = 0xFFFF

	// penMask marks enterprise-specific field ids in IPFIX template records.
	penMask uint16 = 0x8000
)

// FieldSpec describes how to read a single field from a record's byte
// stream. Specs are produced by the layout resolver from a template's raw
// field triples and are immutable once resolved; decoding never mutates
// the spec, so a resolved template may be shared across goroutines.
type FieldSpec interface {
	// Name returns the field name the decoded value is stored under in the
	// event. Skip specs return the empty string, their bytes are discarded.
	Name() string

	// Width returns the fixed number of bytes the spec consumes on the
	// wire, or false when the field is variable-length encoded.
	Width() (int, bool)

	// Decode reads the field's bytes from r and returns the decoded value.
	// Specs that discard their bytes return a nil value.
	Decode(r io.Reader) (interface{}, error)
}

// RawField is one (type, length, enterprise) triple as carried in a
// template record, before resolution against the field dictionary. The
// persisted IPFIX template cache stores these raw triples so that the
// on-disk form survives dictionary updates.
type RawField struct {
	Type         uint16 `json:"field_type"`
	Length       uint16 `json:"field_length"`
	EnterpriseId uint32 `json:"enterprise_id,omitempty"`

	// Scope marks NetFlow v9 options-template scope fields, which resolve
	// against the dictionary's scope category instead of the option one.
	Scope bool `json:"scope,omitempty"`
}

// readFull reads exactly n bytes from r.
func readFull(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := io.ReadFull(r, b)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// readVariableLength reads the 1-byte (short form) or 3-byte (long form)
// length prefix of a variable-length encoded field as per RFC 7011.
func readVariableLength(r io.Reader) (int, error) {
	b, err := readFull(r, 1)
	if err != nil {
		return 0, err
	}
	if b[0] < 0xFF {
		return int(b[0]), nil
	}
	l, err := readFull(r, 2)
	if err != nil {
		return 0, err
	}
	return int(l[0])<<8 | int(l[1]), nil
}
