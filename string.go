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
	"strings"
)

// String reads a fixed-length string field. Exporters right-pad string
// fields with NUL (some with spaces), so padding is trimmed after reading.
type String struct {
	name   string
	length int
}

func NewString(name string, length int) *String {
	return &String{name: name, length: length}
}

func (s *String) Name() string {
	return s.name
}

func (s *String) Width() (int, bool) {
	return s.length, true
}

func (s *String) Decode(r io.Reader) (interface{}, error) {
	b, err := readFull(r, s.length)
	if err != nil {
		return nil, err
	}
	return strings.TrimRight(string(b), "\x00 "), nil
}

// VarString reads a variable-length string field, announced in the
// template with the sentinel length 0xFFFF and length-prefixed inline.
type VarString struct {
	name string
}

func NewVarString(name string) *VarString {
	return &VarString{name: name}
}

func (s *VarString) Name() string {
	return s.name
}

func (s *VarString) Width() (int, bool) {
	return 0, false
}

func (s *VarString) Decode(r io.Reader) (interface{}, error) {
	n, err := readVariableLength(r)
	if err != nil {
		return nil, err
	}
	b, err := readFull(r, n)
	if err != nil {
		return nil, err
	}
	return strings.TrimRight(string(b), "\x00 "), nil
}
