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
	"encoding/hex"
	"io"
)

// OctetArray reads an opaque byte field of the length announced in the
// template and renders it as a lowercase hex string.
type OctetArray struct {
	name   string
	length int
}

func NewOctetArray(name string, length int) *OctetArray {
	return &OctetArray{name: name, length: length}
}

func (o *OctetArray) Name() string {
	return o.name
}

func (o *OctetArray) Width() (int, bool) {
	return o.length, true
}

func (o *OctetArray) Decode(r io.Reader) (interface{}, error) {
	b, err := readFull(r, o.length)
	if err != nil {
		return nil, err
	}
	return hex.EncodeToString(b), nil
}

// VarOctetArray reads a variable-length encoded opaque byte field.
type VarOctetArray struct {
	name string
}

func NewVarOctetArray(name string) *VarOctetArray {
	return &VarOctetArray{name: name}
}

func (o *VarOctetArray) Name() string {
	return o.name
}

func (o *VarOctetArray) Width() (int, bool) {
	return 0, false
}

func (o *VarOctetArray) Decode(r io.Reader) (interface{}, error) {
	n, err := readVariableLength(r)
	if err != nil {
		return nil, err
	}
	b, err := readFull(r, n)
	if err != nil {
		return nil, err
	}
	return hex.EncodeToString(b), nil
}

// Skip discards a fixed number of bytes.
type Skip struct {
	length int
}

func NewSkip(length int) *Skip {
	return &Skip{length: length}
}

func (s *Skip) Name() string {
	return ""
}

func (s *Skip) Width() (int, bool) {
	return s.length, true
}

func (s *Skip) Decode(r io.Reader) (interface{}, error) {
	if _, err := readFull(r, s.length); err != nil {
		return nil, err
	}
	return nil, nil
}

// VarSkip discards a variable-length encoded field.
type VarSkip struct{}

func NewVarSkip() *VarSkip {
	return &VarSkip{}
}

func (s *VarSkip) Name() string {
	return ""
}

func (s *VarSkip) Width() (int, bool) {
	return 0, false
}

func (s *VarSkip) Decode(r io.Reader) (interface{}, error) {
	n, err := readVariableLength(r)
	if err != nil {
		return nil, err
	}
	if _, err := readFull(r, n); err != nil {
		return nil, err
	}
	return nil, nil
}
