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
	"fmt"
	"io"
)

// Unsigned reads a big-endian unsigned integer of between 1 and 8 bytes.
// Sub-width encodings (e.g. an unsigned64 counter exported with a wire
// length of 4) are handled by constructing the spec with the wire length.
type Unsigned struct {
	name  string
	width int
}

func NewUnsigned(name string, width int) (*Unsigned, error) {
	if width < 1 || width > 8 {
		return nil, fmt.Errorf("unsigned integer width %d out of range", width)
	}
	return &Unsigned{name: name, width: width}, nil
}

func (u *Unsigned) Name() string {
	return u.name
}

func (u *Unsigned) Width() (int, bool) {
	return u.width, true
}

func (u *Unsigned) Decode(r io.Reader) (interface{}, error) {
	b, err := readFull(r, u.width)
	if err != nil {
		return nil, err
	}
	var v uint64
	for _, octet := range b {
		v = v<<8 | uint64(octet)
	}
	return v, nil
}
