package netflow

import (
	"fmt"
	"io"
)

// ApplicationId reads an RFC 6759 application identifier: a 1-byte
// classification engine id followed by a selector whose width is the
// remainder of the field's wire length. Rendered as "engine:selector",
// the form NBAR exports are usually matched against.
type ApplicationId struct {
	name   string
	length int
}

func NewApplicationId(name string, length int) (*ApplicationId, error) {
	if length < 2 {
		return nil, fmt.Errorf("application id needs at least 2 bytes, got %d", length)
	}
	return &ApplicationId{name: name, length: length}, nil
}

func (a *ApplicationId) Name() string {
	return a.name
}

func (a *ApplicationId) Width() (int, bool) {
	return a.length, true
}

func (a *ApplicationId) Decode(r io.Reader) (interface{}, error) {
	b, err := readFull(r, a.length)
	if err != nil {
		return nil, err
	}
	var selector uint64
	for _, octet := range b[1:] {
		selector = selector<<8 | uint64(octet)
	}
	return fmt.Sprintf("%d:%d", b[0], selector), nil
}
