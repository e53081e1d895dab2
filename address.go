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
	"net"
)

// IPv4Address reads a 4-byte address and renders it dotted.
type IPv4Address struct {
	name string
}

func NewIPv4Address(name string) *IPv4Address {
	return &IPv4Address{name: name}
}

func (a *IPv4Address) Name() string {
	return a.name
}

func (a *IPv4Address) Width() (int, bool) {
	return net.IPv4len, true
}

func (a *IPv4Address) Decode(r io.Reader) (interface{}, error) {
	b, err := readFull(r, net.IPv4len)
	if err != nil {
		return nil, err
	}
	return net.IP(b).String(), nil
}

// IPv6Address reads a 16-byte address and renders it in RFC 5952 form.
type IPv6Address struct {
	name string
}

func NewIPv6Address(name string) *IPv6Address {
	return &IPv6Address{name: name}
}

func (a *IPv6Address) Name() string {
	return a.name
}

func (a *IPv6Address) Width() (int, bool) {
	return net.IPv6len, true
}

func (a *IPv6Address) Decode(r io.Reader) (interface{}, error) {
	b, err := readFull(r, net.IPv6len)
	if err != nil {
		return nil, err
	}
	return net.IP(b).String(), nil
}

// MacAddress reads a 6-byte EUI-48 address and renders it colon-separated.
type MacAddress struct {
	name string
}

func NewMacAddress(name string) *MacAddress {
	return &MacAddress{name: name}
}

func (a *MacAddress) Name() string {
	return a.name
}

func (a *MacAddress) Width() (int, bool) {
	return 6, true
}

func (a *MacAddress) Decode(r io.Reader) (interface{}, error) {
	b, err := readFull(r, 6)
	if err != nil {
		return nil, err
	}
	return net.HardwareAddr(b).String(), nil
}
