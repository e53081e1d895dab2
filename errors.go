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
	"errors"
	"fmt"
)

var (
	ErrConfigInvalid      error = errors.New("invalid decoder configuration")
	ErrTemplateNotFound   error = errors.New("template not found")
	ErrTemplateExpired    error = errors.New("template expired")
	ErrTemplateRejected   error = errors.New("template rejected by validator")
	ErrUnknownField       error = errors.New("unknown field in template")
	ErrUnsupportedVersion error = errors.New("unsupported protocol version")
	ErrTruncatedPacket    error = errors.New("truncated packet")
	ErrLengthMismatch     error = errors.New("flowset length mismatch")
	ErrCacheNotWritable   error = errors.New("template cache file not writable")
)

func ConfigInvalid(reason string, err error) error {
	if err != nil {
		return fmt.Errorf("%w: %s, %w", ErrConfigInvalid, reason, err)
	}
	return fmt.Errorf("%w: %s", ErrConfigInvalid, reason)
}

func TemplateNotFound(key TemplateKey) error {
	return fmt.Errorf("%w for id %d in domain %d", ErrTemplateNotFound, key.TemplateId, key.SourceId)
}

func TemplateExpired(key TemplateKey) error {
	return fmt.Errorf("%w for id %d in domain %d", ErrTemplateExpired, key.TemplateId, key.SourceId)
}

func UnknownField(fieldType uint16, enterpriseId uint32, length uint16) error {
	return fmt.Errorf("%w: type %d, enterprise %d, length %d", ErrUnknownField, fieldType, enterpriseId, length)
}

func UnsupportedVersion(version uint16) error {
	return fmt.Errorf("%w %d, only 5, 9 and 10 are specified", ErrUnsupportedVersion, version)
}

func TruncatedPacket(version uint16, have, want int) error {
	return fmt.Errorf("%w: version %d needs %d bytes, got %d", ErrTruncatedPacket, version, want, have)
}

func LengthMismatch(templateId uint16, width, available int) error {
	return fmt.Errorf("%w: template %d is %d bytes wide, flowset carries %d", ErrLengthMismatch, templateId, width, available)
}
