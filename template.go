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
	"strings"
)

// Template is a resolved record layout: the ordered field specs of one
// template record, plus the raw triples they were resolved from. The raw
// triples are kept because the persisted IPFIX cache stores those instead
// of resolved specs, so the on-disk form survives dictionary updates.
//
// Templates are never mutated after resolution; replacing a template in
// the registry swaps the pointer atomically under the registry mutex.
type Template struct {
	Id uint16

	// Raw is the ordered list of raw field triples as they appeared on the
	// wire, scope fields first for options templates.
	Raw []RawField

	// Specs are the resolved field specs, in wire order.
	Specs []FieldSpec

	// ScopeCount is the number of leading specs that are scope fields.
	// Non-zero only for options templates.
	ScopeCount int

	width    int
	variable bool
}

func newTemplate(id uint16, raw []RawField, specs []FieldSpec, scopeCount int) *Template {
	t := &Template{
		Id:         id,
		Raw:        raw,
		Specs:      specs,
		ScopeCount: scopeCount,
	}
	for _, spec := range specs {
		w, fixed := spec.Width()
		if !fixed {
			t.variable = true
			break
		}
		t.width += w
	}
	return t
}

// Width returns the fixed byte width of one record described by the
// template, or false when the template contains variable-length fields
// and the reader has to stream records to the end of the flowset.
func (t *Template) Width() (int, bool) {
	if t.variable {
		return 0, false
	}
	return t.width, true
}

// IsOptions reports whether the template came from an options-template
// flowset.
func (t *Template) IsOptions() bool {
	return t.ScopeCount > 0
}

func (t *Template) String() string {
	names := make([]string, 0, len(t.Specs))
	for _, spec := range t.Specs {
		n := spec.Name()
		if n == "" {
			n = "_"
		}
		names = append(names, n)
	}
	return fmt.Sprintf("{id:%d fields:[%s]}", t.Id, strings.Join(names, " "))
}
