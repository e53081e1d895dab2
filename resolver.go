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
)

// ResolveV9 resolves the raw field triples of a NetFlow v9 template into
// a concrete layout. Scope-flagged triples resolve against the scope
// category, all others against the option category. A template resolves
// iff every field resolves; a single unknown field rejects the whole
// template and nothing is cached.
func (d *Dictionary) ResolveV9(key TemplateKey, raw []RawField) (*Template, error) {
	specs := make([]FieldSpec, 0, len(raw))
	scopeCount := 0
	for _, rf := range raw {
		var def *definition
		var ok bool
		if rf.Scope {
			def, ok = d.V9Scope(rf.Type)
			scopeCount++
		} else {
			def, ok = d.V9Option(rf.Type)
		}
		if !ok {
			return nil, UnknownField(rf.Type, rf.EnterpriseId, rf.Length)
		}
		spec, err := resolveField(rf, def)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return newTemplate(key.TemplateId, raw, specs, scopeCount), nil
}

// ResolveIPFIX resolves the raw field triples of an IPFIX template. All
// fields, scope fields included, resolve through the enterprise-keyed
// registry (0 for IANA).
func (d *Dictionary) ResolveIPFIX(key TemplateKey, raw []RawField) (*Template, error) {
	specs := make([]FieldSpec, 0, len(raw))
	scopeCount := 0
	for _, rf := range raw {
		if rf.Scope {
			scopeCount++
		}
		def, ok := d.IPFIX(NewFieldKey(rf.EnterpriseId, rf.Type))
		if !ok {
			return nil, UnknownField(rf.Type, rf.EnterpriseId, rf.Length)
		}
		spec, err := resolveField(rf, def)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return newTemplate(key.TemplateId, raw, specs, scopeCount), nil
}

// resolveField turns one raw triple and its dictionary definition into a
// field spec, applying the length-driven fixups: the sentinel length
// 0xFFFF selects the variable-length variant of strings, skips and octet
// arrays, and a non-zero wire length overrides the default width of
// integer fields (reduced-length encoding).
func resolveField(raw RawField, def *definition) (FieldSpec, error) {
	wire := int(raw.Length)

	if def.atom == "" {
		// bare integer definition: unsigned with the wire length, falling
		// back to the dictionary default
		width := wire
		if width == 0 {
			width = def.defaultWidth
		}
		return NewUnsigned(def.name, width)
	}

	switch def.atom {
	case "skip":
		if raw.Length == VariableLength {
			return NewVarSkip(), nil
		}
		return NewSkip(wire), nil
	case "string":
		if raw.Length == VariableLength {
			return NewVarString(def.name), nil
		}
		return NewString(def.name, wire), nil
	case "octetarray":
		if raw.Length == VariableLength {
			return NewVarOctetArray(def.name), nil
		}
		return NewOctetArray(def.name, wire), nil
	case "uint8", "uint16", "uint32", "uint64":
		width := wire
		if width == 0 {
			width = defaultUnsignedWidth(def.atom)
		}
		return NewUnsigned(def.name, width)
	case "application_id":
		length := wire
		if length == 0 {
			length = 4
		}
		return NewApplicationId(def.name, length)
	case "ipv4_addr":
		return NewIPv4Address(def.name), nil
	case "ipv6_addr":
		return NewIPv6Address(def.name), nil
	case "mac_addr":
		return NewMacAddress(def.name), nil
	default:
		return nil, fmt.Errorf("unsupported type atom %q for field %q", def.atom, def.name)
	}
}

func defaultUnsignedWidth(atom string) int {
	switch atom {
	case "uint8":
		return 1
	case "uint16":
		return 2
	case "uint32":
		return 4
	case "uint64":
		return 8
	}
	return 0
}
