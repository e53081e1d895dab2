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
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	//go:embed definitions/netflow.yaml definitions/ipfix.yaml
	defaultDefinitions embed.FS
)

// FieldKey identifies a field definition inside the dictionary by its
// enterprise number (0 for IANA-assigned fields) and field id.
type FieldKey struct {
	EnterpriseId uint32
	Id           uint16
}

func NewFieldKey(enterpriseId uint32, id uint16) FieldKey {
	return FieldKey{
		EnterpriseId: enterpriseId,
		Id:           id,
	}
}

func (k FieldKey) String() string {
	return fmt.Sprintf("%d:%d", k.EnterpriseId, k.Id)
}

// definition is one parsed dictionary entry. Entries come in two YAML
// shapes: [<type-atom>, <name>] and [<default byte length>, <name>], the
// latter meaning an unsigned integer whose width follows the wire length,
// falling back to the default when the wire length is 0.
type definition struct {
	// atom is the type atom with the leading colon stripped, e.g. "uint32",
	// "ipv4_addr", "skip". Empty for integer-default entries.
	atom string

	// defaultWidth is the fallback byte width of integer-default entries.
	defaultWidth int

	name string
}

// Dictionary holds the field definitions the layout resolver consults:
// the NetFlow v9 scope and option categories and the enterprise-keyed
// IPFIX registry. It is loaded once at decoder construction and read-only
// afterwards, so it is shared across goroutines without locking.
type Dictionary struct {
	v9Scope  map[uint16]*definition
	v9Option map[uint16]*definition
	ipfix    map[FieldKey]*definition
}

// NewDictionary loads the embedded default NetFlow v9 and IPFIX
// dictionaries and merges the optional user-supplied files into them: the
// v9 file into the option category, the IPFIX file per enterprise id.
// Missing files and YAML syntax errors are fatal.
func NewDictionary(v9Path, ipfixPath string) (*Dictionary, error) {
	d := &Dictionary{
		v9Scope:  make(map[uint16]*definition),
		v9Option: make(map[uint16]*definition),
		ipfix:    make(map[FieldKey]*definition),
	}

	raw, err := defaultDefinitions.ReadFile("definitions/netflow.yaml")
	if err != nil {
		return nil, ConfigInvalid("embedded netflow definitions missing", err)
	}
	if err := d.mergeV9(raw); err != nil {
		return nil, err
	}

	raw, err = defaultDefinitions.ReadFile("definitions/ipfix.yaml")
	if err != nil {
		return nil, ConfigInvalid("embedded ipfix definitions missing", err)
	}
	if err := d.mergeIPFIX(raw); err != nil {
		return nil, err
	}

	if v9Path != "" {
		raw, err := os.ReadFile(v9Path)
		if err != nil {
			return nil, ConfigInvalid(fmt.Sprintf("cannot read netflow definitions %q", v9Path), err)
		}
		if err := d.mergeV9Options(raw); err != nil {
			return nil, err
		}
	}

	if ipfixPath != "" {
		raw, err := os.ReadFile(ipfixPath)
		if err != nil {
			return nil, ConfigInvalid(fmt.Sprintf("cannot read ipfix definitions %q", ipfixPath), err)
		}
		if err := d.mergeIPFIX(raw); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// V9Option returns the definition for a NetFlow v9 template or option
// field.
func (d *Dictionary) V9Option(id uint16) (*definition, bool) {
	def, ok := d.v9Option[id]
	return def, ok
}

// V9Scope returns the definition for a NetFlow v9 options-template scope
// field.
func (d *Dictionary) V9Scope(id uint16) (*definition, bool) {
	def, ok := d.v9Scope[id]
	return def, ok
}

// IPFIX returns the definition for an IPFIX information element.
func (d *Dictionary) IPFIX(key FieldKey) (*definition, bool) {
	def, ok := d.ipfix[key]
	return def, ok
}

func (d *Dictionary) mergeV9(raw []byte) error {
	var doc map[string]map[uint16][]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return ConfigInvalid("malformed netflow definitions", err)
	}

	scope, ok := doc["scope"]
	if !ok {
		return ConfigInvalid("netflow definitions are missing the scope category", nil)
	}
	option, ok := doc["option"]
	if !ok {
		return ConfigInvalid("netflow definitions are missing the option category", nil)
	}

	for id, entry := range scope {
		def, err := parseDefinition(entry)
		if err != nil {
			return ConfigInvalid(fmt.Sprintf("scope field %d", id), err)
		}
		d.v9Scope[id] = def
	}
	for id, entry := range option {
		def, err := parseDefinition(entry)
		if err != nil {
			return ConfigInvalid(fmt.Sprintf("option field %d", id), err)
		}
		d.v9Option[id] = def
	}
	return nil
}

// mergeV9Options merges a flat map of field id to definition into the v9
// option category, the shape user-supplied definition files come in.
func (d *Dictionary) mergeV9Options(raw []byte) error {
	var doc map[uint16][]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return ConfigInvalid("malformed netflow definitions", err)
	}
	for id, entry := range doc {
		def, err := parseDefinition(entry)
		if err != nil {
			return ConfigInvalid(fmt.Sprintf("option field %d", id), err)
		}
		d.v9Option[id] = def
	}
	return nil
}

func (d *Dictionary) mergeIPFIX(raw []byte) error {
	var doc map[uint32]map[uint16][]interface{}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return ConfigInvalid("malformed ipfix definitions", err)
	}
	for enterpriseId, fields := range doc {
		for id, entry := range fields {
			def, err := parseDefinition(entry)
			if err != nil {
				return ConfigInvalid(fmt.Sprintf("ipfix field %d:%d", enterpriseId, id), err)
			}
			d.ipfix[NewFieldKey(enterpriseId, id)] = def
		}
	}
	return nil
}

// parseDefinition parses one YAML definition array. Type atoms and field
// names keep the Ruby symbol spelling (":uint32") in dictionaries written
// for the original fluentd plugin; the leading colon is stripped here so
// both spellings load identically.
func parseDefinition(entry []interface{}) (*definition, error) {
	if len(entry) == 0 {
		return nil, fmt.Errorf("empty definition")
	}

	def := &definition{}
	switch v := entry[0].(type) {
	case string:
		def.atom = strings.TrimPrefix(v, ":")
	case int:
		if v <= 0 || v > 8 {
			return nil, fmt.Errorf("default byte length %d out of range", v)
		}
		def.defaultWidth = v
	default:
		return nil, fmt.Errorf("definition must start with a type atom or a byte length, got %T", entry[0])
	}

	if len(entry) > 1 {
		name, ok := entry[1].(string)
		if !ok {
			return nil, fmt.Errorf("field name must be a string, got %T", entry[1])
		}
		def.name = strings.TrimPrefix(name, ":")
	}

	if def.atom != "skip" && def.name == "" {
		return nil, fmt.Errorf("definition is missing a field name")
	}
	return def, nil
}
