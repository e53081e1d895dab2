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
	"encoding/binary"
)

const (
	v9HeaderSize    = 20
	ipfixHeaderSize = 16
	setHeaderSize   = 4

	// flowset ids below firstDataSetId are reserved for template and
	// options-template sets
	firstDataSetId uint16 = 256

	v9TemplateSetId        uint16 = 0
	v9OptionsTemplateSetId uint16 = 1
	ipfixTemplateSetId     uint16 = 2
	ipfixOptionsSetId      uint16 = 3
)

// v9Header is the 20-byte NetFlow v9 PDU header.
type v9Header struct {
	Version  uint16
	Count    uint16
	Uptime   uint32
	UnixSec  uint32
	Seq      uint32
	SourceId uint32
}

func decodeV9Header(b []byte) (h v9Header, err error) {
	if len(b) < v9HeaderSize {
		return h, TruncatedPacket(9, len(b), v9HeaderSize)
	}
	h.Version = binary.BigEndian.Uint16(b[0:2])
	h.Count = binary.BigEndian.Uint16(b[2:4])
	h.Uptime = binary.BigEndian.Uint32(b[4:8])
	h.UnixSec = binary.BigEndian.Uint32(b[8:12])
	h.Seq = binary.BigEndian.Uint32(b[12:16])
	h.SourceId = binary.BigEndian.Uint32(b[16:20])
	return h, nil
}

// ipfixHeader is the 16-byte IPFIX message header.
type ipfixHeader struct {
	Version    uint16
	Length     uint16
	ExportTime uint32
	Seq        uint32
	DomainId   uint32
}

func decodeIPFIXHeader(b []byte) (h ipfixHeader, err error) {
	if len(b) < ipfixHeaderSize {
		return h, TruncatedPacket(10, len(b), ipfixHeaderSize)
	}
	h.Version = binary.BigEndian.Uint16(b[0:2])
	h.Length = binary.BigEndian.Uint16(b[2:4])
	h.ExportTime = binary.BigEndian.Uint32(b[4:8])
	h.Seq = binary.BigEndian.Uint32(b[8:12])
	h.DomainId = binary.BigEndian.Uint32(b[12:16])
	return h, nil
}

// flowSet is one framed container inside a v9/IPFIX PDU: the flowset id
// and the body bytes (header excluded).
type flowSet struct {
	Id   uint16
	Body []byte
}

// splitFlowSets walks the length-prefixed flowset framing that v9 and
// IPFIX share. An ill-formed length aborts the walk; everything parsed
// up to that point is returned alongside the error.
func splitFlowSets(version uint16, b []byte) ([]flowSet, error) {
	sets := make([]flowSet, 0, 4)
	for len(b) > 0 {
		if len(b) < setHeaderSize {
			return sets, TruncatedPacket(version, len(b), setHeaderSize)
		}
		id := binary.BigEndian.Uint16(b[0:2])
		length := int(binary.BigEndian.Uint16(b[2:4]))
		if length < setHeaderSize || length > len(b) {
			return sets, LengthMismatch(id, length, len(b))
		}
		sets = append(sets, flowSet{Id: id, Body: b[setHeaderSize:length]})
		b = b[length:]
	}
	return sets, nil
}

// templateRecord is one raw template as parsed off the wire, before
// resolution.
type templateRecord struct {
	Id     uint16
	Fields []RawField
}

// readRawField reads one field descriptor. IPFIX descriptors carry an
// enterprise number when the high bit of the type is set; v9 descriptors
// never do.
func readRawField(b []byte, withEnterprise bool) (RawField, int, error) {
	if len(b) < 4 {
		return RawField{}, 0, TruncatedPacket(9, len(b), 4)
	}
	rawType := binary.BigEndian.Uint16(b[0:2])
	length := binary.BigEndian.Uint16(b[2:4])
	if withEnterprise && rawType&penMask != 0 {
		if len(b) < 8 {
			return RawField{}, 0, TruncatedPacket(10, len(b), 8)
		}
		return RawField{
			Type:         rawType &^ penMask,
			Length:       length,
			EnterpriseId: binary.BigEndian.Uint32(b[4:8]),
		}, 8, nil
	}
	return RawField{Type: rawType, Length: length}, 4, nil
}

// parseTemplateSet parses the template records of a v9 template flowset
// (id 0) or an IPFIX template set (id 2). Trailing padding shorter than a
// record header terminates the walk.
func parseTemplateSet(b []byte, withEnterprise bool) ([]templateRecord, error) {
	records := make([]templateRecord, 0, 1)
	for len(b) >= 4 {
		templateId := binary.BigEndian.Uint16(b[0:2])
		if templateId == 0 {
			// padding
			break
		}
		fieldCount := int(binary.BigEndian.Uint16(b[2:4]))
		b = b[4:]

		fields := make([]RawField, 0, fieldCount)
		for i := 0; i < fieldCount; i++ {
			field, n, err := readRawField(b, withEnterprise)
			if err != nil {
				return records, err
			}
			fields = append(fields, field)
			b = b[n:]
		}
		records = append(records, templateRecord{Id: templateId, Fields: fields})
	}
	return records, nil
}

// parseV9OptionsTemplateSet parses a v9 options-template flowset (id 1):
// template id, scope section length and option section length in bytes,
// followed by the 4-byte scope and option field descriptors.
func parseV9OptionsTemplateSet(b []byte) ([]templateRecord, error) {
	records := make([]templateRecord, 0, 1)
	for len(b) >= 6 {
		templateId := binary.BigEndian.Uint16(b[0:2])
		if templateId == 0 {
			break
		}
		scopeLength := int(binary.BigEndian.Uint16(b[2:4]))
		optionLength := int(binary.BigEndian.Uint16(b[4:6]))
		b = b[6:]

		if scopeLength%4 != 0 || optionLength%4 != 0 || scopeLength+optionLength > len(b) {
			return records, LengthMismatch(templateId, scopeLength+optionLength, len(b))
		}

		fields := make([]RawField, 0, (scopeLength+optionLength)/4)
		for i := 0; i < scopeLength/4; i++ {
			field, n, err := readRawField(b, false)
			if err != nil {
				return records, err
			}
			field.Scope = true
			fields = append(fields, field)
			b = b[n:]
		}
		for i := 0; i < optionLength/4; i++ {
			field, n, err := readRawField(b, false)
			if err != nil {
				return records, err
			}
			fields = append(fields, field)
			b = b[n:]
		}
		records = append(records, templateRecord{Id: templateId, Fields: fields})
	}
	return records, nil
}

// parseIPFIXOptionsTemplateSet parses an IPFIX options-template set
// (id 3): template id, total field count, scope field count, followed by
// field descriptors of which the first scope-count are scope fields.
func parseIPFIXOptionsTemplateSet(b []byte) ([]templateRecord, error) {
	records := make([]templateRecord, 0, 1)
	for len(b) >= 6 {
		templateId := binary.BigEndian.Uint16(b[0:2])
		if templateId == 0 {
			break
		}
		fieldCount := int(binary.BigEndian.Uint16(b[2:4]))
		scopeCount := int(binary.BigEndian.Uint16(b[4:6]))
		b = b[6:]

		fields := make([]RawField, 0, fieldCount)
		for i := 0; i < fieldCount; i++ {
			field, n, err := readRawField(b, true)
			if err != nil {
				return records, err
			}
			field.Scope = i < scopeCount
			fields = append(fields, field)
			b = b[n:]
		}
		records = append(records, templateRecord{Id: templateId, Fields: fields})
	}
	return records, nil
}
