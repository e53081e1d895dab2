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
	"context"
	"encoding/binary"
	"errors"
	"testing"
)

func v5Packet(count uint16, uptime, sec, nsec, seq uint32, engine, sampling uint16, records ...[]byte) []byte {
	b := binary.BigEndian.AppendUint16(nil, 5)
	b = binary.BigEndian.AppendUint16(b, count)
	b = binary.BigEndian.AppendUint32(b, uptime)
	b = binary.BigEndian.AppendUint32(b, sec)
	b = binary.BigEndian.AppendUint32(b, nsec)
	b = binary.BigEndian.AppendUint32(b, seq)
	b = binary.BigEndian.AppendUint16(b, engine)
	b = binary.BigEndian.AppendUint16(b, sampling)
	for _, r := range records {
		b = append(b, r...)
	}
	return b
}

func v5Record(src, dst [4]byte, first, last uint32) []byte {
	b := make([]byte, 0, v5RecordSize)
	b = append(b, src[:]...)
	b = append(b, dst[:]...)
	b = append(b, 10, 0, 0, 1)                   // next hop
	b = binary.BigEndian.AppendUint16(b, 2)      // input_snmp
	b = binary.BigEndian.AppendUint16(b, 3)      // output_snmp
	b = binary.BigEndian.AppendUint32(b, 10)     // in_pkts
	b = binary.BigEndian.AppendUint32(b, 1500)   // in_bytes
	b = binary.BigEndian.AppendUint32(b, first)  // first_switched
	b = binary.BigEndian.AppendUint32(b, last)   // last_switched
	b = binary.BigEndian.AppendUint16(b, 443)    // l4_src_port
	b = binary.BigEndian.AppendUint16(b, 53211)  // l4_dst_port
	b = append(b, 0)                             // pad
	b = append(b, 0x1b)                          // tcp_flags
	b = append(b, 6)                             // protocol
	b = append(b, 0)                             // src_tos
	b = binary.BigEndian.AppendUint16(b, 64500)  // src_as
	b = binary.BigEndian.AppendUint16(b, 64501)  // dst_as
	b = append(b, 24, 16)                        // src_mask, dst_mask
	b = binary.BigEndian.AppendUint16(b, 0)      // pad
	return b
}

func TestDecodeV5(t *testing.T) {
	ctx := context.Background()

	t.Run("single record", func(t *testing.T) {
		decoder := newTestDecoder(t, DecoderOptions{})
		sink, events := collectEvents()

		record := v5Record([4]byte{1, 2, 3, 4}, [4]byte{5, 6, 7, 8}, 995_000, 999_000)
		packet := v5Packet(1, 1_000_000, 1_700_000_000, 0, 1, 0x0102, 0x4003, record)
		if err := decoder.Decode(ctx, packet, testHost, sink); err != nil {
			t.Fatal(err)
		}

		if len(*events) != 1 {
			t.Fatalf("expected 1 event, got %d", len(*events))
		}
		event := (*events)[0]

		expect := map[string]interface{}{
			"@timestamp":         "2023-11-14T22:13:20.000Z",
			"version":            uint64(5),
			"flow_seq_num":       uint64(1),
			"engine_type":        uint64(1),
			"engine_id":          uint64(2),
			"sampling_algorithm": uint64(1),
			"sampling_interval":  uint64(3),
			"ipv4_src_addr":      "1.2.3.4",
			"ipv4_dst_addr":      "5.6.7.8",
			"ipv4_next_hop":      "10.0.0.1",
			"input_snmp":         uint64(2),
			"output_snmp":        uint64(3),
			"in_pkts":            uint64(10),
			"in_bytes":           uint64(1500),
			"first_switched":     "2023-11-14T22:13:15.000Z",
			"last_switched":      "2023-11-14T22:13:19.000Z",
			"l4_src_port":        uint64(443),
			"l4_dst_port":        uint64(53211),
			"tcp_flags":          uint64(0x1b),
			"protocol":           uint64(6),
			"src_tos":            uint64(0),
			"src_as":             uint64(64500),
			"dst_as":             uint64(64501),
			"src_mask":           uint64(24),
			"dst_mask":           uint64(16),
		}
		for name, want := range expect {
			got, ok := event.Get(name)
			if !ok {
				t.Fatalf("missing field %q", name)
			}
			if got != want {
				t.Fatalf("field %q: expected %v, got %v", name, want, got)
			}
		}
	})

	t.Run("multiple records emit in wire order", func(t *testing.T) {
		decoder := newTestDecoder(t, DecoderOptions{})
		sink, events := collectEvents()

		packet := v5Packet(2, 1_000_000, 1_700_000_000, 0, 7, 0, 0,
			v5Record([4]byte{1, 1, 1, 1}, [4]byte{2, 2, 2, 2}, 0, 0),
			v5Record([4]byte{3, 3, 3, 3}, [4]byte{4, 4, 4, 4}, 0, 0),
		)
		if err := decoder.Decode(ctx, packet, testHost, sink); err != nil {
			t.Fatal(err)
		}

		if len(*events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(*events))
		}
		if v, _ := (*events)[0].Get("ipv4_src_addr"); v.(string) != "1.1.1.1" {
			t.Fatalf("unexpected order, first src %v", v)
		}
		if v, _ := (*events)[1].Get("ipv4_src_addr"); v.(string) != "3.3.3.3" {
			t.Fatalf("unexpected order, second src %v", v)
		}
	})

	t.Run("count mismatch drops datagram", func(t *testing.T) {
		decoder := newTestDecoder(t, DecoderOptions{})
		sink, events := collectEvents()

		packet := v5Packet(2, 1_000_000, 1_700_000_000, 0, 1, 0, 0,
			v5Record([4]byte{1, 1, 1, 1}, [4]byte{2, 2, 2, 2}, 0, 0),
		)
		if err := decoder.Decode(ctx, packet, testHost, sink); !errors.Is(err, ErrLengthMismatch) {
			t.Fatalf("expected ErrLengthMismatch, got %v", err)
		}
		if len(*events) != 0 {
			t.Fatalf("expected no events, got %d", len(*events))
		}
	})

	t.Run("switched times kept as uptime when configured", func(t *testing.T) {
		decoder := newTestDecoder(t, DecoderOptions{SwitchedTimesFromUptime: true})
		sink, events := collectEvents()

		record := v5Record([4]byte{1, 2, 3, 4}, [4]byte{5, 6, 7, 8}, 995_000, 999_000)
		packet := v5Packet(1, 1_000_000, 1_700_000_000, 0, 1, 0, 0, record)
		if err := decoder.Decode(ctx, packet, testHost, sink); err != nil {
			t.Fatal(err)
		}
		if v, _ := (*events)[0].Get("first_switched"); v.(uint64) != 995_000 {
			t.Fatalf("expected raw uptime value, got %v", v)
		}
	})
}
