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
	"net"
	"strconv"
)

const (
	v5HeaderSize = 24
	v5RecordSize = 48
)

// v5Header is the fixed 24-byte NetFlow v5 header. The engine and
// sampling words are big-endian on the wire and split into their
// subfields after reading: high byte of engine is the engine type, the
// top 2 bits of sampling the algorithm.
type v5Header struct {
	Version  uint16
	Count    uint16
	Uptime   uint32
	UnixSec  uint32
	UnixNsec uint32
	Seq      uint32
	Engine   uint16
	Sampling uint16
}

func decodeV5Header(b []byte) (h v5Header, err error) {
	if len(b) < v5HeaderSize {
		return h, TruncatedPacket(5, len(b), v5HeaderSize)
	}
	h.Version = binary.BigEndian.Uint16(b[0:2])
	h.Count = binary.BigEndian.Uint16(b[2:4])
	h.Uptime = binary.BigEndian.Uint32(b[4:8])
	h.UnixSec = binary.BigEndian.Uint32(b[8:12])
	h.UnixNsec = binary.BigEndian.Uint32(b[12:16])
	h.Seq = binary.BigEndian.Uint32(b[16:20])
	h.Engine = binary.BigEndian.Uint16(b[20:22])
	h.Sampling = binary.BigEndian.Uint16(b[22:24])
	return h, nil
}

// decodeV5 is the fixed-layout fast path: no templates, every record is
// exactly 48 bytes. A datagram whose payload does not match the record
// count is dropped whole.
func (d *Decoder) decodeV5(ctx context.Context, payload []byte, host string, sink Sink) error {
	h, err := decodeV5Header(payload)
	if err != nil {
		return err
	}

	if len(payload)-v5HeaderSize != int(h.Count)*v5RecordSize {
		return LengthMismatch(0, int(h.Count)*v5RecordSize, len(payload)-v5HeaderSize)
	}

	et := exportTime{uptime: h.Uptime, sec: h.UnixSec, nsec: h.UnixNsec}

	for i := 0; i < int(h.Count); i++ {
		b := payload[v5HeaderSize+i*v5RecordSize:]

		event := NewEvent()
		event.Set("@timestamp", et.Timestamp())
		event.Set("version", uint64(5))
		event.Set("flow_seq_num", uint64(h.Seq))
		event.Set("engine_type", uint64(h.Engine>>8))
		event.Set("engine_id", uint64(h.Engine&0xFF))
		event.Set("sampling_algorithm", uint64(h.Sampling>>14))
		event.Set("sampling_interval", uint64(h.Sampling&0x3FFF))

		event.Set("ipv4_src_addr", net.IP(b[0:4]).String())
		event.Set("ipv4_dst_addr", net.IP(b[4:8]).String())
		event.Set("ipv4_next_hop", net.IP(b[8:12]).String())
		event.Set("input_snmp", uint64(binary.BigEndian.Uint16(b[12:14])))
		event.Set("output_snmp", uint64(binary.BigEndian.Uint16(b[14:16])))
		event.Set("in_pkts", uint64(binary.BigEndian.Uint32(b[16:20])))
		event.Set("in_bytes", uint64(binary.BigEndian.Uint32(b[20:24])))

		first := uint64(binary.BigEndian.Uint32(b[24:28]))
		last := uint64(binary.BigEndian.Uint32(b[28:32]))
		event.Set("first_switched", normalizeValue(5, "first_switched", first, et, d.options.SwitchedTimesFromUptime))
		event.Set("last_switched", normalizeValue(5, "last_switched", last, et, d.options.SwitchedTimesFromUptime))

		event.Set("l4_src_port", uint64(binary.BigEndian.Uint16(b[32:34])))
		event.Set("l4_dst_port", uint64(binary.BigEndian.Uint16(b[34:36])))
		// b[36] is a pad byte
		event.Set("tcp_flags", uint64(b[37]))
		event.Set("protocol", uint64(b[38]))
		event.Set("src_tos", uint64(b[39]))
		event.Set("src_as", uint64(binary.BigEndian.Uint16(b[40:42])))
		event.Set("dst_as", uint64(binary.BigEndian.Uint16(b[42:44])))
		event.Set("src_mask", uint64(b[44]))
		event.Set("dst_mask", uint64(b[45]))
		// b[46:48] is trailing padding

		EventsTotal.WithLabelValues(strconv.Itoa(5)).Inc()
		sink(et.Time(), event)
	}
	return nil
}
