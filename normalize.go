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
	"strings"
	"time"
)

const (
	layoutMillis  = "2006-01-02T15:04:05.000Z"
	layoutSeconds = "2006-01-02T15:04:05"
	layoutMicros  = "2006-01-02T15:04:05.000000Z"
	layoutNanos   = "2006-01-02T15:04:05.000000000Z"

	// Seconds between the NTP epoch (1900-01-01) and the Unix epoch.
	ntpEpochOffset = 2208988800
)

// exportTime is the wall-clock reference carried in a PDU header, plus
// the exporter's uptime for versions that timestamp flows relative to
// boot.
type exportTime struct {
	uptime uint32 // milliseconds since exporter boot, v5/v9 only
	sec    uint32
	nsec   uint32
}

func (t exportTime) Time() time.Time {
	return time.Unix(int64(t.sec), int64(t.nsec)).UTC()
}

// Timestamp renders the PDU export time as the event's @timestamp.
func (t exportTime) Timestamp() string {
	return t.Time().Format(layoutMillis)
}

// switchedTime converts a boot-relative millisecond timestamp (v5/v9
// first_switched, last_switched) to wall clock. The export time anchors
// the conversion: the flow was switched (uptime - msec) milliseconds
// before the PDU left the exporter.
func (t exportTime) switchedTime(msec uint64) string {
	delta := int64(t.uptime) - int64(msec)

	secs := int64(t.sec) - delta/1000
	micros := int64(t.nsec)/1000 - (delta%1000)*1000
	for micros < 0 {
		micros += 1_000_000
		secs--
	}
	for micros >= 1_000_000 {
		micros -= 1_000_000
		secs++
	}
	return time.Unix(secs, micros*1000).UTC().Format(layoutMillis)
}

// ntpTimestamp interprets a 64-bit NTP timestamp (32 bits of seconds
// since 1900, 32 bits of binary fraction), the IPFIX dateTimeNanoseconds
// encoding.
func ntpTimestamp(v uint64) string {
	secs := int64(v>>32) - ntpEpochOffset
	nanos := (int64(v&0xFFFFFFFF) * 1_000_000_000) >> 32
	return time.Unix(secs, nanos).UTC().Format(layoutNanos)
}

// normalizeValue rewrites timestamp-carrying fields into ISO-8601 UTC
// strings; all other values pass through untouched.
//
// Nanosecond fields differ per version on purpose: IPFIX
// flow*Nanoseconds are NTP 64-bit timestamps, while v9 exporters emit
// integer nanoseconds since the Unix epoch for the same field names.
func normalizeValue(version uint16, name string, value interface{}, t exportTime, keepUptime bool) interface{} {
	v, ok := value.(uint64)
	if !ok {
		return value
	}

	switch name {
	case "first_switched", "last_switched":
		if keepUptime {
			return v
		}
		return t.switchedTime(v)
	case "flowStartSeconds", "flowEndSeconds":
		return time.Unix(int64(v), 0).UTC().Format(layoutSeconds)
	}

	if strings.HasPrefix(name, "flowStart") || strings.HasPrefix(name, "flowEnd") {
		switch {
		case strings.HasSuffix(name, "Milliseconds"):
			return time.Unix(int64(v/1000), int64(v%1000)*1_000_000).UTC().Format(layoutMillis)
		case strings.HasSuffix(name, "Microseconds"):
			return time.Unix(int64(v/1_000_000), int64(v%1_000_000)*1000).UTC().Format(layoutMicros)
		case strings.HasSuffix(name, "Nanoseconds"):
			if version == 10 {
				return ntpTimestamp(v)
			}
			return time.Unix(0, int64(v)).UTC().Format(layoutNanos)
		}
	}

	return value
}
