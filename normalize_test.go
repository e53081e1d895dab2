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
	"testing"
)

func TestSwitchedTimes(t *testing.T) {
	et := exportTime{uptime: 1_000_000, sec: 1_700_000_000, nsec: 0}

	t.Run("seconds before export", func(t *testing.T) {
		if got := et.switchedTime(995_000); got != "2023-11-14T22:13:15.000Z" {
			t.Fatalf("unexpected first_switched %q", got)
		}
		if got := et.switchedTime(999_000); got != "2023-11-14T22:13:19.000Z" {
			t.Fatalf("unexpected last_switched %q", got)
		}
	})

	t.Run("millisecond borrow", func(t *testing.T) {
		// 500ms before an export at .000 has to borrow from the seconds field
		if got := et.switchedTime(999_500); got != "2023-11-14T22:13:19.500Z" {
			t.Fatalf("unexpected timestamp %q", got)
		}
	})

	t.Run("keep uptime leaves raw value", func(t *testing.T) {
		v := normalizeValue(9, "first_switched", uint64(995_000), et, true)
		if v.(uint64) != 995_000 {
			t.Fatalf("expected raw value, got %v", v)
		}
	})
}

func TestNormalizeAbsoluteTimes(t *testing.T) {
	et := exportTime{sec: 1_700_000_000}

	t.Run("flowStartSeconds", func(t *testing.T) {
		v := normalizeValue(10, "flowStartSeconds", uint64(1_700_000_000), et, false)
		if v.(string) != "2023-11-14T22:13:20" {
			t.Fatalf("unexpected %q", v)
		}
	})

	t.Run("flowEndMilliseconds", func(t *testing.T) {
		v := normalizeValue(10, "flowEndMilliseconds", uint64(1_700_000_000_250), et, false)
		if v.(string) != "2023-11-14T22:13:20.250Z" {
			t.Fatalf("unexpected %q", v)
		}
	})

	t.Run("flowStartMicroseconds", func(t *testing.T) {
		v := normalizeValue(10, "flowStartMicroseconds", uint64(1_700_000_000_000_042), et, false)
		if v.(string) != "2023-11-14T22:13:20.000042Z" {
			t.Fatalf("unexpected %q", v)
		}
	})

	t.Run("ipfix nanoseconds are NTP timestamps", func(t *testing.T) {
		ntp := uint64(2_208_988_800+1_700_000_000)<<32 | 0x80000000
		v := normalizeValue(10, "flowStartNanoseconds", ntp, et, false)
		if v.(string) != "2023-11-14T22:13:20.500000000Z" {
			t.Fatalf("unexpected %q", v)
		}
	})

	t.Run("v9 nanoseconds are unix epoch integers", func(t *testing.T) {
		v := normalizeValue(9, "flowStartNanoseconds", uint64(1_700_000_000_000_000_123), et, false)
		if v.(string) != "2023-11-14T22:13:20.000000123Z" {
			t.Fatalf("unexpected %q", v)
		}
	})

	t.Run("unrelated fields pass through", func(t *testing.T) {
		v := normalizeValue(10, "octetDeltaCount", uint64(42), et, false)
		if v.(uint64) != 42 {
			t.Fatalf("unexpected %v", v)
		}
		s := normalizeValue(10, "samplerName", "probe", et, false)
		if s.(string) != "probe" {
			t.Fatalf("unexpected %v", s)
		}
	})
}
