package netflow

import (
	"encoding/json"
	"testing"
)

func TestEventOrder(t *testing.T) {
	event := NewEvent()
	event.Set("@timestamp", "2023-11-14T22:13:20.000Z")
	event.Set("version", uint64(9))
	event.Set("ipv4_src_addr", "1.2.3.4")
	event.Set("in_pkts", uint64(100))
	// updating must keep the original position
	event.Set("version", uint64(10))

	want := []string{"@timestamp", "version", "ipv4_src_addr", "in_pkts"}
	keys := event.Keys()
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("key %d: expected %q, got %q", i, k, keys[i])
		}
	}

	if v, _ := event.Get("version"); v.(uint64) != 10 {
		t.Fatalf("update lost: %v", v)
	}
}

func TestEventSetDefault(t *testing.T) {
	event := NewEvent()
	event.Set("sampling_algorithm", uint64(1))
	event.SetDefault("sampling_algorithm", uint64(2))
	event.SetDefault("sampling_interval", uint64(100))

	if v, _ := event.Get("sampling_algorithm"); v.(uint64) != 1 {
		t.Fatalf("SetDefault overwrote existing field: %v", v)
	}
	if v, _ := event.Get("sampling_interval"); v.(uint64) != 100 {
		t.Fatalf("SetDefault did not fill missing field: %v", v)
	}
}

func TestEventMarshalJSON(t *testing.T) {
	event := NewEvent()
	event.Set("b", uint64(1))
	event.Set("a", "x")

	out, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"b":1,"a":"x"}` {
		t.Fatalf("unexpected serialization %s", out)
	}
}
