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
	"time"
)

func TestSamplerTable(t *testing.T) {
	table := NewSamplerTable(10 * time.Second)

	clock := time.Unix(1700000000, 0)
	table.now = func() time.Time { return clock }

	key := SamplerKey{Host: "192.0.2.1", SourceId: 1, SamplerId: 3}
	table.Add(key, Sampler{Mode: 2, RandomInterval: 100})

	sampler, ok := table.Get(key)
	if !ok {
		t.Fatal("sampler missing")
	}
	if sampler.Mode != 2 || sampler.RandomInterval != 100 {
		t.Fatalf("unexpected sampler %+v", sampler)
	}

	if _, ok := table.Get(SamplerKey{Host: "192.0.2.2", SourceId: 1, SamplerId: 3}); ok {
		t.Fatal("sampler leaked across hosts")
	}

	clock = clock.Add(11 * time.Second)
	if _, ok := table.Get(key); ok {
		t.Fatal("expired sampler still live")
	}

	// writes sweep dead entries
	table.Add(SamplerKey{Host: "192.0.2.1", SourceId: 1, SamplerId: 4}, Sampler{Mode: 1, RandomInterval: 10})
	if len(table.entries) != 1 {
		t.Fatalf("expected 1 live entry, got %d", len(table.entries))
	}
}
