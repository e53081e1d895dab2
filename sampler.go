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
	"sync"
	"time"
)

// SamplerKey identifies a sampler declared by an exporter's option
// records.
type SamplerKey struct {
	Host      string
	SourceId  uint32
	SamplerId uint64
}

// Sampler holds the sampling parameters an exporter announced for one of
// its samplers. Data records referencing the sampler id are decorated
// with these values.
type Sampler struct {
	Mode           uint64
	RandomInterval uint64
}

type samplerEntry struct {
	sampler  Sampler
	deadline time.Time
}

// SamplerTable is the time-expiring cache of sampler option records,
// with the same TTL mechanics as the template registry: deadlines are
// refreshed on insert, expired entries are swept on every write and
// filtered on read.
type SamplerTable struct {
	mu sync.Mutex

	entries map[SamplerKey]samplerEntry

	ttl time.Duration

	now func() time.Time
}

func NewSamplerTable(ttl time.Duration) *SamplerTable {
	return &SamplerTable{
		entries: make(map[SamplerKey]samplerEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Add writes through the sampler announced by an option record.
func (t *SamplerTable) Add(key SamplerKey, sampler Sampler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for k, entry := range t.entries {
		if now.After(entry.deadline) {
			delete(t.entries, k)
		}
	}

	t.entries[key] = samplerEntry{
		sampler:  sampler,
		deadline: now.Add(t.ttl),
	}
	SamplersRegistered.Inc()
}

// Get returns the live sampler stored under key.
func (t *SamplerTable) Get(key SamplerKey) (Sampler, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok {
		return Sampler{}, false
	}
	if t.now().After(entry.deadline) {
		delete(t.entries, key)
		return Sampler{}, false
	}
	return entry.sampler, true
}
