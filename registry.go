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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TemplateKey identifies a template in the registry. NetFlow v9 keys
// carry the exporter host because v9 template ids are only unique per
// exporter; IPFIX carries its exporter identity in the observation domain
// id, so Host may be empty there.
type TemplateKey struct {
	Host       string
	SourceId   uint32
	TemplateId uint16
}

func NewTemplateKey(host string, sourceId uint32, templateId uint16) TemplateKey {
	return TemplateKey{
		Host:       host,
		SourceId:   sourceId,
		TemplateId: templateId,
	}
}

const templateKeySeparator string = "|"

func (k TemplateKey) String() string {
	return fmt.Sprintf("%s%s%d%s%d", k.Host, templateKeySeparator, k.SourceId, templateKeySeparator, k.TemplateId)
}

func (k TemplateKey) MarshalText() (text []byte, err error) {
	text = []byte(k.String())
	return
}

func (k *TemplateKey) UnmarshalText(text []byte) error {
	parts := strings.Split(string(text), templateKeySeparator)
	if len(parts) != 3 {
		return errors.New("template key format is invalid")
	}

	sourceId, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return fmt.Errorf("source id is invalid, %w", err)
	}
	templateId, err := strconv.ParseUint(parts[2], 10, 16)
	if err != nil {
		return fmt.Errorf("template id is invalid, %w", err)
	}

	k.Host = parts[0]
	k.SourceId = uint32(sourceId)
	k.TemplateId = uint16(templateId)
	return nil
}

// TemplateValidator inspects a freshly resolved template before it is
// cached. Returning a non-nil error rejects the template: it is neither
// cached nor persisted, and data flowsets referencing it keep being
// dropped until a replacement arrives.
type TemplateValidator func(*Template) error

type templateEntry struct {
	template *Template
	raw      []RawField
	deadline time.Time
}

// TemplateRegistry is the time-expiring template cache. A single mutex
// guards both the in-memory map and the persistence file, so no reader
// ever observes a partial update. Expired entries are dropped lazily on
// access and swept on every write and persist.
type TemplateRegistry struct {
	mu sync.Mutex

	entries map[TemplateKey]templateEntry

	ttl time.Duration

	// resolve turns raw field triples into a layout, consulting the field
	// dictionary. Injected so the registry can re-resolve persisted raw
	// triples at load time.
	resolve func(TemplateKey, []RawField) (*Template, error)

	// path of the persistence file; empty disables persistence.
	path string

	now func() time.Time
}

func NewTemplateRegistry(ttl time.Duration, resolve func(TemplateKey, []RawField) (*Template, error), path string) *TemplateRegistry {
	return &TemplateRegistry{
		entries: make(map[TemplateKey]templateEntry),
		ttl:     ttl,
		resolve: resolve,
		path:    path,
		now:     time.Now,
	}
}

// Register resolves raw into a template, runs the optional validator and
// stores the result under key with a fresh deadline. Registration is
// atomic: a rejected or unresolvable template leaves the registry
// untouched. With persistence configured, the file is rewritten after
// every successful registration.
func (r *TemplateRegistry) Register(ctx context.Context, key TemplateKey, raw []RawField, validator TemplateValidator) (*Template, error) {
	logger := FromContext(ctx)

	template, err := r.resolve(key, raw)
	if err != nil {
		return nil, err
	}

	if validator != nil {
		if err := validator(template); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTemplateRejected, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweep()
	r.entries[key] = templateEntry{
		template: template,
		raw:      raw,
		deadline: r.now().Add(r.ttl),
	}
	TemplatesRegistered.Inc()

	if r.path != "" {
		if err := r.persist(); err != nil {
			// the in-memory registry keeps functioning on an unwritable file
			logger.Error(err, "failed to persist template cache", "path", r.path)
		}
	}

	return template, nil
}

// Fetch returns the live template stored under key. Absent and expired
// entries both come back as errors; expired entries are removed on the
// way out.
func (r *TemplateRegistry) Fetch(ctx context.Context, key TemplateKey) (*Template, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[key]
	if !ok {
		return nil, TemplateNotFound(key)
	}
	if r.now().After(entry.deadline) {
		delete(r.entries, key)
		TemplatesExpired.Inc()
		return nil, TemplateExpired(key)
	}
	return entry.template, nil
}

// Persist sweeps expired entries and rewrites the on-disk file to the
// current live set.
func (r *TemplateRegistry) Persist(ctx context.Context) error {
	if r.path == "" {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweep()
	return r.persist()
}

// Load restores persisted raw field triples, re-resolving each through
// the current dictionary. A missing file is fine; an unreadable or
// malformed file is logged and ignored so a stale cache never prevents
// startup.
func (r *TemplateRegistry) Load(ctx context.Context) {
	logger := FromContext(ctx)

	if r.path == "" {
		return
	}

	raw, err := os.ReadFile(r.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Error(err, "failed to read template cache, starting empty", "path", r.path)
		}
		return
	}

	stored := map[string][]RawField{}
	if err := json.Unmarshal(raw, &stored); err != nil {
		logger.Error(err, "malformed template cache, starting empty", "path", r.path)
		return
	}

	restored := 0
	for text, fields := range stored {
		var key TemplateKey
		if err := key.UnmarshalText([]byte(text)); err != nil {
			logger.Error(err, "skipping template with invalid key", "key", text)
			continue
		}
		template, err := r.resolve(key, fields)
		if err != nil {
			logger.Error(err, "skipping template that no longer resolves", "key", text)
			continue
		}

		r.mu.Lock()
		r.entries[key] = templateEntry{
			template: template,
			raw:      fields,
			deadline: r.now().Add(r.ttl),
		}
		r.mu.Unlock()
		restored++
	}

	logger.V(1).Info("restored templates from cache file", "path", r.path, "templates", restored)
}

// Size returns the number of entries currently held, expired ones
// included until the next sweep.
func (r *TemplateRegistry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// sweep drops entries whose deadline has passed. Callers hold r.mu.
func (r *TemplateRegistry) sweep() {
	now := r.now()
	for key, entry := range r.entries {
		if now.After(entry.deadline) {
			delete(r.entries, key)
			TemplatesExpired.Inc()
		}
	}
}

// persist atomically replaces the file with the current live set as a
// JSON object of template key to raw field triples. Callers hold r.mu.
func (r *TemplateRegistry) persist() error {
	stored := make(map[string][]RawField, len(r.entries))
	for key, entry := range r.entries {
		stored[key.String()] = entry.raw
	}

	out, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheNotWritable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrCacheNotWritable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheNotWritable, err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheNotWritable, err)
	}
	return nil
}
