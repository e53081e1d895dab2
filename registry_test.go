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
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var testRawFields = []RawField{
	{Type: 8, Length: 4},
	{Type: 12, Length: 4},
	{Type: 1, Length: 4},
}

func TestRegistryTTL(t *testing.T) {
	dict := testDictionary(t)
	registry := NewTemplateRegistry(10*time.Second, dict.ResolveIPFIX, "")

	clock := time.Unix(1700000000, 0)
	registry.now = func() time.Time { return clock }

	ctx := context.Background()
	key := NewTemplateKey("", 1, 256)

	if _, err := registry.Register(ctx, key, testRawFields, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := registry.Fetch(ctx, key); err != nil {
		t.Fatal(err)
	}

	// advance past the deadline, the template must be gone
	clock = clock.Add(11 * time.Second)
	if _, err := registry.Fetch(ctx, key); !errors.Is(err, ErrTemplateExpired) {
		t.Fatalf("expected ErrTemplateExpired, got %v", err)
	}
	if _, err := registry.Fetch(ctx, key); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("expected ErrTemplateNotFound after lazy removal, got %v", err)
	}

	// a new insert within TTL yields the fresh template again
	if _, err := registry.Register(ctx, key, testRawFields, nil); err != nil {
		t.Fatal(err)
	}
	clock = clock.Add(5 * time.Second)
	if _, err := registry.Fetch(ctx, key); err != nil {
		t.Fatal(err)
	}
}

func TestRegistryValidator(t *testing.T) {
	dict := testDictionary(t)
	path := filepath.Join(t.TempDir(), ipfixCacheFile)
	registry := NewTemplateRegistry(time.Hour, dict.ResolveIPFIX, path)

	ctx := context.Background()
	key := NewTemplateKey("", 1, 256)

	_, err := registry.Register(ctx, key, testRawFields, func(template *Template) error {
		return errors.New("too many fields for this exporter")
	})
	if !errors.Is(err, ErrTemplateRejected) {
		t.Fatalf("expected ErrTemplateRejected, got %v", err)
	}

	if _, err := registry.Fetch(ctx, key); !errors.Is(err, ErrTemplateNotFound) {
		t.Fatalf("rejected template must not be cached, got %v", err)
	}

	// rejection must not have written the cache file
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected no cache file, stat returned %v", err)
	}
}

func TestRegistryPersistence(t *testing.T) {
	dict := testDictionary(t)
	path := filepath.Join(t.TempDir(), ipfixCacheFile)
	ctx := context.Background()

	registry := NewTemplateRegistry(time.Hour, dict.ResolveIPFIX, path)
	for _, id := range []uint16{256, 257, 258} {
		key := NewTemplateKey("", 1, id)
		if _, err := registry.Register(ctx, key, testRawFields, nil); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("round trip into fresh registry", func(t *testing.T) {
		restored := NewTemplateRegistry(time.Hour, dict.ResolveIPFIX, path)
		restored.Load(ctx)

		if restored.Size() != 3 {
			t.Fatalf("expected 3 restored templates, got %d", restored.Size())
		}
		for _, id := range []uint16{256, 257, 258} {
			template, err := restored.Fetch(ctx, NewTemplateKey("", 1, id))
			if err != nil {
				t.Fatal(err)
			}
			if width, _ := template.Width(); width != 12 {
				t.Fatalf("restored template %d has width %d", id, width)
			}
		}
	})

	t.Run("persist after expiry drops dead entries", func(t *testing.T) {
		clock := time.Unix(1700000000, 0)
		expiring := NewTemplateRegistry(10*time.Second, dict.ResolveIPFIX, filepath.Join(t.TempDir(), ipfixCacheFile))
		expiring.now = func() time.Time { return clock }

		if _, err := expiring.Register(ctx, NewTemplateKey("", 1, 300), testRawFields, nil); err != nil {
			t.Fatal(err)
		}
		clock = clock.Add(time.Minute)
		if err := expiring.Persist(ctx); err != nil {
			t.Fatal(err)
		}
		if expiring.Size() != 0 {
			t.Fatalf("expected empty registry after sweep, got %d", expiring.Size())
		}
	})

	t.Run("malformed cache file starts empty", func(t *testing.T) {
		broken := filepath.Join(t.TempDir(), ipfixCacheFile)
		if err := os.WriteFile(broken, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		registry := NewTemplateRegistry(time.Hour, dict.ResolveIPFIX, broken)
		registry.Load(ctx)
		if registry.Size() != 0 {
			t.Fatalf("expected empty registry, got %d", registry.Size())
		}
	})

	t.Run("unwritable path keeps registry working", func(t *testing.T) {
		registry := NewTemplateRegistry(time.Hour, dict.ResolveIPFIX, filepath.Join(t.TempDir(), "missing", ipfixCacheFile))
		key := NewTemplateKey("", 1, 400)
		// Register logs the persistence failure but stores the template
		if _, err := registry.Register(ctx, key, testRawFields, nil); err != nil {
			t.Fatal(err)
		}
		if _, err := registry.Fetch(ctx, key); err != nil {
			t.Fatal(err)
		}
		if err := registry.Persist(ctx); !errors.Is(err, ErrCacheNotWritable) {
			t.Fatalf("expected ErrCacheNotWritable, got %v", err)
		}
	})
}

func TestTemplateKeyText(t *testing.T) {
	key := NewTemplateKey("192.0.2.1", 7, 260)
	text, err := key.MarshalText()
	if err != nil {
		t.Fatal(err)
	}

	parsed := TemplateKey{}
	if err := parsed.UnmarshalText(text); err != nil {
		t.Fatal(err)
	}
	if parsed != key {
		t.Fatalf("round trip mismatch: %v != %v", parsed, key)
	}

	if err := parsed.UnmarshalText([]byte("garbage")); err == nil {
		t.Fatal("expected error for malformed key")
	}
}
