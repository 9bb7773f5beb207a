package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/formulagraph/internal/classifier"
	"github.com/nao1215/formulagraph/internal/model"
)

func testDocument(identity, version string, value float64) *model.Document {
	doc := &model.Document{Identity: identity, Version: version}
	doc.SetCell("Calc", "A1", model.RawCell{Value: model.Number(value), Marker: classifier.DefaultInputMarker})
	doc.SetCell("Calc", "B1", model.RawCell{Formula: "=A1*2", Marker: classifier.DefaultOutputMarker})
	return doc
}

// recordingStore records the templates saved to it.
type recordingStore struct {
	mu    sync.Mutex
	saved []*model.TemplateReport
	err   error
}

func (s *recordingStore) SaveTemplate(_ context.Context, r *model.TemplateReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, r)
	return s.err
}

// TestCacheGet tests hits, version invalidation and configuration changes.
func TestCacheGet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := classifier.DefaultConfig()
	c := New()

	first, err := c.Get(ctx, testDocument("quote", "v1", 10), cfg)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if first.Version() != "v1" || !first.Validation.Valid {
		t.Errorf("entry = version %q valid %v", first.Version(), first.Validation.Valid)
	}

	t.Run("same version hits", func(t *testing.T) {
		again, err := c.Get(ctx, testDocument("quote", "v1", 10), cfg)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if again != first {
			t.Error("expected the cached entry")
		}
	})

	t.Run("new version rebuilds", func(t *testing.T) {
		next, err := c.Get(ctx, testDocument("quote", "v2", 11), cfg)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if next == first || next.Version() != "v2" {
			t.Errorf("expected a rebuilt v2 entry, got %q", next.Version())
		}
		if c.Len() != 1 {
			t.Errorf("Len() = %d, expected 1", c.Len())
		}
	})

	t.Run("new configuration rebuilds", func(t *testing.T) {
		other := cfg
		other.Precedence = classifier.PrefixFirst
		e, err := c.Get(ctx, testDocument("quote", "v2", 11), other)
		if err != nil {
			t.Fatalf("Get returned error: %v", err)
		}
		if c.Builds() != 3 {
			t.Errorf("Builds() = %d, expected 3", c.Builds())
		}
		if e.Version() != "v2" {
			t.Errorf("version = %q", e.Version())
		}
	})

	t.Run("invalidate", func(t *testing.T) {
		c.Invalidate("quote")
		if c.Len() != 0 {
			t.Errorf("Len() = %d after Invalidate, expected 0", c.Len())
		}
	})
}

// TestCacheSingleFlight tests that concurrent requests build once.
func TestCacheSingleFlight(t *testing.T) {
	t.Parallel()

	c := New()
	cfg := classifier.DefaultConfig()

	var wg sync.WaitGroup
	entries := make([]*Entry, 32)
	for i := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, err := c.Get(context.Background(), testDocument("shared", "v1", 1), cfg)
			if err != nil {
				t.Errorf("Get returned error: %v", err)
				return
			}
			entries[i] = e
		}()
	}
	wg.Wait()

	if c.Builds() != 1 {
		t.Errorf("Builds() = %d, expected 1", c.Builds())
	}
	for i, e := range entries {
		if e != entries[0] {
			t.Errorf("entries[%d] differs from entries[0]", i)
		}
	}
}

// TestCacheStore tests write-through persistence.
func TestCacheStore(t *testing.T) {
	t.Parallel()

	t.Run("saved once per build", func(t *testing.T) {
		t.Parallel()
		store := &recordingStore{}
		c := New(WithStore(store))
		cfg := classifier.DefaultConfig()

		for range 3 {
			if _, err := c.Get(context.Background(), testDocument("quote", "v1", 1), cfg); err != nil {
				t.Fatalf("Get returned error: %v", err)
			}
		}
		if len(store.saved) != 1 {
			t.Fatalf("saved %d templates, expected 1", len(store.saved))
		}
		r := store.saved[0]
		if r.Identity != "quote" || r.Version != "v1" || r.Validation == nil || r.Structure == nil {
			t.Errorf("saved report = %+v", r)
		}
	})

	t.Run("store failure does not fail Get", func(t *testing.T) {
		t.Parallel()
		c := New(WithStore(&recordingStore{err: errors.New("disk full")}))
		if _, err := c.Get(context.Background(), testDocument("quote", "v1", 1), classifier.DefaultConfig()); err != nil {
			t.Errorf("Get returned error: %v", err)
		}
	})
}

// TestCacheErrors tests caller mistakes.
func TestCacheErrors(t *testing.T) {
	t.Parallel()

	c := New()
	if _, err := c.Get(context.Background(), nil, classifier.DefaultConfig()); !errors.Is(err, ErrNilDocument) {
		t.Errorf("Get(nil) error = %v, expected ErrNilDocument", err)
	}

	cfg := classifier.DefaultConfig()
	cfg.InputNamePattern = "["
	if _, err := c.Get(context.Background(), testDocument("bad", "v1", 1), cfg); err == nil {
		t.Error("expected error for invalid configuration")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, expected 0", c.Len())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Get(ctx, testDocument("cancelled", "v1", 1), classifier.DefaultConfig()); err == nil {
		// The build may win the race against the cancelled context.
		t.Log("build finished before cancellation was observed")
	}
}

// TestCacheSlowOlderBuild tests that a build for an older version that
// finishes after a newer version was cached does not replace it.
func TestCacheSlowOlderBuild(t *testing.T) {
	t.Parallel()

	cfg := classifier.DefaultConfig()
	store := &recordingStore{}
	c := New(WithStore(store))
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return t0.Add(time.Minute) }

	// v2 started and finished while the v1 flight, started at t0, was
	// still analysing.
	newer, err := c.build(testDocument("quote", "v2", 20), cfg, t0.Add(time.Second))
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	older, err := c.build(testDocument("quote", "v1", 10), cfg, t0)
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}

	if older.Version() != "v1" {
		t.Errorf("slow build returned version %q, expected v1", older.Version())
	}
	got, err := c.Get(context.Background(), testDocument("quote", "v2", 20), cfg)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != newer {
		t.Errorf("cached version = %q, expected the v2 entry", got.Version())
	}
	if len(store.saved) != 1 {
		t.Errorf("store saved %d templates, expected 1", len(store.saved))
	}

	// A build that started after the cached entry replaces it.
	c.now = func() time.Time { return t0.Add(time.Hour) }
	rebuilt, err := c.build(testDocument("quote", "v1", 10), cfg, t0.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("build returned error: %v", err)
	}
	if got, _ := c.Get(context.Background(), testDocument("quote", "v1", 10), cfg); got != rebuilt {
		t.Error("expected the fresh v1 entry to replace v2")
	}
}
