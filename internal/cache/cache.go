// Package cache keeps analysed templates in memory, keyed by template
// identity.
//
// An entry is valid for exactly one document version: asking for a newer
// version rebuilds the entry and replaces the old one. Concurrent requests
// for a template that is not cached yet share a single construction.
//
// Design decision: We use golang.org/x/sync/singleflight rather than a lock
// per identity because callers waiting on a construction can give up on
// their own context without cancelling the build for everyone else.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nao1215/formulagraph/internal/analyzer"
	"github.com/nao1215/formulagraph/internal/classifier"
	"github.com/nao1215/formulagraph/internal/model"
	"github.com/nao1215/formulagraph/internal/validator"
)

// ErrNilDocument is returned by Get when called without a document.
var ErrNilDocument = errors.New("document is nil")

// Store persists newly built templates. database.TemplateDB implements it.
type Store interface {
	SaveTemplate(ctx context.Context, r *model.TemplateReport) error
}

// Entry is one cached template.
type Entry struct {
	// Analysis is the analysed template.
	Analysis *analyzer.Analysis

	// Validation is the validation result of the analysis.
	Validation *model.ValidationResult

	// BuiltAt is when the entry was built.
	BuiltAt time.Time

	config classifier.Config
}

// Version returns the document version the entry was built from.
func (e *Entry) Version() string {
	return e.Analysis.Version
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore writes every newly built entry through to s.
func WithStore(s Store) Option {
	return func(c *Cache) {
		c.store = s
	}
}

// WithAnalyzerOptions sets options passed to analyzer.Analyze.
func WithAnalyzerOptions(opts ...analyzer.Option) Option {
	return func(c *Cache) {
		c.analyzerOpts = append(c.analyzerOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// Cache is a concurrency-safe template cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	group   singleflight.Group

	store        Store
	analyzerOpts []analyzer.Option
	logger       *slog.Logger
	now          func() time.Time

	builds int
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]*Entry),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the entry for doc, building it when the cache holds no entry
// for doc's identity, holds one for another version, or holds one built
// with a different classifier configuration.
func (c *Cache) Get(ctx context.Context, doc *model.Document, cfg classifier.Config) (*Entry, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}

	if e := c.lookup(doc.Identity, doc.Version, cfg); e != nil {
		return e, nil
	}

	key := fmt.Sprintf("%s\x00%s\x00%v", doc.Identity, doc.Version, cfg)
	ch := c.group.DoChan(key, func() (any, error) {
		// Another flight may have finished between lookup and DoChan.
		if e := c.lookup(doc.Identity, doc.Version, cfg); e != nil {
			return e, nil
		}
		return c.build(doc, cfg, c.now())
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Entry), nil //nolint:forcetypeassert // the flight only returns *Entry
	}
}

func (c *Cache) lookup(identity, version string, cfg classifier.Config) *Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[identity]
	if !ok || e.Version() != version || e.config != cfg {
		return nil
	}
	return e
}

// build analyses doc and stores the entry. started is when the flight
// began: an entry for another version built after that point is newer and
// is kept, and the caller still receives the entry it asked for.
func (c *Cache) build(doc *model.Document, cfg classifier.Config, started time.Time) (*Entry, error) {
	a, err := analyzer.Analyze(doc, cfg, c.analyzerOpts...)
	if err != nil {
		return nil, err
	}

	e := &Entry{
		Analysis:   a,
		Validation: validator.Validate(a),
		BuiltAt:    c.now(),
		config:     cfg,
	}

	c.mu.Lock()
	stale := false
	if old, ok := c.entries[doc.Identity]; ok && old.Version() != doc.Version {
		if old.BuiltAt.After(started) {
			stale = true
			c.logger.Debug("kept newer template", "identity", doc.Identity, "cached_version", old.Version(), "built_version", doc.Version)
		} else {
			c.logger.Debug("invalidated template", "identity", doc.Identity, "old_version", old.Version(), "new_version", doc.Version)
		}
	}
	if !stale {
		c.entries[doc.Identity] = e
	}
	c.builds++
	c.mu.Unlock()

	if c.store != nil && !stale {
		r := e.Report(doc.Identity)
		// The build must outlive any single waiter, so it does not use a
		// caller's context.
		if err := c.store.SaveTemplate(context.Background(), r); err != nil {
			c.logger.Warn("failed to persist template", "identity", doc.Identity, "error", err)
		}
	}
	return e, nil
}

// Report builds a template report for the entry.
func (e *Entry) Report(path string) *model.TemplateReport {
	r := model.NewTemplateReport(path)
	r.AnalyzedAt = e.BuiltAt
	e.Analysis.FillReport(r)
	r.Validation = e.Validation
	return r
}

// Invalidate drops the entry for identity.
func (c *Cache) Invalidate(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, identity)
}

// Len returns the number of cached templates.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Builds returns the number of entries built since the cache was created.
func (c *Cache) Builds() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.builds
}
