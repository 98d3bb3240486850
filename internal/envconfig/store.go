// Package envconfig serves the per-environment sections of the IVR
// environment file, a JSON object keyed by environment name.
package envconfig

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"ivr/internal/cache"
	"ivr/internal/log"
)

// DefaultPath is the production environment file.
const DefaultPath = "/usr/src/scripts/ivr/env.config.json"

// Environments lists the accepted environment names.
var Environments = []string{"desa", "prod", "calidad"}

var (
	ErrInvalidEnvironment = errors.New("invalid environment")
	ErrFileNotFound       = errors.New("environment file not found")
	ErrSectionNotFound    = errors.New("environment section not found")
)

// ParseError is an environment file that exists but cannot be read or decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type snapshot struct {
	modTime  time.Time
	sections map[string]json.RawMessage
}

// Store reads environment sections, caching the decoded file until it
// changes on disk or the TTL runs out.
type Store struct {
	path  string
	cache *cache.LRUCache[snapshot]
	group singleflight.Group
}

// NewStore creates a store over path. A zero ttl disables caching.
func NewStore(path string, ttl time.Duration) *Store {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{path: path}
	if ttl > 0 {
		s.cache = cache.NewLRUCache[snapshot](1, ttl)
	}
	return s
}

// Path returns the file the store reads.
func (s *Store) Path() string {
	return s.path
}

// Cleaner exposes the snapshot cache for periodic cleanup; nil when
// caching is disabled.
func (s *Store) Cleaner() cache.Cleaner {
	if s.cache == nil {
		return nil
	}
	return s.cache
}

// CacheStats reports snapshot cache lookups; zero when caching is disabled.
func (s *Store) CacheStats() cache.Stats {
	if s.cache == nil {
		return cache.Stats{}
	}
	return s.cache.Stats()
}

// ValidEnvironment reports whether name is an accepted environment.
func ValidEnvironment(name string) bool {
	for _, env := range Environments {
		if env == name {
			return true
		}
	}
	return false
}

// Section returns the raw JSON of one environment section.
func (s *Store) Section(ctx context.Context, env string) (json.RawMessage, error) {
	if !ValidEnvironment(env) {
		return nil, ErrInvalidEnvironment
	}

	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	raw, ok := snap.sections[env]
	if !ok || isFalsy(raw) {
		return nil, fmt.Errorf("%w: %s", ErrSectionNotFound, env)
	}
	return raw, nil
}

func (s *Store) load(ctx context.Context) (snapshot, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return snapshot{}, ErrFileNotFound
		}
		return snapshot{}, &ParseError{Path: s.path, Err: err}
	}

	if s.cache != nil {
		if snap, ok := s.cache.Get(s.path); ok && snap.modTime.Equal(info.ModTime()) {
			return snap, nil
		}
	}

	v, err, _ := s.group.Do(s.path, func() (interface{}, error) {
		data, err := os.ReadFile(s.path)
		if err != nil {
			return nil, &ParseError{Path: s.path, Err: err}
		}
		var sections map[string]json.RawMessage
		if err := json.Unmarshal(data, &sections); err != nil {
			return nil, &ParseError{Path: s.path, Err: err}
		}
		snap := snapshot{modTime: info.ModTime(), sections: sections}
		if s.cache != nil {
			s.cache.Set(s.path, snap)
		}
		log.WithComponent(log.ComponentEnvConfig).DebugContext(ctx, "Environment file loaded", "path", s.path, "sections", len(sections))
		return snap, nil
	})
	if err != nil {
		return snapshot{}, err
	}
	return v.(snapshot), nil
}

// isFalsy matches the section values treated as absent.
func isFalsy(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "false", "0", `""`:
		return true
	}
	return false
}
