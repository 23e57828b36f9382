// Package cache keeps finished frontier sweeps and reports in an in-memory
// LRU. Values are stored msgpack-encoded so callers never share mutable
// state with the cache.
package cache

import (
	"bytes"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/allocator/internal/domain"
	"github.com/aristath/allocator/internal/modules/report"
)

// DefaultSize is the number of entries kept when none is configured.
const DefaultSize = 128

const (
	frontierPrefix = "frontier:"
	reportPrefix   = "report:"
)

// Recorder receives hit/miss observations. *metrics.Metrics satisfies it.
type Recorder interface {
	ObserveCacheLookup(cache string, hit bool)
}

// Store is an LRU of msgpack blobs. It satisfies
// optimization.FrontierCache and report.Cache.
type Store struct {
	lru      *lru.Cache
	recorder Recorder
	log      zerolog.Logger
}

// New creates a store holding at most size entries.
func New(size int, log zerolog.Logger) (*Store, error) {
	if size <= 0 {
		size = DefaultSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &Store{
		lru: c,
		log: log.With().Str("component", "cache").Logger(),
	}, nil
}

// SetRecorder attaches a metrics recorder.
func (s *Store) SetRecorder(r Recorder) {
	s.recorder = r
}

// Len returns the number of cached entries.
func (s *Store) Len() int {
	return s.lru.Len()
}

// Purge drops every entry.
func (s *Store) Purge() {
	s.lru.Purge()
}

// GetFrontier implements optimization.FrontierCache.
func (s *Store) GetFrontier(key string) (domain.FrontierCurve, bool) {
	var curve domain.FrontierCurve
	ok := s.get("frontier", frontierPrefix+key, &curve)
	return curve, ok
}

// PutFrontier implements optimization.FrontierCache.
func (s *Store) PutFrontier(key string, curve domain.FrontierCurve) {
	s.set(frontierPrefix+key, curve)
}

// GetReport implements report.Cache.
func (s *Store) GetReport(key string) (*report.Report, bool) {
	r := new(report.Report)
	if !s.get("report", reportPrefix+key, r) {
		return nil, false
	}
	return r, true
}

// PutReport implements report.Cache.
func (s *Store) PutReport(key string, r *report.Report) {
	s.set(reportPrefix+key, r)
}

func (s *Store) get(kind, key string, v interface{}) bool {
	raw, ok := s.lru.Get(key)
	if ok {
		dec := msgpack.NewDecoder(bytes.NewReader(raw.([]byte)))
		dec.SetCustomStructTag("json")
		if err := dec.Decode(v); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cache entry")
			s.lru.Remove(key)
			ok = false
		}
	}
	if s.recorder != nil {
		s.recorder.ObserveCacheLookup(kind, ok)
	}
	return ok
}

func (s *Store) set(key string, v interface{}) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to encode cache entry")
		return
	}
	s.lru.Add(key, buf.Bytes())
}
