package audio

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"charm.land/log/v2"
	"github.com/gopxl/beep/v2"
	"golang.org/x/sync/errgroup"

	"github.com/satindergrewal/ison/internal/catalog"
)

// Sample is a decoded note kept in memory for looping.
type Sample struct {
	Note   catalog.Note
	Format beep.Format
	Buffer *beep.Buffer
}

// CacheConfig holds sample loading parameters.
type CacheConfig struct {
	Concurrency  int           // parallel loads, 0 = unlimited
	FetchTimeout time.Duration // per-note fetch+decode bound, 0 = none

	// Decoder overrides extension-based decoder selection when set.
	Decoder Decoder
}

// CacheStatus is a snapshot of sample loading progress.
type CacheStatus struct {
	Loaded  []string          `json:"loaded"`
	Failed  map[string]string `json:"failed"`
	Pending int               `json:"pending"`
	Settled bool              `json:"settled"`
}

// SampleCache loads every catalog sample once and serves decoded buffers.
type SampleCache struct {
	catalog *catalog.Catalog
	fetcher Fetcher
	cfg     CacheConfig

	once    sync.Once
	settled chan struct{}

	mu      sync.RWMutex
	samples map[catalog.Note]*Sample
	failed  map[catalog.Note]error
}

// NewSampleCache creates an empty cache. Call LoadAll to fill it.
func NewSampleCache(c *catalog.Catalog, f Fetcher, cfg CacheConfig) *SampleCache {
	return &SampleCache{
		catalog: c,
		fetcher: f,
		cfg:     cfg,
		settled: make(chan struct{}),
		samples: make(map[catalog.Note]*Sample),
		failed:  make(map[catalog.Note]error),
	}
}

// LoadAll starts loading every sample in the background and returns
// immediately. Each note loads independently; a failed note is logged and
// left absent. Settled is closed once every load has finished. Calls after
// the first are no-ops.
func (sc *SampleCache) LoadAll(ctx context.Context) {
	sc.once.Do(func() {
		go sc.loadAll(ctx)
	})
}

// Settled is closed when every load has either succeeded or failed.
func (sc *SampleCache) Settled() <-chan struct{} {
	return sc.settled
}

// Wait blocks until loading has settled or ctx is done.
func (sc *SampleCache) Wait(ctx context.Context) error {
	select {
	case <-sc.settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sample returns the decoded sample for a note, if it has loaded.
func (sc *SampleCache) Sample(n catalog.Note) (*Sample, bool) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	s, ok := sc.samples[n]
	return s, ok
}

// Ready reports whether a note can be played.
func (sc *SampleCache) Ready(n catalog.Note) bool {
	_, ok := sc.Sample(n)
	return ok
}

// Failed returns the load error for a note, or nil.
func (sc *SampleCache) Failed(n catalog.Note) error {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.failed[n]
}

// Status returns current loading progress.
func (sc *SampleCache) Status() CacheStatus {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	st := CacheStatus{
		Loaded: make([]string, 0, len(sc.samples)),
		Failed: make(map[string]string, len(sc.failed)),
	}
	for n := range sc.samples {
		st.Loaded = append(st.Loaded, string(n))
	}
	sort.Strings(st.Loaded)
	for n, err := range sc.failed {
		st.Failed[string(n)] = err.Error()
	}
	st.Pending = len(sc.catalog.Notes()) - len(sc.samples) - len(sc.failed)
	select {
	case <-sc.settled:
		st.Settled = true
	default:
	}
	return st
}

func (sc *SampleCache) loadAll(ctx context.Context) {
	defer close(sc.settled)

	var g errgroup.Group
	if sc.cfg.Concurrency > 0 {
		g.SetLimit(sc.cfg.Concurrency)
	}
	for _, n := range sc.catalog.Notes() {
		g.Go(func() error {
			// Never return an error: one bad sample must not stop the rest.
			sc.load(ctx, n)
			return nil
		})
	}
	g.Wait()

	st := sc.Status()
	log.Info("All sound samples settled", "loaded", len(st.Loaded), "failed", len(st.Failed))
}

func (sc *SampleCache) load(ctx context.Context, n catalog.Note) {
	location, err := sc.catalog.Path(n)
	if err != nil {
		sc.fail(n, err)
		return
	}
	dec := sc.cfg.Decoder
	if dec == nil {
		if dec, err = DecoderFor(location); err != nil {
			sc.fail(n, err)
			return
		}
	}

	ctx, cancel := withTimeout(ctx, sc.cfg.FetchTimeout)
	defer cancel()

	rc, err := sc.fetcher.Fetch(ctx, location)
	if err != nil {
		sc.fail(n, fmt.Errorf("fetch %s: %w", location, err))
		return
	}
	buf, format, err := DecodeBuffer(rc, dec)
	if err != nil {
		sc.fail(n, fmt.Errorf("%s: %w", location, err))
		return
	}

	sc.mu.Lock()
	sc.samples[n] = &Sample{Note: n, Format: format, Buffer: buf}
	sc.mu.Unlock()
	log.Debug("Sample loaded", "note", n, "frames", buf.Len(), "rate", int(format.SampleRate))
}

func (sc *SampleCache) fail(n catalog.Note, err error) {
	sc.mu.Lock()
	sc.failed[n] = err
	sc.mu.Unlock()
	log.Error("Error loading sample", "note", n, "err", err)
}
