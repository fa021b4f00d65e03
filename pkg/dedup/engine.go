package dedup

import (
	"sync"

	"fanslydl/pkg/media"
)

// DefaultImageThreshold is the Hamming distance at or below which two image hashes match
const DefaultImageThreshold = 8

// Options configure an Engine
type Options struct {
	// Perceptual enables distance matching for images; off means exact match
	Perceptual bool
	// ImageThreshold is the maximum Hamming distance for a perceptual match
	ImageThreshold int
}

// Record is a fingerprint of a file already on disk
type Record struct {
	ID       string
	Hash     string
	Filename string
}

type poolKey struct {
	kind    media.Kind
	preview bool
}

type pool struct {
	ids    map[string]struct{}
	hashes map[string]string
	images []imageEntry
}

type imageEntry struct {
	hash     string
	filename string
}

// Engine tracks media ids and content hashes already materialised.
// Each media kind has its own pool and previews are kept apart from full media.
type Engine struct {
	opts Options

	mu    sync.Mutex
	pools map[poolKey]*pool
}

// NewEngine creates an empty engine
func NewEngine(opts Options) *Engine {
	if opts.ImageThreshold < 0 {
		opts.ImageThreshold = 0
	}
	return &Engine{opts: opts, pools: make(map[poolKey]*pool)}
}

func (e *Engine) pool(kind media.Kind, preview bool) *pool {
	key := poolKey{kind: kind, preview: preview}
	p, ok := e.pools[key]
	if !ok {
		p = &pool{ids: make(map[string]struct{}), hashes: make(map[string]string)}
		e.pools[key] = p
	}
	return p
}

// SeenID reports whether the descriptor's id is already recorded
func (e *Engine) SeenID(d media.Descriptor) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.pool(d.Kind, d.Preview).ids[d.ID]
	return ok
}

// IsDuplicate reports whether the descriptor id or the content hash is already recorded.
// An empty hash checks the id only.
func (e *Engine) IsDuplicate(d media.Descriptor, hash string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := e.pool(d.Kind, d.Preview)
	if _, ok := p.ids[d.ID]; ok && d.ID != "" {
		return true
	}
	if hash == "" {
		return false
	}
	if _, ok := p.hashes[hash]; ok {
		return true
	}
	if d.Kind == media.KindImage && e.opts.Perceptual {
		return e.nearImage(p, hash)
	}
	return false
}

func (e *Engine) nearImage(p *pool, hash string) bool {
	for _, entry := range p.images {
		dist, err := ImageDistance(entry.hash, hash)
		if err != nil {
			continue
		}
		if dist <= e.opts.ImageThreshold {
			return true
		}
	}
	return false
}

// Record adds a materialised file; recording the same values twice is a no-op
func (e *Engine) Record(d media.Descriptor, hash, filename string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(d.Kind, d.Preview, Record{ID: d.ID, Hash: hash, Filename: filename})
}

func (e *Engine) record(kind media.Kind, preview bool, r Record) {
	p := e.pool(kind, preview)
	if r.ID != "" {
		p.ids[r.ID] = struct{}{}
	}
	if r.Hash == "" {
		return
	}
	if _, ok := p.hashes[r.Hash]; ok {
		return
	}
	p.hashes[r.Hash] = r.Filename
	if kind == media.KindImage {
		if _, ok := parseImageHash(r.Hash); ok {
			p.images = append(p.images, imageEntry{hash: r.Hash, filename: r.Filename})
		}
	}
}

// Stats reports the number of ids and hashes recorded for a kind
func (e *Engine) Stats(kind media.Kind, preview bool) (ids, hashes int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.pool(kind, preview)
	return len(p.ids), len(p.hashes)
}

// Breaker trips after a run of consecutive duplicates
type Breaker struct {
	limit  int
	streak int
}

// NewBreaker creates a breaker; a limit of zero or less never trips
func NewBreaker(limit int) *Breaker {
	return &Breaker{limit: limit}
}

// Observe records one outcome and reports whether the source should stop
func (b *Breaker) Observe(duplicate bool) bool {
	if !duplicate {
		b.streak = 0
		return false
	}
	b.streak++
	return b.limit > 0 && b.streak >= b.limit
}

// Reset clears the current streak
func (b *Breaker) Reset() { b.streak = 0 }
