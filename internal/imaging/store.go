package imaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ironsheep/image-filter-server/internal/raster"
)

// ErrNotFound is returned for operations on an id the store does not hold.
var ErrNotFound = errors.New("image not found")

// Store keeps decoded images in memory, keyed by a caller-chosen id.
//
// Each id has two slots: the uploaded buffer and an optional processed
// buffer. Filters always read the processed buffer if there is one, else
// the uploaded buffer, and always write the processed slot. Reset drops
// the processed slot.
//
// Store is safe for concurrent use. Operations on the same id are
// serialized by a per-id lock, so two filters applied concurrently to one
// image both take effect, one after the other. Operations on different ids
// run independently.
//
// # Capacity
//
// If the store was created with a positive capacity, uploading a new id
// when the store is full evicts the least recently updated id.
type Store struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	maxImages int
}

type entry struct {
	// sem is the per-id lock. A channel rather than a sync.Mutex so that
	// waiting for it can be abandoned when a request's context ends.
	sem chan struct{}

	uploaded  *raster.Buffer
	processed *raster.Buffer
	format    string
	version   int64
	removed   bool

	// updated is read without holding sem when choosing an eviction victim.
	updated atomic.Int64
}

// Info describes the current state of a stored image.
type Info struct {
	ID        string    `json:"id"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Channels  int       `json:"channels"`
	Format    string    `json:"format"`
	Version   int64     `json:"version"`
	Processed bool      `json:"processed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStore creates an empty store. maxImages <= 0 means no limit.
func NewStore(maxImages int) *Store {
	return &Store{
		entries:   make(map[string]*entry),
		maxImages: maxImages,
	}
}

// Put stores buf as the uploaded image for id, replacing any previous
// upload and discarding its processed version. The store takes ownership
// of buf.
//
// format records the source format (e.g. "png") for later downloads.
func (s *Store) Put(id string, buf *raster.Buffer, format string) Info {
	for {
		e := s.getOrCreate(id)
		_ = e.lock(context.Background())
		if e.removed || !s.holds(id, e) {
			// Deleted or evicted between lookup and lock; retry with a
			// fresh entry.
			e.unlock()
			continue
		}
		e.uploaded = buf
		e.processed = nil
		e.format = format
		e.version++
		e.touch()
		info := e.info(id)
		e.unlock()
		return info
	}
}

// Current returns a copy of the buffer filters would read for id: the
// processed version if present, else the upload.
func (s *Store) Current(id string) (*raster.Buffer, Info, error) {
	e, err := s.lockEntry(context.Background(), id)
	if err != nil {
		return nil, Info{}, err
	}
	defer e.unlock()
	return e.current().Clone(), e.info(id), nil
}

// Info returns metadata for id without copying pixels.
func (s *Store) Info(id string) (Info, error) {
	e, err := s.lockEntry(context.Background(), id)
	if err != nil {
		return Info{}, err
	}
	defer e.unlock()
	return e.info(id), nil
}

// Apply runs fn on a private copy of id's current buffer and, if fn
// succeeds, commits the copy as the new processed version.
//
// The per-id lock is held until fn returns, even when ctx ends first. In
// that case Apply returns ctx's error at once and the copy is discarded;
// the lock passes to a goroutine that releases it when fn finishes, so at
// most one filter runs per id. A panic inside fn is reported as an error.
func (s *Store) Apply(ctx context.Context, id string, fn func(*raster.Buffer) error) (Info, error) {
	e, err := s.lockEntry(ctx, id)
	if err != nil {
		return Info{}, err
	}

	work := e.current().Clone()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("filter panicked: %v", r)
			}
		}()
		done <- fn(work)
	}()

	select {
	case err := <-done:
		defer e.unlock()
		if err != nil {
			return Info{}, err
		}
	case <-ctx.Done():
		go func() {
			<-done
			e.unlock()
		}()
		return Info{}, fmt.Errorf("filter on %q abandoned: %w", id, ctx.Err())
	}

	e.processed = work
	e.version++
	e.touch()
	return e.info(id), nil
}

// Reset discards the processed version of id so the next read returns the
// original upload.
func (s *Store) Reset(id string) (Info, error) {
	e, err := s.lockEntry(context.Background(), id)
	if err != nil {
		return Info{}, err
	}
	defer e.unlock()
	if e.processed != nil {
		e.processed = nil
		e.version++
		e.touch()
	}
	return e.info(id), nil
}

// Delete removes id from the store. It reports whether id was present.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	e, ok := s.entries[id]
	delete(s.entries, id)
	s.mu.Unlock()
	if !ok {
		return false
	}

	_ = e.lock(context.Background())
	e.removed = true
	e.uploaded, e.processed = nil, nil
	e.unlock()
	return true
}

// Len returns the number of stored ids.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear removes every image from the store.
func (s *Store) Clear() {
	s.mu.Lock()
	old := s.entries
	s.entries = make(map[string]*entry)
	s.mu.Unlock()

	for _, e := range old {
		_ = e.lock(context.Background())
		e.removed = true
		e.uploaded, e.processed = nil, nil
		e.unlock()
	}
}

func (s *Store) getOrCreate(id string) *entry {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[id]; ok {
		return e
	}
	if s.maxImages > 0 && len(s.entries) >= s.maxImages {
		s.evictOldestLocked()
	}
	e = &entry{sem: make(chan struct{}, 1)}
	e.touch()
	s.entries[id] = e
	return e
}

// holds reports whether e is still the live entry for id.
func (s *Store) holds(id string, e *entry) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[id] == e
}

// evictOldestLocked drops the least recently updated entry. The caller
// holds s.mu. The victim is marked removed lazily: anyone holding its
// lock finishes against the detached entry.
func (s *Store) evictOldestLocked() {
	var (
		victim string
		oldest int64
		found  bool
	)
	for id, e := range s.entries {
		if ts := e.updated.Load(); !found || ts < oldest {
			victim, oldest, found = id, ts, true
		}
	}
	if !found {
		return
	}
	e := s.entries[victim]
	delete(s.entries, victim)
	go func() {
		_ = e.lock(context.Background())
		e.removed = true
		e.uploaded, e.processed = nil, nil
		e.unlock()
	}()
}

// lockEntry finds id and acquires its lock.
func (s *Store) lockEntry(ctx context.Context, id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err := e.lock(ctx); err != nil {
		return nil, err
	}
	if e.removed || e.uploaded == nil {
		e.unlock()
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return e, nil
}

func (e *entry) lock(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *entry) unlock() { <-e.sem }

func (e *entry) current() *raster.Buffer {
	if e.processed != nil {
		return e.processed
	}
	return e.uploaded
}

func (e *entry) touch() { e.updated.Store(time.Now().UnixNano()) }

func (e *entry) info(id string) Info {
	cur := e.current()
	return Info{
		ID:        id,
		Width:     cur.Width(),
		Height:    cur.Height(),
		Channels:  cur.Channels(),
		Format:    e.format,
		Version:   e.version,
		Processed: e.processed != nil,
		UpdatedAt: time.Unix(0, e.updated.Load()).UTC(),
	}
}
