package vector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/ragkit/internal/models"
)

// Store owns index entries on top of a backend Index. Entries are registered before their
// vectors become searchable and unregistered after their vectors are removed, so a concurrent
// search sees either the state before or after an add or delete.
type Store struct {
	index   Index
	mu      sync.RWMutex
	entries map[string]*models.IndexEntry
	seq     uint64
}

// NewStore wraps index.
func NewStore(index Index) *Store {
	return &Store{
		index:   index,
		entries: make(map[string]*models.IndexEntry),
	}
}

// Backend returns the backend name of the underlying index.
func (s *Store) Backend() string {
	return s.index.Type()
}

// Dimensions returns the vector dimension accepted by the store.
func (s *Store) Dimensions() int {
	return s.index.Dimensions()
}

// Size returns the number of entries.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) checkVectors(vectors [][]float32, n int) error {
	if len(vectors) != n {
		return fmt.Errorf("%w: %d vectors for %d chunks", models.ErrValidation, len(vectors), n)
	}
	for i, v := range vectors {
		if len(v) != s.Dimensions() {
			return fmt.Errorf("%w: vector %d has %d dimensions, store expects %d", models.ErrDimensionMismatch, i, len(v), s.Dimensions())
		}
	}
	return nil
}

// Add stores one entry per (vector, chunk) pair and returns the new entry ids in order.
// If any vector has the wrong dimension nothing is added.
func (s *Store) Add(ctx context.Context, vectors [][]float32, chunks []models.Chunk) ([]string, error) {
	if err := s.checkVectors(vectors, len(chunks)); err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	entries := make([]*models.IndexEntry, len(chunks))
	s.mu.Lock()
	for i := range chunks {
		s.seq++
		entries[i] = newEntry(uuid.NewString(), s.seq, vectors[i], chunks[i])
	}
	s.mu.Unlock()

	if err := s.insert(ctx, entries); err != nil {
		return nil, err
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids, nil
}

// Restore re-inserts previously persisted entries, keeping their ids and sequence numbers.
func (s *Store) Restore(ctx context.Context, entries []*models.IndexEntry) error {
	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		vectors[i] = e.Vector
	}
	if err := s.checkVectors(vectors, len(entries)); err != nil {
		return err
	}
	restored := make([]*models.IndexEntry, len(entries))
	s.mu.Lock()
	for i, e := range entries {
		if _, dup := s.entries[e.ID]; dup {
			s.mu.Unlock()
			return fmt.Errorf("%w: duplicate entry id %s", models.ErrValidation, e.ID)
		}
		restored[i] = newEntry(e.ID, e.Seq, e.Vector, e.Chunk)
		s.seq = max(s.seq, e.Seq)
	}
	s.mu.Unlock()
	return s.insert(ctx, restored)
}

func newEntry(id string, seq uint64, vector []float32, chunk models.Chunk) *models.IndexEntry {
	chunk.Metadata = models.CloneMetadata(chunk.Metadata)
	return &models.IndexEntry{
		ID:     id,
		Vector: append([]float32(nil), vector...),
		Chunk:  chunk,
		Seq:    seq,
	}
}

func (s *Store) insert(ctx context.Context, entries []*models.IndexEntry) error {
	ids := make([]string, len(entries))
	vectors := make([][]float32, len(entries))
	s.mu.Lock()
	for i, e := range entries {
		s.entries[e.ID] = e
		ids[i] = e.ID
		vectors[i] = e.Vector
	}
	s.mu.Unlock()

	if err := s.index.Add(ctx, ids, vectors); err != nil {
		s.mu.Lock()
		for _, id := range ids {
			delete(s.entries, id)
		}
		s.mu.Unlock()
		return fmt.Errorf("add to %s index: %w", s.Backend(), err)
	}
	return nil
}

// Search returns at most min(k, Size()) hits, by descending score and then insertion order.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]models.SearchHit, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", models.ErrValidation, k)
	}
	if len(query) != s.Dimensions() {
		return nil, fmt.Errorf("%w: query has %d dimensions, store expects %d", models.ErrDimensionMismatch, len(query), s.Dimensions())
	}
	// Held across the backend search so a concurrent delete cannot drop a hit unreplaced.
	s.mu.RLock()
	raw, err := s.index.Search(ctx, query, k)
	if err != nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("search %s index: %w", s.Backend(), err)
	}

	type ranked struct {
		hit models.SearchHit
		seq uint64
	}
	out := make([]ranked, 0, len(raw))
	for _, h := range raw {
		e, ok := s.entries[h.ID]
		if !ok {
			continue
		}
		out = append(out, ranked{hit: models.SearchHit{ID: h.ID, Score: h.Score}, seq: e.Seq})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].hit.Score != out[j].hit.Score {
			return out[i].hit.Score > out[j].hit.Score
		}
		return out[i].seq < out[j].seq
	})
	hits := make([]models.SearchHit, len(out))
	for i, r := range out {
		hits[i] = r.hit
	}
	return hits, nil
}

// Delete removes the entry with the given id and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.DeleteMany(ctx, []string{id})
	return n > 0, err
}

// DeleteMany removes the given entries and returns how many existed.
func (s *Store) DeleteMany(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	present := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.entries[id]; ok {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return 0, nil
	}
	if _, err := s.index.Remove(ctx, present); err != nil {
		return 0, fmt.Errorf("remove from %s index: %w", s.Backend(), err)
	}
	for _, id := range present {
		delete(s.entries, id)
	}
	return len(present), nil
}

// Entry returns the entry with the given id.
func (s *Store) Entry(id string) (*models.IndexEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Entries returns all entries in insertion order.
func (s *Store) Entries() []*models.IndexEntry {
	return s.filter(func(*models.IndexEntry) bool { return true })
}

// EntriesBySource returns the entries whose chunk came from source, in insertion order.
func (s *Store) EntriesBySource(source string) []*models.IndexEntry {
	return s.filter(func(e *models.IndexEntry) bool { return e.Chunk.Source() == source })
}

// Sources returns the number of distinct chunk sources.
func (s *Store) Sources() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, e := range s.entries {
		seen[e.Chunk.Source()] = struct{}{}
	}
	return len(seen)
}

func (s *Store) filter(keep func(*models.IndexEntry) bool) []*models.IndexEntry {
	s.mu.RLock()
	out := make([]*models.IndexEntry, 0, len(s.entries))
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out
}

// Close closes the underlying index.
func (s *Store) Close() error {
	return s.index.Close()
}
