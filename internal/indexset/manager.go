package indexset

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/setbench/setbench/internal/errors"
	"github.com/setbench/setbench/internal/logging"
	"github.com/setbench/setbench/pkg/types"
)

// Manager owns one index of each kind and keeps their id-sets identical.
// A single RWMutex covers all three containers and the shadow key table.
//
// Timed operations start the clock after the lock is acquired, so returned
// durations measure container work only, identically for every kind.
type Manager struct {
	mu      sync.RWMutex
	hash    *HashIndex
	ordered *OrderedIndex
	sorted  *SortedIndex

	// keys maps id to the sort key currently stored in the sorted index.
	keys map[uuid.UUID]types.SortKey

	hooksMu sync.Mutex
	onReset []func()

	logger *slog.Logger
}

// NewManager creates an empty manager.
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		hash:    NewHashIndex(),
		ordered: NewOrderedIndex(),
		sorted:  NewSortedIndex(),
		keys:    make(map[uuid.UUID]types.SortKey),
		logger:  logging.OrDefault(logger),
	}
}

// OnReset registers fn to run after every Reset, outside the manager lock.
func (m *Manager) OnReset(fn func()) {
	m.hooksMu.Lock()
	m.onReset = append(m.onReset, fn)
	m.hooksMu.Unlock()
}

// InsertOrUpdate upserts r into all three indexes as one unit and returns
// the time spent in the containers.
func (m *Manager) InsertOrUpdate(r types.Record) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	m.upsertLocked(r)
	return time.Since(start)
}

func (m *Manager) upsertLocked(r types.Record) {
	newKey := r.Key()
	if oldKey, ok := m.keys[r.ID]; ok && oldKey != newKey {
		m.sorted.Remove(types.Record{ID: oldKey.ID, Name: oldKey.Name})
	}
	m.hash.Insert(r)
	m.ordered.Insert(r)
	m.sorted.Insert(r)
	m.keys[r.ID] = newKey
}

// Remove deletes id from all three indexes. Removing an absent id is a no-op.
// It reports whether the id was present and the time spent in the containers.
func (m *Manager) Remove(id uuid.UUID) (bool, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	key, ok := m.keys[id]
	if ok {
		probe := types.Record{ID: id, Name: key.Name}
		m.hash.Remove(probe)
		m.ordered.Remove(probe)
		m.sorted.Remove(probe)
		delete(m.keys, id)
	}
	return ok, time.Since(start)
}

// Contains runs kind's native membership test for id. For the sorted index
// the id is first resolved to its sort key; that resolution is part of the
// timed section because the container cannot be probed by id alone.
func (m *Manager) Contains(kind Kind, id uuid.UUID) (bool, time.Duration) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := time.Now()
	var found bool
	switch kind {
	case KindHash:
		found = m.hash.Contains(types.Record{ID: id})
	case KindOrdered:
		found = m.ordered.Contains(types.Record{ID: id})
	case KindSorted:
		if key, ok := m.keys[id]; ok {
			found = m.sorted.Contains(types.Record{ID: id, Name: key.Name})
		}
	}
	return found, time.Since(start)
}

// SyncFrom replaces the contents of every index with records. Later
// duplicates of an id update the earlier entry without moving it.
func (m *Manager) SyncFrom(records []types.Record) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	start := time.Now()
	m.clearLocked()
	for _, r := range records {
		m.upsertLocked(r)
	}
	elapsed := time.Since(start)

	m.logger.Debug("index set synced", "records", len(records), "size", len(m.keys), "elapsed", elapsed)
	return elapsed
}

// Reset empties every index, then runs the OnReset hooks.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.clearLocked()
	m.mu.Unlock()

	m.hooksMu.Lock()
	hooks := append([]func(){}, m.onReset...)
	m.hooksMu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	m.logger.Info("index set reset")
}

func (m *Manager) clearLocked() {
	m.hash.Clear()
	m.ordered.Clear()
	m.sorted.Clear()
	m.keys = make(map[uuid.UUID]types.SortKey)
}

// SampleFirstN returns up to k records of kind in natural iteration order.
func (m *Manager) SampleFirstN(kind Kind, k int) []types.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return FirstN(m.indexLocked(kind), k)
}

// Size returns the number of records held by kind.
func (m *Manager) Size(kind Kind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.indexLocked(kind).Len()
}

// Sizes returns the size of every index, read under one lock.
func (m *Manager) Sizes() map[Kind]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[Kind]int{
		KindHash:    m.hash.Len(),
		KindOrdered: m.ordered.Len(),
		KindSorted:  m.sorted.Len(),
	}
}

// Records returns a copy of the live set in insertion order.
func (m *Manager) Records() []types.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return FirstN(m.ordered, m.ordered.Len())
}

func (m *Manager) indexLocked(kind Kind) Index {
	switch kind {
	case KindOrdered:
		return m.ordered
	case KindSorted:
		return m.sorted
	default:
		return m.hash
	}
}

// Verify checks that all three indexes and the shadow table hold the same
// id-set. A failure means a bug in the manager and is reported as an
// invariant violation.
func (m *Manager) Verify() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.keys)
	if m.hash.Len() != n || m.ordered.Len() != n || m.sorted.Len() != n {
		return errors.NewInvariantError(fmt.Sprintf(
			"index sizes diverged: keys=%d hash=%d ordered=%d sorted=%d",
			n, m.hash.Len(), m.ordered.Len(), m.sorted.Len())).
			WithDetails(map[string]interface{}{"keys": n})
	}

	var bad error
	check := func(idx Index) func(types.Record) bool {
		return func(r types.Record) bool {
			key, ok := m.keys[r.ID]
			if !ok || key != r.Key() {
				bad = errors.NewInvariantError(fmt.Sprintf("%s index holds stale entry for %s", idx.Kind(), r.ID))
				return false
			}
			return true
		}
	}
	for _, idx := range []Index{m.hash, m.ordered, m.sorted} {
		idx.Ascend(check(idx))
		if bad != nil {
			return bad
		}
	}
	return nil
}
