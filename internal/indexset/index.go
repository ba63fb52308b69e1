// Package indexset holds the three in-memory index kinds over Record and the
// Manager that keeps them consistent with each other.
package indexset

import (
	"fmt"
	"strings"

	"github.com/google/btree"
	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/setbench/setbench/pkg/types"
)

// Kind identifies an index strategy. The declaration order is also the
// tie-break order when benchmark winners have equal durations.
type Kind int

const (
	KindHash Kind = iota
	KindOrdered
	KindSorted
)

// Kinds lists every index kind in declaration order.
var Kinds = []Kind{KindHash, KindOrdered, KindSorted}

// String returns the kind's wire name.
func (k Kind) String() string {
	switch k {
	case KindHash:
		return "hash"
	case KindOrdered:
		return "ordered"
	case KindSorted:
		return "sorted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler so kinds serialize by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind parses a wire name back into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "hash":
		return KindHash, nil
	case "ordered":
		return KindOrdered, nil
	case "sorted":
		return KindSorted, nil
	default:
		return 0, fmt.Errorf("unknown index kind: %q", s)
	}
}

// Index is a single container of records. Implementations are not safe for
// concurrent use; the Manager serializes access.
type Index interface {
	Kind() Kind

	// Insert adds r or replaces the entry with the same native key.
	Insert(r types.Record)

	// Contains runs the native membership test. Hash and ordered indexes
	// probe by id, the sorted index probes by (name, id).
	Contains(r types.Record) bool

	// Remove deletes the entry with r's native key and reports whether it existed.
	Remove(r types.Record) bool

	Len() int

	// Ascend visits entries in natural iteration order until fn returns false.
	Ascend(fn func(types.Record) bool)

	// OrderGuaranteed reports whether Ascend order is deterministic.
	OrderGuaranteed() bool

	Clear()
}

// New allocates an empty index of the given kind.
func New(kind Kind) Index {
	switch kind {
	case KindOrdered:
		return NewOrderedIndex()
	case KindSorted:
		return NewSortedIndex()
	default:
		return NewHashIndex()
	}
}

// HashIndex is an unordered index keyed by id.
type HashIndex struct {
	items map[uuid.UUID]types.Record
}

// NewHashIndex creates an empty hash index.
func NewHashIndex() *HashIndex {
	return &HashIndex{items: make(map[uuid.UUID]types.Record)}
}

func (h *HashIndex) Kind() Kind            { return KindHash }
func (h *HashIndex) Len() int              { return len(h.items) }
func (h *HashIndex) OrderGuaranteed() bool { return false }

func (h *HashIndex) Insert(r types.Record) {
	h.items[r.ID] = r
}

func (h *HashIndex) Contains(r types.Record) bool {
	_, ok := h.items[r.ID]
	return ok
}

func (h *HashIndex) Remove(r types.Record) bool {
	if _, ok := h.items[r.ID]; !ok {
		return false
	}
	delete(h.items, r.ID)
	return true
}

func (h *HashIndex) Ascend(fn func(types.Record) bool) {
	for _, r := range h.items {
		if !fn(r) {
			return
		}
	}
}

func (h *HashIndex) Clear() {
	h.items = make(map[uuid.UUID]types.Record)
}

// OrderedIndex preserves first-insertion order. Re-inserting an existing id
// replaces the value in place without moving it.
type OrderedIndex struct {
	items *orderedmap.OrderedMap[uuid.UUID, types.Record]
}

// NewOrderedIndex creates an empty insertion-ordered index.
func NewOrderedIndex() *OrderedIndex {
	return &OrderedIndex{items: orderedmap.New[uuid.UUID, types.Record]()}
}

func (o *OrderedIndex) Kind() Kind            { return KindOrdered }
func (o *OrderedIndex) Len() int              { return o.items.Len() }
func (o *OrderedIndex) OrderGuaranteed() bool { return true }

func (o *OrderedIndex) Insert(r types.Record) {
	o.items.Set(r.ID, r)
}

func (o *OrderedIndex) Contains(r types.Record) bool {
	_, ok := o.items.Get(r.ID)
	return ok
}

func (o *OrderedIndex) Remove(r types.Record) bool {
	_, ok := o.items.Delete(r.ID)
	return ok
}

func (o *OrderedIndex) Ascend(fn func(types.Record) bool) {
	for pair := o.items.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Value) {
			return
		}
	}
}

func (o *OrderedIndex) Clear() {
	o.items = orderedmap.New[uuid.UUID, types.Record]()
}

// sortedDegree is the B-tree branching factor.
const sortedDegree = 32

// SortedIndex keeps records ordered by (name, id). Its native key is the
// sort key, so two entries with the same id but different names are distinct
// here. Callers that need id-level dedup must evict the old key themselves.
type SortedIndex struct {
	tree *btree.BTreeG[types.Record]
}

// NewSortedIndex creates an empty sorted index.
func NewSortedIndex() *SortedIndex {
	return &SortedIndex{tree: btree.NewG[types.Record](sortedDegree, types.Record.Less)}
}

func (s *SortedIndex) Kind() Kind            { return KindSorted }
func (s *SortedIndex) Len() int              { return s.tree.Len() }
func (s *SortedIndex) OrderGuaranteed() bool { return true }

func (s *SortedIndex) Insert(r types.Record) {
	s.tree.ReplaceOrInsert(r)
}

func (s *SortedIndex) Contains(r types.Record) bool {
	return s.tree.Has(r)
}

func (s *SortedIndex) Remove(r types.Record) bool {
	_, ok := s.tree.Delete(r)
	return ok
}

func (s *SortedIndex) Ascend(fn func(types.Record) bool) {
	s.tree.Ascend(btree.ItemIteratorG[types.Record](fn))
}

func (s *SortedIndex) Clear() {
	s.tree.Clear(false)
}

// FirstN returns up to k records of idx in natural iteration order.
func FirstN(idx Index, k int) []types.Record {
	if k <= 0 {
		return []types.Record{}
	}
	out := make([]types.Record, 0, min(k, idx.Len()))
	idx.Ascend(func(r types.Record) bool {
		out = append(out, r)
		return len(out) < k
	})
	return out
}
