package indexset

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/setbench/setbench/pkg/types"
)

func TestIndex_NativeDedupKeys(t *testing.T) {
	id := uuid.New()
	v1 := types.Record{ID: id, Name: "one"}
	v2 := types.Record{ID: id, Name: "two"}

	for _, kind := range []Kind{KindHash, KindOrdered} {
		idx := New(kind)
		idx.Insert(v1)
		idx.Insert(v2)
		assert.Equal(t, 1, idx.Len(), "%s dedups by id", kind)
	}

	sorted := New(KindSorted)
	sorted.Insert(v1)
	sorted.Insert(v2)
	assert.Equal(t, 2, sorted.Len(), "sorted dedups by (name, id)")
}

func TestIndex_RemoveAndClear(t *testing.T) {
	for _, kind := range Kinds {
		idx := New(kind)
		a := types.Record{ID: uuid.New(), Name: "a"}
		idx.Insert(a)
		assert.True(t, idx.Contains(a))
		assert.True(t, idx.Remove(a))
		assert.False(t, idx.Remove(a))
		idx.Insert(a)
		idx.Clear()
		assert.Equal(t, 0, idx.Len())
		assert.Equal(t, kind, idx.Kind())
	}
}

func TestFirstN(t *testing.T) {
	idx := New(KindOrdered)
	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		r := types.Record{ID: uuid.New(), Name: "x"}
		ids = append(ids, r.ID)
		idx.Insert(r)
	}

	got := FirstN(idx, 3)
	assert.Len(t, got, 3)
	for i, r := range got {
		assert.Equal(t, ids[i], r.ID)
	}
	assert.Len(t, FirstN(idx, 50), 5)
	assert.Empty(t, FirstN(idx, 0))
}

func TestKind_TextRoundTrip(t *testing.T) {
	b, err := KindSorted.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "sorted", string(b))

	var k Kind
	assert.NoError(t, k.UnmarshalText([]byte("ordered")))
	assert.Equal(t, KindOrdered, k)
	assert.False(t, KindHash.String() == "")
}
