package types

import (
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_RecordOrdering checks that (name, id) is a strict total order.
func TestProperty_RecordOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("exactly one of a<b, b<a, a==b holds", prop.ForAll(
		func(n1, n2 string) bool {
			a := Record{ID: uuid.New(), Name: n1}
			b := Record{ID: uuid.New(), Name: n2}
			lt, gt := a.Less(b), b.Less(a)
			if a.Key() == b.Key() {
				return !lt && !gt
			}
			return lt != gt
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.Property("colliding names still sort deterministically by id", prop.ForAll(
		func(name string, count int) bool {
			records := make([]Record, count)
			for i := range records {
				records[i] = Record{ID: uuid.New(), Name: name}
			}
			sort.Slice(records, func(i, j int) bool { return records[i].Less(records[j]) })
			for i := 1; i < len(records); i++ {
				if !records[i-1].Less(records[i]) {
					return false
				}
			}
			return true
		},
		gen.AlphaString(),
		gen.IntRange(2, 50),
	))

	properties.TestingRun(t)
}
