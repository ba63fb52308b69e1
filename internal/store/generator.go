package store

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/setbench/setbench/pkg/types"
)

var categories = []string{
	"Electronics", "Clothing", "Food & Beverage", "Home & Garden", "Toys & Games",
	"Sports & Outdoors", "Books", "Automotive", "Health & Beauty", "Office Supplies",
	"Musical Instruments", "Pet Supplies", "Jewelry", "Tools & Hardware", "Baby Products",
}

var adjectives = []string{
	"Premium", "Deluxe", "Ultra", "Pro", "Classic", "Elite", "Smart", "Eco",
	"Compact", "Portable", "Heavy-Duty", "Lightweight", "Advanced", "Basic",
	"Professional", "Essential", "Signature", "Exclusive", "Standard", "Plus",
	"Mini", "Maxi", "Turbo", "Super", "Mega", "Nano", "Micro", "Flex",
	"Rapid", "Silent",
}

var nouns = []string{
	"Widget", "Gadget", "Device", "Module", "Unit", "Component", "System",
	"Kit", "Set", "Pack", "Bundle", "Assembly", "Console", "Panel", "Sensor",
	"Controller", "Adapter", "Monitor", "Processor", "Scanner", "Encoder",
	"Decoder", "Emitter", "Receiver", "Transmitter", "Amplifier", "Filter",
	"Converter", "Regulator", "Indicator",
}

// Generator produces random but plausible records for seeding.
// It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a generator. A zero seed uses the current time.
func NewGenerator(seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Record generates the record with the given serial number.
// Names look like "Turbo Sensor #00042"; 70% carry a description.
func (g *Generator) Record(serial int) types.NewRecord {
	g.mu.Lock()
	defer g.mu.Unlock()

	name := fmt.Sprintf("%s %s #%05d",
		adjectives[g.rng.Intn(len(adjectives))],
		nouns[g.rng.Intn(len(nouns))],
		serial)

	var desc *string
	if g.rng.Float64() < 0.7 {
		d := fmt.Sprintf("High-quality %s for professional use. Serial: %d", name, serial)
		desc = &d
	}

	return types.NewRecord{
		Name:        name,
		Description: desc,
		PriceCents:  99 + g.rng.Int63n(99999-99+1),
		Quantity:    int32(g.rng.Intn(501)),
		Category:    categories[g.rng.Intn(len(categories))],
	}
}

// Batch generates n records with serials starting at first.
func (g *Generator) Batch(first, n int) []types.NewRecord {
	out := make([]types.NewRecord, n)
	for i := range out {
		out[i] = g.Record(first + i)
	}
	return out
}
