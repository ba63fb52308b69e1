// Package stress drives concurrent virtual users against the inventory and
// reports latency, throughput and index time.
package stress

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/setbench/setbench/internal/inventory"
	"github.com/setbench/setbench/internal/logging"
	"github.com/setbench/setbench/internal/metrics"
	"github.com/setbench/setbench/internal/store"
	"github.com/setbench/setbench/pkg/types"
)

// OpKind is a virtual-user operation.
type OpKind int

const (
	OpRead OpKind = iota
	OpCreate
	OpUpdate
	OpDelete
)

var opKinds = []OpKind{OpRead, OpCreate, OpUpdate, OpDelete}

func (k OpKind) String() string {
	switch k {
	case OpRead:
		return "read"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// LabelEndToEnd is the ledger index label for whole-operation latencies.
const LabelEndToEnd = "end_to_end"

// draw maps a roll in [0,100) onto the 50/25/15/10 read/create/update/delete mix.
func draw(roll int) OpKind {
	switch {
	case roll < 50:
		return OpRead
	case roll < 75:
		return OpCreate
	case roll < 90:
		return OpUpdate
	default:
		return OpDelete
	}
}

// Target is the system under load.
type Target interface {
	Create(ctx context.Context, in types.NewRecord) (types.Record, inventory.Timing, error)
	Get(ctx context.Context, id uuid.UUID) (inventory.Detail, error)
	Probe(id uuid.UUID) ([]inventory.Lookup, time.Duration)
	Update(ctx context.Context, id uuid.UUID, patch types.RecordPatch) (types.Record, inventory.Timing, error)
	Delete(ctx context.Context, id uuid.UUID) (inventory.Timing, error)
	ListAll(ctx context.Context) ([]types.Record, error)
	Count(ctx context.Context) (int, error)
	Seed(ctx context.Context, n int) (inventory.SeedResult, error)
}

// Harness runs stress tests against a Target.
type Harness struct {
	target Target
	ledger *metrics.Ledger
	limits Limits
	logger *slog.Logger

	// RandSeed fixes the per-user random sources when non-zero.
	RandSeed int64
}

// NewHarness creates a harness.
func NewHarness(target Target, ledger *metrics.Ledger, limits Limits, logger *slog.Logger) *Harness {
	return &Harness{
		target: target,
		ledger: ledger,
		limits: limits,
		logger: logging.OrDefault(logger),
	}
}

// tally is the shared, write-serialized counter set.
type tally struct {
	mu          sync.Mutex
	ops         [4]int
	errors      [4]int
	indexInsert time.Duration
	indexLookup time.Duration
	indexRemove time.Duration
}

func (t *tally) add(kind OpKind, failed bool, index time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ops[kind]++
	if failed {
		t.errors[kind]++
	}
	switch kind {
	case OpCreate:
		t.indexInsert += index
	case OpRead:
		t.indexLookup += index
	case OpUpdate, OpDelete:
		t.indexRemove += index
	}
}

type opLatency struct {
	kind OpKind
	ns   int64
}

// user is one virtual user's private state.
type user struct {
	id        int
	rng       *rand.Rand
	gen       *store.Generator
	pool      []uuid.UUID
	latencies []opLatency
	samples   []metrics.Sample
}

// Run validates cfg, optionally seeds, then runs cfg.Concurrency virtual
// users to completion and aggregates their results. A failing operation is
// counted and never stops its user or the run.
func (h *Harness) Run(ctx context.Context, cfg Config) (*Report, error) {
	if err := cfg.Validate(h.limits); err != nil {
		return nil, err
	}

	seeded := 0
	if cfg.Seed > 0 {
		res, err := h.target.Seed(ctx, cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("failed to seed before stress run: %w", err)
		}
		seeded = res.Inserted
	}

	existing, err := h.target.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot records: %w", err)
	}
	readable := make([]uuid.UUID, len(existing))
	for i, r := range existing {
		readable[i] = r.ID
	}

	baseSeed := h.RandSeed
	if baseSeed == 0 {
		baseSeed = time.Now().UnixNano()
	}

	users := make([]*user, cfg.Concurrency)
	for i := range users {
		users[i] = &user{
			id:  i,
			rng: rand.New(rand.NewSource(baseSeed + int64(i))),
			gen: store.NewGenerator(baseSeed + int64(i) + 1),
		}
	}

	h.logger.Info("stress run starting",
		"concurrency", cfg.Concurrency, "ops_per_user", cfg.OpsPerUser, "records", len(existing))

	t := &tally{}
	start := time.Now()
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u *user) {
			defer wg.Done()
			for i := 0; i < cfg.OpsPerUser; i++ {
				h.step(ctx, u, i, readable, t)
			}
		}(u)
	}
	wg.Wait()
	elapsed := time.Since(start)

	after, err := h.target.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count records after stress run: %w", err)
	}

	for _, u := range users {
		h.ledger.RecordBatch(u.samples)
	}

	report := buildReport(cfg, users, t, elapsed)
	report.Seeded = seeded
	report.RecordsBefore = len(existing)
	report.RecordsAfter = after

	h.logger.Info("stress run complete",
		"run_id", report.RunID,
		"total_ops", report.TotalOps,
		"errors", report.Errors,
		"ops_per_second", fmt.Sprintf("%.1f", report.OpsPerSecond),
		"p95_ms", fmt.Sprintf("%.3f", report.Latency.P95Ms),
		"elapsed", elapsed)
	return report, nil
}

// step performs one drawn operation for u. Update and delete only ever touch
// ids from u's own pool and fall back to a read when the pool is empty.
func (h *Harness) step(ctx context.Context, u *user, i int, readable []uuid.UUID, t *tally) {
	kind := draw(u.rng.Intn(100))
	if (kind == OpUpdate || kind == OpDelete) && len(u.pool) == 0 {
		kind = OpRead
	}

	var (
		index time.Duration
		err   error
	)
	start := time.Now()
	switch kind {
	case OpRead:
		index, err = h.read(ctx, u, readable)
	case OpCreate:
		var r types.Record
		var timing inventory.Timing
		r, timing, err = h.target.Create(ctx, u.gen.Record(u.id*h.limits.MaxOpsPerUser+i+1))
		index = timing.Index
		if err == nil {
			u.pool = append(u.pool, r.ID)
		}
	case OpUpdate:
		var timing inventory.Timing
		_, timing, err = h.target.Update(ctx, u.pool[u.rng.Intn(len(u.pool))], u.patch(i))
		index = timing.Index
	case OpDelete:
		pos := u.rng.Intn(len(u.pool))
		var timing inventory.Timing
		timing, err = h.target.Delete(ctx, u.pool[pos])
		index = timing.Index
		// The id is gone either way: deleted now, or already missing.
		u.pool = append(u.pool[:pos], u.pool[pos+1:]...)
	}
	latency := time.Since(start)

	if err != nil {
		h.logger.Debug("stress op failed", "user", u.id, "op", kind, "error", err)
	}
	t.add(kind, err != nil, index)
	u.latencies = append(u.latencies, opLatency{kind: kind, ns: latency.Nanoseconds()})
	u.samples = append(u.samples, metrics.Sample{
		Timestamp:  start,
		Operation:  "stress_" + kind.String(),
		Index:      LabelEndToEnd,
		DurationNs: latency.Nanoseconds(),
		ItemCount:  1,
		Success:    err == nil,
	})
}

// read fetches a record known before the run or created by u. With nothing
// to read it runs an index-only probe for an absent id.
func (h *Harness) read(ctx context.Context, u *user, readable []uuid.UUID) (time.Duration, error) {
	n := len(readable) + len(u.pool)
	if n == 0 {
		_, d := h.target.Probe(uuid.New())
		return d, nil
	}
	pick := u.rng.Intn(n)
	var id uuid.UUID
	if pick < len(readable) {
		id = readable[pick]
	} else {
		id = u.pool[pick-len(readable)]
	}
	d, err := h.target.Get(ctx, id)
	return d.Timing.Index, err
}

func (u *user) patch(i int) types.RecordPatch {
	desc := fmt.Sprintf("Updated by stress run (user %d, op %d)", u.id, i)
	price := int64(100 + u.rng.Intn(9900))
	qty := int32(u.rng.Intn(200))
	p := types.RecordPatch{Description: &desc, PriceCents: &price, Quantity: &qty}
	if u.rng.Intn(2) == 0 {
		name := fmt.Sprintf("Restocked u%03d-%04d", u.id, i)
		p.Name = &name
	}
	return p
}
