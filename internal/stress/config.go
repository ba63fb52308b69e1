package stress

import (
	"fmt"

	"github.com/setbench/setbench/internal/errors"
)

// Limits bounds what a single run may request.
type Limits struct {
	MaxConcurrency int `json:"max_concurrency" yaml:"max_concurrency"`
	MaxOpsPerUser  int `json:"max_ops_per_user" yaml:"max_ops_per_user"`
	MaxSeed        int `json:"max_seed" yaml:"max_seed"`
}

// DefaultLimits are the stock run limits.
func DefaultLimits() Limits {
	return Limits{MaxConcurrency: 200, MaxOpsPerUser: 1000, MaxSeed: 10000}
}

// Config describes one stress run.
type Config struct {
	// Concurrency is the number of virtual users
	Concurrency int `json:"concurrency"`

	// OpsPerUser is the number of operations each virtual user performs
	OpsPerUser int `json:"ops_per_user"`

	// Seed is the number of records to bulk-load before the run (0 = none)
	Seed int `json:"seed"`
}

// Validate rejects configurations outside limits. It runs before any work.
func (c Config) Validate(l Limits) error {
	bad := func(format string, args ...any) error {
		return errors.NewConfigurationError(fmt.Sprintf(format, args...)).
			WithDetails(map[string]interface{}{
				"concurrency":      c.Concurrency,
				"ops_per_user":     c.OpsPerUser,
				"seed":             c.Seed,
				"max_concurrency":  l.MaxConcurrency,
				"max_ops_per_user": l.MaxOpsPerUser,
				"max_seed":         l.MaxSeed,
			})
	}
	switch {
	case c.Concurrency <= 0:
		return bad("concurrency must be positive, got %d", c.Concurrency)
	case c.Concurrency > l.MaxConcurrency:
		return bad("concurrency %d exceeds maximum %d", c.Concurrency, l.MaxConcurrency)
	case c.OpsPerUser <= 0:
		return bad("ops_per_user must be positive, got %d", c.OpsPerUser)
	case c.OpsPerUser > l.MaxOpsPerUser:
		return bad("ops_per_user %d exceeds maximum %d", c.OpsPerUser, l.MaxOpsPerUser)
	case c.Seed < 0:
		return bad("seed must not be negative, got %d", c.Seed)
	case c.Seed > l.MaxSeed:
		return bad("seed %d exceeds maximum %d", c.Seed, l.MaxSeed)
	}
	return nil
}
