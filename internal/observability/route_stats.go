// Package observability tracks HTTP route usage and exposes setbench state
// to Prometheus.
package observability

import (
	"sort"
	"sync"
	"time"
)

// RouteStats tracks request frequency and latency per route pattern.
type RouteStats struct {
	mu     sync.RWMutex
	routes map[string]*RouteStat
	window time.Duration
}

// RouteStat holds statistics for one route pattern.
type RouteStat struct {
	Route     string
	Requests  int64
	Errors    int64
	TotalTime time.Duration
	LastSeen  time.Time
	Statuses  map[int]int64 // status code → count
}

// NewRouteStats creates a tracker. Entries idle for longer than window are
// dropped by Prune.
func NewRouteStats(window time.Duration) *RouteStats {
	return &RouteStats{
		routes: make(map[string]*RouteStat),
		window: window,
	}
}

// Record counts one request. Status codes >= 500 count as errors.
func (r *RouteStats) Record(route string, status int, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stat, exists := r.routes[route]
	if !exists {
		stat = &RouteStat{Route: route, Statuses: make(map[int]int64)}
		r.routes[route] = stat
	}
	stat.Requests++
	if status >= 500 {
		stat.Errors++
	}
	stat.TotalTime += elapsed
	stat.LastSeen = time.Now()
	stat.Statuses[status]++
}

// Top returns deep copies of the n busiest routes, busiest first.
func (r *RouteStats) Top(n int) []RouteStat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || len(r.routes) == 0 {
		return []RouteStat{}
	}

	stats := make([]RouteStat, 0, len(r.routes))
	for _, s := range r.routes {
		cp := *s
		cp.Statuses = make(map[int]int64, len(s.Statuses))
		for code, count := range s.Statuses {
			cp.Statuses[code] = count
		}
		stats = append(stats, cp)
	}

	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Requests != stats[j].Requests {
			return stats[i].Requests > stats[j].Requests
		}
		return stats[i].Route < stats[j].Route
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// All returns every route, busiest first.
func (r *RouteStats) All() []RouteStat {
	r.mu.RLock()
	n := len(r.routes)
	r.mu.RUnlock()
	return r.Top(n)
}

// Prune removes routes not seen within the window.
func (r *RouteStats) Prune() {
	r.mu.Lock()
	defer r.mu.Unlock()

	threshold := time.Now().Add(-r.window)
	for route, stat := range r.routes {
		if stat.LastSeen.Before(threshold) {
			delete(r.routes, route)
		}
	}
}
