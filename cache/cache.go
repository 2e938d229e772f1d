// Package cache holds the vocabulary shared by the in-memory caches and the
// admin endpoints: invalidation and introspection stats.
package cache

// Invalidator drops cached entries by exact key or by key substring.
// Invalidate reports whether key was present.
type Invalidator interface {
	Invalidate(key string) bool
	InvalidatePattern(substr string) int
}

// Stats is a point-in-time view of a cache's contents.
type Stats struct {
	Name string   `json:"name,omitempty"`
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// Admin is what the operator endpoints need from a cache.
type Admin interface {
	Invalidator
	Stats() Stats
	Clear()
}
