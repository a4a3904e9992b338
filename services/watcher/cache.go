package watcher

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// AvailabilityCache holds the latest OfficeAvailability per office
// name. It is bounded by the known office count, so in practice
// nothing is ever evicted; the bound just keeps a misbehaving portal
// from growing the map without limit. Last write wins per key, with no
// cross-key snapshot consistency.
type AvailabilityCache struct {
	entries *lru.Cache[string, OfficeAvailability]
}

func NewAvailabilityCache() *AvailabilityCache {
	entries, err := lru.New[string, OfficeAvailability](officeCount)
	if err != nil {
		// lru.New only fails on a non-positive size
		panic(err)
	}
	return &AvailabilityCache{entries: entries}
}

func (c *AvailabilityCache) Upsert(record OfficeAvailability) {
	c.entries.Add(record.OfficeName, record)
}

// Snapshot returns every cached record. Order is not meaningful.
func (c *AvailabilityCache) Snapshot() []OfficeAvailability {
	return c.entries.Values()
}

func (c *AvailabilityCache) Len() int {
	return c.entries.Len()
}
