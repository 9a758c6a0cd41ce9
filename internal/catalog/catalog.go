// Package catalog owns the master's product snapshot and answers delta
// requests from clients.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/PratikDhanave/pdv-lan-sync/internal/kv"
	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
)

const storagePrefix = "pdv:catalog"

// Catalog is safe for concurrent use. UpdatedAt strictly increases on every
// Replace, so a client holding the previous UpdatedAt always sees the change.
type Catalog struct {
	store kv.Store
	clock clockwork.Clock
	key   string

	mu   sync.RWMutex
	snap models.ProductSnapshot
}

// Open loads the persisted snapshot for an event, or starts an empty one.
func Open(ctx context.Context, store kv.Store, clock clockwork.Clock, eventName string) (*Catalog, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	c := &Catalog{
		store: store,
		clock: clock,
		key:   storagePrefix + ":" + eventName,
	}

	var snap models.ProductSnapshot
	found, err := kv.LoadJSON(ctx, store, c.key, &snap)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if !found {
		snap = models.ProductSnapshot{UpdatedAt: stamp(clock.Now())}
	}
	snap.EventName = eventName
	if snap.Products == nil {
		snap.Products = []models.Product{}
	}
	c.snap = snap
	return c, nil
}

// Snapshot returns a copy of the current catalog.
func (c *Catalog) Snapshot() models.ProductSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyLocked()
}

// Replace swaps the product list, advances UpdatedAt and persists.
func (c *Catalog) Replace(ctx context.Context, products []models.Product) (models.ProductSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next := c.snap
	next.Products = append([]models.Product{}, products...)
	next.UpdatedAt = nextStamp(c.snap.UpdatedAt, c.clock.Now())

	if err := kv.SaveJSON(ctx, c.store, c.key, next); err != nil {
		return models.ProductSnapshot{}, fmt.Errorf("save catalog: %w", err)
	}
	c.snap = next
	return c.copyLocked(), nil
}

// Delta returns the full product list when it changed after since, and only
// UpdatedAt otherwise. An empty or unparseable since gets the full list.
func (c *Catalog) Delta(since string) models.SnapshotDelta {
	c.mu.RLock()
	defer c.mu.RUnlock()

	full := models.SnapshotDelta{
		Products:  append([]models.Product{}, c.snap.Products...),
		UpdatedAt: c.snap.UpdatedAt,
	}
	if since == "" {
		return full
	}
	t, err := time.Parse(time.RFC3339Nano, since)
	if err != nil || c.snap.UpdatedAt.After(t) {
		return full
	}
	return models.SnapshotDelta{Products: nil, UpdatedAt: c.snap.UpdatedAt}
}

func (c *Catalog) copyLocked() models.ProductSnapshot {
	out := c.snap
	out.Products = append([]models.Product{}, c.snap.Products...)
	return out
}

// Timestamps travel as RFC 3339 strings and may be re-read by clients that
// keep millisecond precision only.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func nextStamp(prev, now time.Time) time.Time {
	next := stamp(now)
	if !next.After(prev) {
		next = prev.Add(time.Millisecond)
	}
	return next
}
