// Package outbox is the client's durable queue of sales the master has not
// acknowledged yet.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/PratikDhanave/pdv-lan-sync/internal/kv"
	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
)

// StorageKey is where the queue is persisted.
const StorageKey = "pdv:pendingSales"

// ErrNoSaleID is returned for entries that carry neither a summary id nor a sale id.
var ErrNoSaleID = errors.New("outbox: entry has no sale id")

// Queue persists pending sales as one JSON list. Every mutation is a
// read-modify-write of that list, sequenced by mu, so a flush tick and a new
// sale never lose each other's update.
type Queue struct {
	store kv.Store
	clock clockwork.Clock
	mu    sync.Mutex
}

// New returns a queue persisted in store. A nil clock means the real clock.
func New(store kv.Store, clock clockwork.Clock) *Queue {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Queue{store: store, clock: clock}
}

// Enqueue appends an entry unless one with the same id is already queued.
// It reports whether the entry was added.
func (q *Queue) Enqueue(ctx context.Context, entry models.PendingSaleEntry) (bool, error) {
	id := entry.ID()
	if id == "" {
		return false, ErrNoSaleID
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	list, err := q.read(ctx)
	if err != nil {
		return false, err
	}
	for _, it := range list {
		if it.ID() == id {
			return false, nil
		}
	}

	if entry.QueuedAt.IsZero() {
		entry.QueuedAt = q.clock.Now().UTC()
	}
	list = append(list, entry)
	return true, q.write(ctx, list)
}

// List returns the queue oldest first.
func (q *Queue) List(ctx context.Context) ([]models.PendingSaleEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.read(ctx)
}

// Len returns the number of queued entries.
func (q *Queue) Len(ctx context.Context) (int, error) {
	list, err := q.List(ctx)
	return len(list), err
}

// RemoveByID drops every entry matching id. The id may be the composite
// summary id, the bare sale id, or the sale id part of a composite id.
// It returns how many entries were removed.
func (q *Queue) RemoveByID(ctx context.Context, id string) (int, error) {
	target := strings.TrimSpace(id)
	if target == "" {
		return 0, nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	list, err := q.read(ctx)
	if err != nil {
		return 0, err
	}
	kept := list[:0]
	for _, it := range list {
		if !matches(it, target) {
			kept = append(kept, it)
		}
	}
	removed := len(list) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	return removed, q.write(ctx, kept)
}

func matches(e models.PendingSaleEntry, target string) bool {
	var summaryID, saleID string
	if e.Summary != nil {
		summaryID = e.Summary.ID
		saleID = e.Summary.SaleID
	}
	if saleID == "" && e.Sale != nil {
		saleID = e.Sale.ID
	}
	if summaryID != "" && summaryID == target {
		return true
	}
	if saleID != "" && saleID == target {
		return true
	}
	return summaryID != "" && strings.HasSuffix(summaryID, ":"+target)
}

func (q *Queue) read(ctx context.Context) ([]models.PendingSaleEntry, error) {
	var list []models.PendingSaleEntry
	if _, err := kv.LoadJSON(ctx, q.store, StorageKey, &list); err != nil {
		return nil, fmt.Errorf("read pending sales: %w", err)
	}
	return list, nil
}

func (q *Queue) write(ctx context.Context, list []models.PendingSaleEntry) error {
	if list == nil {
		list = []models.PendingSaleEntry{}
	}
	if err := kv.SaveJSON(ctx, q.store, StorageKey, list); err != nil {
		return fmt.Errorf("write pending sales: %w", err)
	}
	return nil
}
