package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/PratikDhanave/pdv-lan-sync/internal/kv"
	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
)

const ledgerPrefix = "pdv:saleSummaries"

// KVLedger keeps applied summaries as one persisted list per event, newest
// first. Inserts are sequenced by mu so concurrent /sale requests cannot both
// pass the existence check for the same id.
type KVLedger struct {
	store kv.Store
	key   string

	mu    sync.Mutex
	cache []models.SaleSummary
	index map[string]struct{}
}

// NewKVLedger loads the persisted collection for eventKey.
func NewKVLedger(ctx context.Context, store kv.Store, eventKey string) (*KVLedger, error) {
	l := &KVLedger{
		store: store,
		key:   ledgerPrefix + ":" + eventKey,
		index: make(map[string]struct{}),
	}
	if _, err := kv.LoadJSON(ctx, store, l.key, &l.cache); err != nil {
		return nil, fmt.Errorf("load sale ledger: %w", err)
	}
	for _, s := range l.cache {
		l.index[s.Key()] = struct{}{}
	}
	return l, nil
}

func (l *KVLedger) Insert(ctx context.Context, summary *models.SaleSummary) (bool, error) {
	if summary == nil || summary.Key() == "" {
		return false, errors.New("summary id required")
	}
	key := summary.Key()

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[key]; ok {
		return false, nil
	}

	next := make([]models.SaleSummary, 0, len(l.cache)+1)
	next = append(next, *summary)
	next = append(next, l.cache...)
	if err := kv.SaveJSON(ctx, l.store, l.key, next); err != nil {
		return false, fmt.Errorf("persist sale: %w", err)
	}

	l.cache = next
	l.index[key] = struct{}{}
	return true, nil
}

func (l *KVLedger) Totals(_ context.Context) (models.Totals, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return aggregate(l.cache), nil
}
