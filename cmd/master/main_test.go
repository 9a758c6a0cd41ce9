package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/PratikDhanave/pdv-lan-sync/internal/catalog"
	"github.com/PratikDhanave/pdv-lan-sync/internal/kv"
)

func TestRefresh_ReloadsCatalogAndChecksDatabase(t *testing.T) {
	ctx := context.Background()
	cat, err := catalog.Open(ctx, kv.NewMemory(), nil, "Festa")
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("products:\n  - {id: a, name: A, price: 2}\n"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	pings := 0
	health := func(context.Context) error {
		pings++
		return errors.New("connection refused")
	}
	refresh(ctx, path, cat, health)
	if got := cat.Snapshot().Products; len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("catalog not reloaded: %+v", got)
	}
	if pings != 1 {
		t.Fatalf("expected one database check got %d", pings)
	}

	if err := os.WriteFile(path, []byte("products: [\n"), 0o644); err != nil {
		t.Fatalf("break seed: %v", err)
	}
	refresh(ctx, path, cat, nil)
	if got := cat.Snapshot().Products; len(got) != 1 {
		t.Fatalf("broken file changed the catalog: %+v", got)
	}
}

func TestBoundPort(t *testing.T) {
	if got := boundPort("127.0.0.1:40123", 8787); got != 40123 {
		t.Fatalf("expected bound port got %d", got)
	}
	if got := boundPort("not-an-addr", 8787); got != 8787 {
		t.Fatalf("expected fallback got %d", got)
	}
}
