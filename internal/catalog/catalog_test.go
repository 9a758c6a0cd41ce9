package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/PratikDhanave/pdv-lan-sync/internal/kv"
	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
)

var start = time.Date(2026, 6, 24, 18, 0, 0, 0, time.UTC)

func products(names ...string) []models.Product {
	out := make([]models.Product, 0, len(names))
	for _, n := range names {
		out = append(out, models.Product{ID: "prod-" + n, Name: n, Price: 5})
	}
	return out
}

func TestOpen_EmptyCatalog(t *testing.T) {
	c, err := Open(context.Background(), kv.NewMemory(), clockwork.NewFakeClockAt(start), "Festa")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	snap := c.Snapshot()
	if snap.EventName != "Festa" || snap.Products == nil || len(snap.Products) != 0 {
		t.Fatalf("unexpected empty snapshot %+v", snap)
	}
	if !snap.UpdatedAt.Equal(start) {
		t.Fatalf("expected UpdatedAt %v got %v", start, snap.UpdatedAt)
	}
}

func TestReplace_UpdatedAtStrictlyIncreases(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(start)
	c, _ := Open(ctx, kv.NewMemory(), clock, "Festa")

	prev := c.Snapshot().UpdatedAt
	// The clock does not move: stamps must still advance.
	for i := 0; i < 3; i++ {
		snap, err := c.Replace(ctx, products("agua"))
		if err != nil {
			t.Fatalf("replace: %v", err)
		}
		if !snap.UpdatedAt.After(prev) {
			t.Fatalf("UpdatedAt did not advance: %v then %v", prev, snap.UpdatedAt)
		}
		prev = snap.UpdatedAt
	}

	clock.Advance(time.Hour)
	snap, _ := c.Replace(ctx, products("agua"))
	if !snap.UpdatedAt.Equal(start.Add(time.Hour)) {
		t.Fatalf("expected clock time got %v", snap.UpdatedAt)
	}
}

func TestDelta(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(start)
	c, _ := Open(ctx, kv.NewMemory(), clock, "Festa")
	clock.Advance(time.Minute)
	snap, _ := c.Replace(ctx, products("agua", "pastel"))

	current := snap.UpdatedAt.Format(time.RFC3339Nano)
	older := start.Format(time.RFC3339Nano)

	cases := []struct {
		name     string
		since    string
		wantFull bool
	}{
		{"no since", "", true},
		{"older since", older, true},
		{"unparseable since", "yesterday", true},
		{"current since", current, false},
		{"future since", snap.UpdatedAt.Add(time.Hour).Format(time.RFC3339Nano), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := c.Delta(tc.since)
			if !d.UpdatedAt.Equal(snap.UpdatedAt) {
				t.Fatalf("expected UpdatedAt %v got %v", snap.UpdatedAt, d.UpdatedAt)
			}
			if tc.wantFull && len(d.Products) != 2 {
				t.Fatalf("expected full list got %v", d.Products)
			}
			if !tc.wantFull && d.Products != nil {
				t.Fatalf("expected nil products got %v", d.Products)
			}
		})
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	ctx := context.Background()
	c, _ := Open(ctx, kv.NewMemory(), nil, "Festa")
	_, _ = c.Replace(ctx, products("agua"))

	snap := c.Snapshot()
	snap.Products[0].Name = "changed"

	if c.Snapshot().Products[0].Name != "agua" {
		t.Fatal("caller mutated the catalog")
	}
}

func TestOpen_RestoresPersistedSnapshot(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemory()
	clock := clockwork.NewFakeClockAt(start)

	c1, _ := Open(ctx, store, clock, "Festa")
	saved, _ := c1.Replace(ctx, products("agua"))

	c2, err := Open(ctx, store, clock, "Festa")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	snap := c2.Snapshot()
	if len(snap.Products) != 1 || !snap.UpdatedAt.Equal(saved.UpdatedAt) {
		t.Fatalf("expected restored snapshot got %+v", snap)
	}

	// Another event has its own catalog.
	c3, _ := Open(ctx, store, clock, "Quermesse")
	if len(c3.Snapshot().Products) != 0 {
		t.Fatal("catalogs leaked across events")
	}
}

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	return path
}

func TestLoadSeed(t *testing.T) {
	path := writeSeed(t, `
ticket:
  org_name: Paróquia São José
  footer: Volte sempre
products:
  - id: prod-agua
    name: Água 500ml
    price: 3
    category: Bebidas
  - id: prod-pastel
    name: Pastel
    price: 8.5
`)
	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatalf("LoadSeed: %v", err)
	}
	if seed.Ticket.OrgName != "Paróquia São José" || seed.Ticket.Footer != "Volte sempre" {
		t.Fatalf("unexpected ticket %+v", seed.Ticket)
	}
	if len(seed.Products) != 2 || seed.Products[1].Price != 8.5 || seed.Products[0].Category != "Bebidas" {
		t.Fatalf("unexpected products %+v", seed.Products)
	}
}

func TestLoadSeed_Rejects(t *testing.T) {
	cases := map[string]string{
		"duplicate id": "products:\n  - {id: a, name: A}\n  - {id: a, name: B}\n",
		"missing name": "products:\n  - {id: a}\n",
		"bad yaml":     "products: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := LoadSeed(writeSeed(t, body)); err == nil {
				t.Fatal("expected error")
			}
		})
	}

	if _, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestReloadSeed(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(start)
	c, err := Open(ctx, kv.NewMemory(), clock, "Festa")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	path := writeSeed(t, "products:\n  - {id: a, name: A, price: 2}\n")
	first, err := c.ReloadSeed(ctx, path)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}

	if err := os.WriteFile(path, []byte("products:\n  - {id: a, name: A, price: 2}\n  - {id: b, name: B, price: 4}\n"), 0o644); err != nil {
		t.Fatalf("rewrite seed: %v", err)
	}
	clock.Advance(time.Second)
	second, err := c.ReloadSeed(ctx, path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(second.Products) != 2 || !second.UpdatedAt.After(first.UpdatedAt) {
		t.Fatalf("reload did not publish a newer snapshot: %+v then %+v", first, second)
	}

	if err := os.WriteFile(path, []byte("products: [\n"), 0o644); err != nil {
		t.Fatalf("break seed: %v", err)
	}
	if _, err := c.ReloadSeed(ctx, path); err == nil {
		t.Fatal("expected error for a broken file")
	}
	if got := c.Snapshot(); len(got.Products) != 2 || !got.UpdatedAt.Equal(second.UpdatedAt) {
		t.Fatalf("broken file changed the catalog: %+v", got)
	}
}
