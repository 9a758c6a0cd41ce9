package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBuildSummary(t *testing.T) {
	now := time.Date(2026, 6, 24, 19, 30, 0, 0, time.UTC)
	sale := &Sale{
		ID:        "s1",
		EventName: "  Festa  ",
		Items: []SaleItem{
			{Name: "Pastel", Qty: 2, UnitPrice: 8},
			{Name: "Água", Qty: 1, UnitPrice: 3, Subtotal: 3},
		},
	}

	s := BuildSummary(sale, "dev-a", "", now)
	if s.ID != "dev-a:s1" || s.SaleID != "s1" || s.DeviceName != "Cliente" || s.EventName != "Festa" {
		t.Fatalf("unexpected summary %+v", s)
	}
	if s.Total != 19 || s.Items[0].Subtotal != 16 {
		t.Fatalf("expected total 19 from subtotals got %v", s.Total)
	}
	if !s.CreatedAt.Equal(now) || !s.SentAt.Equal(now) {
		t.Fatalf("timestamps not defaulted: %+v", s)
	}

	sale.Total = 18 // discount recorded on the sale wins
	if got := BuildSummary(sale, "dev-a", "Caixa", now).Total; got != 18 {
		t.Fatalf("expected sale total 18 got %v", got)
	}
}

func TestBuildSummary_NoID(t *testing.T) {
	if BuildSummary(nil, "dev-a", "", time.Now()) != nil {
		t.Fatal("nil sale must yield nil summary")
	}
	if BuildSummary(&Sale{ID: "  "}, "dev-a", "", time.Now()) != nil {
		t.Fatal("blank id must yield nil summary")
	}
}

func TestSummaryID_FallbackDevice(t *testing.T) {
	if got := SummaryID("", "s1"); got != "device:s1" {
		t.Fatalf("expected device:s1 got %q", got)
	}
	if got := BuildSummary(&Sale{ID: "s1", DeviceID: "dev-z"}, "", "", time.Now()).ID; got != "dev-z:s1" {
		t.Fatalf("expected device id from sale got %q", got)
	}
}

func TestPendingSaleEntry_ID(t *testing.T) {
	cases := []struct {
		entry PendingSaleEntry
		want  string
	}{
		{PendingSaleEntry{Summary: &SaleSummary{ID: "dev-a:s1"}, Sale: &Sale{ID: "s1"}}, "dev-a:s1"},
		{PendingSaleEntry{Summary: &SaleSummary{}, Sale: &Sale{ID: "s1"}}, "s1"},
		{PendingSaleEntry{}, ""},
	}
	for _, tc := range cases {
		if got := tc.entry.ID(); got != tc.want {
			t.Fatalf("expected %q got %q", tc.want, got)
		}
	}
}

func TestSnapshotDelta_UnchangedEncodesNull(t *testing.T) {
	b, _ := json.Marshal(SnapshotDelta{UpdatedAt: time.Date(2026, 6, 24, 18, 0, 0, 0, time.UTC)})
	if !strings.Contains(string(b), `"products":null`) {
		t.Fatalf("expected products null got %s", b)
	}
}

func TestSaleRequest_SummaryOrAlias(t *testing.T) {
	var r SaleRequest
	if err := json.Unmarshal([]byte(`{"pin":"1","summary":{"id":"dev-a:s1"}}`), &r); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.SummaryOrAlias().Key() != "dev-a:s1" || r.PIN != "1" {
		t.Fatalf("alias not honored: %+v", r)
	}
}

func TestCredential_AcceptsScalars(t *testing.T) {
	cases := map[string]Credential{
		`{"pin":"482913"}`:           "482913",
		`{"pin":482913}`:             "482913",
		`{"pin":null}`:               "",
		`{"pin":{"v":1}}`:            "",
		`{"pin":[4,8]}`:              "",
		`{"eventId":"a","pin":true}`: "true",
	}
	for in, want := range cases {
		var env Envelope
		if err := json.Unmarshal([]byte(in), &env); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if env.PIN != want {
			t.Fatalf("%s: expected %q got %q", in, want, env.PIN)
		}
	}

	b, _ := json.Marshal(Envelope{PIN: "482913", EventID: "3f2a9c1b"})
	if !strings.Contains(string(b), `"pin":"482913"`) {
		t.Fatalf("credential must encode as a string: %s", b)
	}
}
