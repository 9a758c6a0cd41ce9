package store

import (
	"context"
	"sort"

	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
)

// SaleLedger is the master's collection of applied sales for one event.
//
// Insert must be idempotent on summary.Key(): a second insert of the same key
// returns inserted=false and leaves the ledger untouched. Retries from clients
// are therefore always safe.
type SaleLedger interface {
	Insert(ctx context.Context, summary *models.SaleSummary) (bool, error)
	Totals(ctx context.Context) (models.Totals, error)
}

// aggregate folds summaries into totals with a per-device breakdown sorted by
// device id so reports are stable.
func aggregate(summaries []models.SaleSummary) models.Totals {
	var t models.Totals
	byDevice := make(map[string]*models.DeviceTotal)
	for _, s := range summaries {
		t.Sales++
		t.Total += s.Total

		d, ok := byDevice[s.DeviceID]
		if !ok {
			d = &models.DeviceTotal{DeviceID: s.DeviceID, DeviceName: s.DeviceName}
			byDevice[s.DeviceID] = d
		}
		d.Sales++
		d.Total += s.Total
	}

	for _, d := range byDevice {
		t.ByDevice = append(t.ByDevice, *d)
	}
	sort.Slice(t.ByDevice, func(i, j int) bool {
		return t.ByDevice[i].DeviceID < t.ByDevice[j].DeviceID
	})
	return t
}
