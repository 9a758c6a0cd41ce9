// Package master implements the master device's side of the sync protocol:
// it serves its catalog to clients and ingests their sales exactly once.
package master

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/PratikDhanave/pdv-lan-sync/internal/catalog"
	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
	"github.com/PratikDhanave/pdv-lan-sync/internal/store"
)

// Service is the collaborator the master's HTTP handlers delegate to.
type Service struct {
	catalog *catalog.Catalog
	ledger  store.SaleLedger
	ticket  *models.TicketModel
	clock   clockwork.Clock
}

// NewService wires the catalog, ledger and ticket model served to clients.
func NewService(cat *catalog.Catalog, ledger store.SaleLedger, ticket *models.TicketModel, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{catalog: cat, ledger: ledger, ticket: ticket, clock: clock}
}

// OnClientJoin hands a joining device the full catalog and the ticket model.
func (s *Service) OnClientJoin(_ context.Context, _ models.JoinInfo) (models.JoinResult, error) {
	snap := s.catalog.Snapshot()
	return models.JoinResult{Snapshot: &snap, TicketModel: s.ticket}, nil
}

// OnSale applies a sale at most once, keyed by its composite id. A sale seen
// before yields Applied=false and leaves the ledger untouched.
func (s *Service) OnSale(ctx context.Context, in models.SaleInput) (models.SaleResult, error) {
	summary := in.Summary
	if summary == nil {
		summary = models.BuildSummary(in.Sale, in.DeviceID, in.DeviceName, s.clock.Now().UTC())
	} else if summary.ID == "" && summary.SaleID != "" {
		withID := *summary
		deviceID := withID.DeviceID
		if deviceID == "" {
			deviceID = in.DeviceID
		}
		withID.ID = models.SummaryID(deviceID, withID.SaleID)
		summary = &withID
	}
	if summary == nil || summary.Key() == "" {
		return models.SaleResult{}, models.ErrInvalidSale
	}

	applied, err := s.ledger.Insert(ctx, summary)
	if err != nil {
		return models.SaleResult{}, fmt.Errorf("apply sale %s: %w", summary.Key(), err)
	}

	totals, err := s.ledger.Totals(ctx)
	if err != nil {
		return models.SaleResult{}, fmt.Errorf("sale totals: %w", err)
	}

	ev := log.Info()
	if !applied {
		ev = log.Debug()
	}
	ev.Str("sale_id", summary.Key()).
		Str("device_name", summary.DeviceName).
		Float64("total", summary.Total).
		Bool("applied", applied).
		Int("event_sales", totals.Sales).
		Float64("event_total", totals.Total).
		Msg("sale received")

	return models.SaleResult{Applied: applied, Totals: &totals, ServerSaleID: summary.Key()}, nil
}

// OnSyncRequest returns the catalog changes since in.Since.
func (s *Service) OnSyncRequest(_ context.Context, in models.SyncInput) (models.SyncResult, error) {
	return models.SyncResult{Delta: s.catalog.Delta(in.Since), TicketModel: s.ticket}, nil
}

// Totals reports the event's sales so far.
func (s *Service) Totals(ctx context.Context) (models.Totals, error) {
	return s.ledger.Totals(ctx)
}
