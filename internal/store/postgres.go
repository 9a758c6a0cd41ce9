package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
)

// schemaSQL is embedded so the master can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresLedger is the durable sale ledger for masters that run next to a
// Postgres instance (a booth laptop rather than a handheld).
type PostgresLedger struct {
	pool     *pgxpool.Pool
	eventKey string
}

// NewPostgresLedger creates a connection pool and fails fast if DB is unreachable.
func NewPostgresLedger(dbURL, eventKey string) (*PostgresLedger, error) {
	if eventKey == "" {
		return nil, errors.New("eventKey required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresLedger{pool: pool, eventKey: eventKey}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresLedger) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping validates DB connectivity.
func (p *PostgresLedger) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresLedger) Close() {
	p.pool.Close()
}

// Insert persists a summary and returns inserted=false when it is a duplicate.
//
// Duplicate detection is enforced by the primary key on (event_key, id), so
// concurrent retries of the same sale race safely inside the database.
func (p *PostgresLedger) Insert(ctx context.Context, summary *models.SaleSummary) (bool, error) {
	if summary == nil || summary.Key() == "" {
		return false, errors.New("summary id required")
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return false, err
	}

	// RETURNING 1 only when inserted; duplicates return no rows.
	var one int
	err = p.pool.QueryRow(ctx, `
		INSERT INTO sale_summaries(event_key, id, sale_id, device_id, device_name, total, payload, created_at, sent_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (event_key, id) DO NOTHING
		RETURNING 1
	`, p.eventKey, summary.Key(), summary.SaleID, summary.DeviceID, summary.DeviceName,
		summary.Total, payload, summary.CreatedAt, summary.SentAt).Scan(&one)

	if err == nil {
		return true, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return false, err
}

// Totals aggregates the event's sales per device.
func (p *PostgresLedger) Totals(ctx context.Context) (models.Totals, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT device_id, max(device_name), COUNT(*), COALESCE(SUM(total), 0)::float8
		FROM sale_summaries
		WHERE event_key=$1
		GROUP BY device_id
	`, p.eventKey)
	if err != nil {
		return models.Totals{}, err
	}
	defer rows.Close()

	var t models.Totals
	for rows.Next() {
		var d models.DeviceTotal
		if err := rows.Scan(&d.DeviceID, &d.DeviceName, &d.Sales, &d.Total); err != nil {
			return models.Totals{}, err
		}
		t.Sales += d.Sales
		t.Total += d.Total
		t.ByDevice = append(t.ByDevice, d)
	}
	if err := rows.Err(); err != nil {
		return models.Totals{}, err
	}

	sort.Slice(t.ByDevice, func(i, j int) bool {
		return t.ByDevice[i].DeviceID < t.ByDevice[j].DeviceID
	})
	return t, nil
}
