package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/PratikDhanave/pdv-lan-sync/internal/identity"
	"github.com/PratikDhanave/pdv-lan-sync/internal/kv"
	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
	"github.com/PratikDhanave/pdv-lan-sync/internal/outbox"
)

const (
	connKey    = "pdv:conexao"
	catalogKey = "pdv:produtos"
	sinceKey   = "pdv:produtosSyncAt"
	ticketKey  = "pdv:ticketModel"

	DefaultSyncInterval  = 8 * time.Second
	DefaultFlushInterval = 5 * time.Second
)

// ErrNotConnected is returned by one-shot calls made before a successful join.
var ErrNotConnected = errors.New("not connected to a master")

// Config tunes an Agent.
type Config struct {
	DeviceID      string
	DeviceName    string
	SyncInterval  time.Duration
	FlushInterval time.Duration
	Timeout       time.Duration
	Clock         clockwork.Clock
	// OnCatalog, when set, is called after the local catalog is replaced.
	OnCatalog func(models.ProductSnapshot)
}

// Status is a best-effort view for the UI.
type Status struct {
	Connected    bool
	AuthError    string
	BackoffUntil time.Time
	Pending      int
}

// Agent keeps one client device in sync with its master: a one-shot join, a
// catalog poll loop and an outbox flush loop. Loop errors are logged and
// retried on the next tick, never returned to the host application.
type Agent struct {
	cfg    Config
	client *Client
	store  kv.Store
	queue  *outbox.Queue
	clock  clockwork.Clock

	mu           sync.Mutex
	conn         *Conn
	authErr      error
	backoffUntil time.Time
	running      bool
	cancel       context.CancelFunc

	gen atomic.Uint64
	wg  sync.WaitGroup
}

// NewAgent restores a previously joined connection from store, so a restarted
// app resumes flushing without asking the user again.
func NewAgent(ctx context.Context, store kv.Store, queue *outbox.Queue, cfg Config) *Agent {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = identity.DeviceID(ctx, store)
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = "Cliente"
	}

	a := &Agent{
		cfg:    cfg,
		client: New(cfg.DeviceID, cfg.DeviceName, cfg.Timeout),
		store:  store,
		queue:  queue,
		clock:  cfg.Clock,
	}

	var conn Conn
	found, err := kv.LoadJSON(ctx, store, connKey, &conn)
	if err != nil {
		log.Warn().Err(err).Msg("could not restore master connection")
	} else if found && conn.Host != "" {
		a.conn = &conn
	}
	return a
}

// DeviceID is the id this agent reports sales under.
func (a *Agent) DeviceID() string { return a.cfg.DeviceID }

// Join validates the parameters, performs the handshake and, on success,
// caches the connection and applies the returned catalog and ticket model.
// On failure nothing local changes and the server's message is returned.
func (a *Agent) Join(ctx context.Context, p JoinParams) (*models.JoinResponse, error) {
	conn, err := p.Conn()
	if err != nil {
		return nil, err
	}

	resp, err := a.client.Join(ctx, conn)
	if err != nil {
		return nil, err
	}

	if resp.Snapshot != nil {
		if err := a.applyCatalog(ctx, *resp.Snapshot); err != nil {
			return nil, err
		}
	}
	if resp.TicketModel != nil {
		if err := kv.SaveJSON(ctx, a.store, ticketKey, resp.TicketModel); err != nil {
			return nil, fmt.Errorf("save ticket model: %w", err)
		}
	}
	// The connection goes last so a failed join is never resumed after a restart.
	if err := kv.SaveJSON(ctx, a.store, connKey, conn); err != nil {
		return nil, fmt.Errorf("save connection: %w", err)
	}

	a.mu.Lock()
	a.conn = &conn
	a.authErr = nil
	a.backoffUntil = time.Time{}
	a.mu.Unlock()

	log.Info().
		Str("host", conn.Host).
		Int("port", conn.Port).
		Str("event_id", conn.EventID).
		Str("client_id", resp.ClientID).
		Int("clients_connected", resp.ClientsConnected).
		Msg("joined master")
	return resp, nil
}

// JoinWithPayload joins using a scanned QR payload.
func (a *Agent) JoinWithPayload(ctx context.Context, payload string) (*models.JoinResponse, error) {
	p, err := identity.DecodeJoinPayload(payload)
	if err != nil {
		return nil, &ValidationError{Field: "payload", Message: err.Error()}
	}
	return a.Join(ctx, JoinParams{
		Host:    p.Host,
		Port:    strconv.Itoa(p.Port),
		EventID: p.ID,
		PIN:     p.PIN,
	})
}

// Leave stops the loops and forgets the master. Queued sales stay queued and
// are sent after the next join.
func (a *Agent) Leave(ctx context.Context) error {
	a.Stop()

	a.mu.Lock()
	a.conn = nil
	a.authErr = nil
	a.backoffUntil = time.Time{}
	a.mu.Unlock()

	return kv.SaveJSON(ctx, a.store, connKey, Conn{})
}

// Catalog returns the locally cached catalog.
func (a *Agent) Catalog(ctx context.Context) (models.ProductSnapshot, bool, error) {
	var snap models.ProductSnapshot
	found, err := kv.LoadJSON(ctx, a.store, catalogKey, &snap)
	return snap, found, err
}

// TicketModel returns the ticket model received from the master, if any.
func (a *Agent) TicketModel(ctx context.Context) (*models.TicketModel, error) {
	var tm models.TicketModel
	found, err := kv.LoadJSON(ctx, a.store, ticketKey, &tm)
	if err != nil || !found {
		return nil, err
	}
	return &tm, nil
}

// Status reports connection state and queue depth.
func (a *Agent) Status(ctx context.Context) Status {
	a.mu.Lock()
	st := Status{Connected: a.conn != nil, BackoffUntil: a.backoffUntil}
	if a.authErr != nil {
		st.AuthError = a.authErr.Error()
	}
	a.mu.Unlock()

	if n, err := a.queue.Len(ctx); err == nil {
		st.Pending = n
	}
	return st
}

// SubmitSale records a completed sale: it assigns the sale id once, queues the
// sale durably and then tries to push it right away. A failed push is not an
// error; the flush loop will deliver it.
func (a *Agent) SubmitSale(ctx context.Context, sale models.Sale) (*models.SaleSummary, error) {
	now := a.clock.Now().UTC()
	if sale.ID == "" {
		sale.ID = uuid.NewString()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = now
	}
	if sale.DeviceID == "" {
		sale.DeviceID = a.cfg.DeviceID
	}
	if sale.DeviceName == "" {
		sale.DeviceName = a.cfg.DeviceName
	}

	summary := models.BuildSummary(&sale, a.cfg.DeviceID, a.cfg.DeviceName, now)
	entry := models.PendingSaleEntry{Summary: summary, Sale: &sale, QueuedAt: now}
	if _, err := a.queue.Enqueue(ctx, entry); err != nil {
		return nil, fmt.Errorf("queue sale: %w", err)
	}

	conn, ok := a.activeConn()
	if !ok {
		return summary, nil
	}
	if err := a.push(ctx, conn, entry); err != nil {
		log.Debug().Err(err).Str("sale_id", summary.ID).Msg("sale queued for later delivery")
	}
	return summary, nil
}

// SyncOnce runs one catalog poll. Products are replaced only when the master
// reports a change; otherwise only the cached since advances.
func (a *Agent) SyncOnce(ctx context.Context) error {
	conn, ok := a.activeConn()
	if !ok {
		return ErrNotConnected
	}

	var since string
	if _, err := kv.LoadJSON(ctx, a.store, sinceKey, &since); err != nil {
		return err
	}

	resp, err := a.client.Sync(ctx, conn, since)
	if err != nil {
		a.noteFailure(err)
		return err
	}

	delta := resp.SnapshotDelta
	if delta.Products != nil {
		cached, _, err := a.Catalog(ctx)
		if err != nil {
			return err
		}
		snap := models.ProductSnapshot{
			EventName: cached.EventName,
			Products:  delta.Products,
			UpdatedAt: delta.UpdatedAt,
		}
		if snap.UpdatedAt.IsZero() {
			snap.UpdatedAt = a.clock.Now().UTC()
		}
		if err := a.applyCatalog(ctx, snap); err != nil {
			return err
		}
	} else if !delta.UpdatedAt.IsZero() {
		if err := a.saveSince(ctx, delta.UpdatedAt); err != nil {
			return err
		}
	}

	if resp.TicketModel != nil {
		if err := kv.SaveJSON(ctx, a.store, ticketKey, resp.TicketModel); err != nil {
			return fmt.Errorf("save ticket model: %w", err)
		}
	}
	return nil
}

// FlushOnce sends queued sales oldest first and removes each one the master
// acknowledges. It stops at the first failure so the next tick retries from
// the front. It returns how many sales were delivered.
func (a *Agent) FlushOnce(ctx context.Context) (int, error) {
	return a.flush(ctx, a.gen.Load())
}

func (a *Agent) flush(ctx context.Context, gen uint64) (int, error) {
	conn, ok := a.activeConn()
	if !ok {
		return 0, ErrNotConnected
	}

	pending, err := a.queue.List(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, entry := range pending {
		if ctx.Err() != nil || a.gen.Load() != gen {
			return sent, ctx.Err()
		}
		if err := a.push(ctx, conn, entry); err != nil {
			if errors.Is(err, models.ErrInvalidSale) {
				continue
			}
			return sent, err
		}
		sent++
	}
	if sent > 0 {
		log.Info().Int("sent", sent).Msg("flushed pending sales")
	}
	return sent, nil
}

// push delivers one entry and dequeues it on acknowledgement.
func (a *Agent) push(ctx context.Context, conn Conn, entry models.PendingSaleEntry) error {
	summary := entry.Summary
	if summary == nil {
		summary = models.BuildSummary(entry.Sale, a.cfg.DeviceID, a.cfg.DeviceName, a.clock.Now().UTC())
	}
	if summary == nil {
		return models.ErrInvalidSale
	}

	resp, err := a.client.PostSale(ctx, conn, summary, entry.Sale)
	if err != nil {
		a.noteFailure(err)
		return err
	}

	removeID := summary.SaleID
	if removeID == "" {
		removeID = summary.ID
	}
	if _, err := a.queue.RemoveByID(ctx, removeID); err != nil {
		return fmt.Errorf("dequeue %s: %w", removeID, err)
	}

	log.Debug().Str("sale_id", summary.ID).Bool("applied", resp.Applied).Msg("sale acknowledged")
	return nil
}

// Start runs the catalog and flush loops until Stop or ctx ends. Starting a
// running agent is a no-op.
func (a *Agent) Start(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	gen := a.gen.Add(1)
	a.cancel = cancel
	a.running = true

	a.wg.Add(2)
	go a.loop(runCtx, gen, "catalog", a.cfg.SyncInterval, true, a.SyncOnce)
	go a.loop(runCtx, gen, "flush", a.cfg.FlushInterval, false, func(ctx context.Context) error {
		_, err := a.flush(ctx, gen)
		return err
	})
}

// Stop cancels both loops and waits for an in-flight tick to return. No tick
// starts after Stop returns.
func (a *Agent) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	a.gen.Add(1)
	cancel := a.cancel
	a.cancel = nil
	a.mu.Unlock()

	cancel()
	a.wg.Wait()
}

// loop runs tick on a ticker. A single goroutine per loop means a tick always
// finishes before the next one starts; ticks that fall due meanwhile are dropped.
func (a *Agent) loop(ctx context.Context, gen uint64, name string, every time.Duration, immediate bool, tick func(context.Context) error) {
	defer a.wg.Done()

	ticker := a.clock.NewTicker(every)
	defer ticker.Stop()

	if immediate {
		a.runTick(ctx, gen, name, tick)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			a.runTick(ctx, gen, name, tick)
		}
	}
}

func (a *Agent) runTick(ctx context.Context, gen uint64, name string, tick func(context.Context) error) {
	if ctx.Err() != nil || a.gen.Load() != gen {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("loop", name).Msg("sync tick panicked")
		}
	}()

	if err := tick(ctx); err != nil && !errors.Is(err, ErrNotConnected) && !errors.Is(err, context.Canceled) {
		log.Debug().Err(err).Str("loop", name).Msg("sync tick failed, will retry")
	}
}

// activeConn returns the connection unless the agent is not joined, was
// rejected by the master, or is backing off after a 429.
func (a *Agent) activeConn() (Conn, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil || a.authErr != nil {
		return Conn{}, false
	}
	if a.clock.Now().Before(a.backoffUntil) {
		return Conn{}, false
	}
	return *a.conn, true
}

func (a *Agent) noteFailure(err error) {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	switch {
	case apiErr.Auth():
		a.authErr = apiErr
		log.Warn().Int("status", apiErr.Status).Str("error", apiErr.Message).Msg("master rejected credentials, sync paused until rejoin")
	case apiErr.RetryAfter > 0:
		a.backoffUntil = a.clock.Now().Add(apiErr.RetryAfter)
	}
}

func (a *Agent) applyCatalog(ctx context.Context, snap models.ProductSnapshot) error {
	if snap.Products == nil {
		snap.Products = []models.Product{}
	}
	if err := kv.SaveJSON(ctx, a.store, catalogKey, snap); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	if err := a.saveSince(ctx, snap.UpdatedAt); err != nil {
		return err
	}
	if a.cfg.OnCatalog != nil {
		a.cfg.OnCatalog(snap)
	}
	return nil
}

func (a *Agent) saveSince(ctx context.Context, t time.Time) error {
	if t.IsZero() {
		return nil
	}
	if err := kv.SaveJSON(ctx, a.store, sinceKey, t.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("save sync cursor: %w", err)
	}
	return nil
}
