package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/PratikDhanave/pdv-lan-sync/internal/auth"
	"github.com/PratikDhanave/pdv-lan-sync/internal/catalog"
	"github.com/PratikDhanave/pdv-lan-sync/internal/config"
	"github.com/PratikDhanave/pdv-lan-sync/internal/httpserver"
	"github.com/PratikDhanave/pdv-lan-sync/internal/identity"
	"github.com/PratikDhanave/pdv-lan-sync/internal/kv"
	"github.com/PratikDhanave/pdv-lan-sync/internal/lan"
	"github.com/PratikDhanave/pdv-lan-sync/internal/logging"
	"github.com/PratikDhanave/pdv-lan-sync/internal/master"
	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
	"github.com/PratikDhanave/pdv-lan-sync/internal/store"
)

// main opens one event in master mode: config → storage → identity →
// catalog → ledger → LAN server, then runs until interrupted.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.LoadMaster()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kvStore, closeStore, err := kv.Open(cfg.DataDir, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open local storage")
	}
	defer closeStore()

	id := identity.Resolve(ctx, kvStore, cfg.EventName)
	if !id.Enabled() {
		log.Fatal().Str("event", cfg.EventName).Msg("could not issue event identity; multi-device mode disabled")
	}

	cat, err := catalog.Open(ctx, kvStore, nil, cfg.EventName)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open catalog")
	}

	ticket := &models.TicketModel{OrgName: cfg.OrgName, Footer: cfg.TicketFooter}
	if cfg.CatalogFile != "" {
		seed, err := catalog.LoadSeed(cfg.CatalogFile)
		if err != nil {
			log.Fatal().Err(err).Msg("could not load catalog file")
		}
		if _, err := cat.Replace(ctx, seed.Products); err != nil {
			log.Fatal().Err(err).Msg("could not save catalog")
		}
		mergeTicket(ticket, seed.Ticket)
	}

	ledger, health, closeLedger := openLedger(ctx, cfg, kvStore, id.EventKey)
	defer closeLedger()

	svc := master.NewService(cat, ledger, ticket, nil)

	creds := auth.Credentials{PIN: id.PIN}
	if cfg.RequireEventID {
		creds.EventID = id.ShortID
	} else {
		log.Warn().Msg("event id check disabled; any device with the PIN can join")
	}

	srv := httpserver.NewMaster(httpserver.MasterOptions{
		Host:          cfg.BindHost,
		Port:          cfg.Port,
		Credentials:   creds,
		RateWindow:    cfg.RateWindow,
		RateMax:       cfg.RateMax,
		Collaborators: svc,
		Transport:     httpserver.SelectTransport(nil),
	})

	handle, err := srv.Start(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("could not start LAN server; event continues in single-device mode")
	}

	payload := identity.EncodeJoinPayload(identity.JoinPayload{
		Host: advertiseHost(cfg),
		Port: boundPort(handle.Addr(), cfg.Port),
		ID:   id.ShortID,
		PIN:  id.PIN,
	})
	log.Info().
		Str("event", cfg.EventName).
		Str("event_id", id.ShortID).
		Str("pin", id.PIN).
		Str("join_payload", payload).
		Int("products", len(cat.Snapshot().Products)).
		Msg("event open for clients")

	hangup := make(chan os.Signal, 1)
	signal.Notify(hangup, syscall.SIGHUP)
	defer signal.Stop(hangup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hangup:
				refresh(ctx, cfg.CatalogFile, cat, health)
			}
		}
	}()

	<-ctx.Done()

	for _, c := range handle.Clients() {
		log.Info().
			Str("client_id", c.ClientID).
			Str("device", c.DeviceName).
			Str("ip", c.IP).
			Time("last_seen", c.LastSeen).
			Msg("connected client")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	totals, err := svc.Totals(shutdownCtx)
	if err != nil {
		log.Error().Err(err).Msg("could not compute totals")
		return
	}
	for _, d := range totals.ByDevice {
		log.Info().Str("device", d.DeviceName).Int("sales", d.Sales).Float64("total", d.Total).Msg("device totals")
	}
	log.Info().Int("sales", totals.Sales).Float64("total", totals.Total).Msg("event totals")
}

// refresh runs on SIGHUP: it reloads the catalog file, so clients pick the
// change up on their next sync, and checks the database when one is in use.
// The ticket model is read at startup only.
func refresh(ctx context.Context, catalogFile string, cat *catalog.Catalog, health func(context.Context) error) {
	if catalogFile != "" {
		snap, err := cat.ReloadSeed(ctx, catalogFile)
		if err != nil {
			log.Error().Err(err).Str("file", catalogFile).Msg("catalog reload failed; keeping current catalog")
		} else {
			log.Info().Int("products", len(snap.Products)).Time("updated_at", snap.UpdatedAt).Msg("catalog reloaded")
		}
	}
	if health != nil {
		if err := health(ctx); err != nil {
			log.Error().Err(err).Msg("database unreachable")
		} else {
			log.Info().Msg("database reachable")
		}
	}
}

func openLedger(ctx context.Context, cfg config.Master, kvStore kv.Store, eventKey string) (store.SaleLedger, func(context.Context) error, func()) {
	if cfg.DBURL != "" {
		pg, err := store.NewPostgresLedger(cfg.DBURL, eventKey)
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}
		// Ensure required tables/indexes exist so a fresh database is enough.
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			log.Fatal().Err(err).Msg("could not apply schema")
		}
		return pg, pg.Ping, pg.Close
	}

	l, err := store.NewKVLedger(ctx, kvStore, eventKey)
	if err != nil {
		log.Fatal().Err(err).Msg("could not open sale ledger")
	}
	return l, nil, func() {}
}

func mergeTicket(dst *models.TicketModel, src models.TicketModel) {
	if src.OrgName != "" {
		dst.OrgName = src.OrgName
	}
	if src.Footer != "" {
		dst.Footer = src.Footer
	}
	if src.LogoDataURL != "" {
		dst.LogoDataURL = src.LogoDataURL
	}
	if src.LogoWidthMM != 0 {
		dst.LogoWidthMM = src.LogoWidthMM
	}
	if src.ImageMode != "" {
		dst.ImageMode = src.ImageMode
	}
}

func advertiseHost(cfg config.Master) string {
	if cfg.AdvertiseHost != "" {
		return cfg.AdvertiseHost
	}
	ip, err := lan.LocalIPv4()
	if err != nil {
		log.Warn().Err(err).Msg("set PDV_ADVERTISE_HOST to the Wi-Fi address of this device")
		return ""
	}
	return ip
}

func boundPort(addr string, fallback int) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return fallback
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return fallback
	}
	return n
}
