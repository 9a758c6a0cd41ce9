package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/PratikDhanave/pdv-lan-sync/internal/client"
	"github.com/PratikDhanave/pdv-lan-sync/internal/config"
	"github.com/PratikDhanave/pdv-lan-sync/internal/kv"
	"github.com/PratikDhanave/pdv-lan-sync/internal/logging"
	"github.com/PratikDhanave/pdv-lan-sync/internal/models"
	"github.com/PratikDhanave/pdv-lan-sync/internal/outbox"
)

// main runs a client device: it joins the master, keeps the catalog fresh and
// delivers sales read from stdin, one JSON object per line.
func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.LoadClient()
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

	agent := client.NewAgent(ctx, kvStore, outbox.New(kvStore, nil), client.Config{
		DeviceName:    cfg.DeviceName,
		SyncInterval:  cfg.SyncInterval,
		FlushInterval: cfg.FlushInterval,
		Timeout:       cfg.HTTPTimeout,
		OnCatalog: func(s models.ProductSnapshot) {
			log.Info().Int("products", len(s.Products)).Time("updated_at", s.UpdatedAt).Msg("catalog updated")
		},
	})

	if err := join(ctx, agent, cfg); err != nil {
		var verr *client.ValidationError
		if errors.As(err, &verr) || client.IsAuthError(err) || !agent.Status(ctx).Connected {
			log.Fatal().Err(err).Msg("could not join master")
		}
		// A previous join was restored; keep selling offline and retry on each tick.
		log.Warn().Err(err).Msg("master unreachable, continuing with the saved connection")
	}

	agent.Start(ctx)

	go readSales(ctx, agent)

	<-ctx.Done()
	agent.Stop()

	st := agent.Status(context.Background())
	log.Info().Int("pending", st.Pending).Msg("client stopped")
}

func join(ctx context.Context, agent *client.Agent, cfg config.Client) error {
	if cfg.JoinPayload != "" {
		_, err := agent.JoinWithPayload(ctx, cfg.JoinPayload)
		return err
	}
	_, err := agent.Join(ctx, client.JoinParams{
		Host:    cfg.MasterHost,
		Port:    cfg.MasterPort,
		EventID: cfg.EventID,
		PIN:     cfg.PIN,
	})
	return err
}

func readSales(ctx context.Context, agent *client.Agent) {
	sc := bufio.NewScanner(os.Stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var sale models.Sale
		if err := json.Unmarshal([]byte(line), &sale); err != nil {
			log.Warn().Err(err).Msg("skipping malformed sale line")
			continue
		}

		summary, err := agent.SubmitSale(ctx, sale)
		if err != nil {
			log.Error().Err(err).Msg("could not record sale")
			continue
		}
		log.Info().Str("sale_id", summary.ID).Float64("total", summary.Total).Msg("sale recorded")
	}
	if err := sc.Err(); err != nil {
		log.Error().Err(err).Msg("reading sales from stdin")
	}
}
