package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Master contains runtime configuration for the device hosting an event.
type Master struct {
	EventName     string
	BindHost      string
	Port          int
	AdvertiseHost string // host put in the join payload; detected when empty
	DataDir       string
	CatalogFile   string
	DBURL         string // optional: Postgres sale ledger
	Redis         Redis
	RateWindow    time.Duration
	RateMax       int
	// RequireEventID makes the master check eventId on every request. When
	// false only the PIN is checked.
	RequireEventID bool
	OrgName        string
	TicketFooter   string
	Log            Log
}

// Client contains runtime configuration for a device joining a master.
type Client struct {
	JoinPayload   string // PDV_EVENT|host=..|... ; wins over the fields below
	MasterHost    string
	MasterPort    string
	EventID       string
	PIN           string
	DeviceName    string
	DataDir       string
	Redis         Redis
	SyncInterval  time.Duration
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	Log           Log
}

// Redis is optional; an empty Addr keeps persistence on local files.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Log configures the global logger.
type Log struct {
	Level  string
	Pretty bool
}

// LoadDotEnv loads .env if present. A missing file is not an error.
func LoadDotEnv() error {
	err := godotenv.Load()
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// LoadMaster reads master values from environment variables.
func LoadMaster() (Master, error) {
	name := envStr("PDV_EVENT_NAME", "")
	if name == "" {
		return Master{}, errors.New("PDV_EVENT_NAME required")
	}

	port, err := envPort("PDV_PORT", 8787)
	if err != nil {
		return Master{}, err
	}

	cfg := Master{
		EventName:      name,
		BindHost:       envStr("PDV_BIND_HOST", "0.0.0.0"),
		Port:           port,
		AdvertiseHost:  envStr("PDV_ADVERTISE_HOST", ""),
		DataDir:        envStr("PDV_DATA_DIR", "./data"),
		CatalogFile:    envStr("PDV_CATALOG_FILE", ""),
		DBURL:          envStr("DB_URL", ""),
		Redis:          loadRedis(),
		RateWindow:     envDur("RATE_LIMIT_WINDOW", 10*time.Second),
		RateMax:        envInt("RATE_LIMIT_MAX", 30),
		RequireEventID: envBool("PDV_REQUIRE_EVENT_ID", true),
		OrgName:        envStr("PDV_ORG_NAME", "Comunidade"),
		TicketFooter:   envStr("PDV_TICKET_FOOTER", "Obrigado pela preferência!"),
		Log:            loadLog(),
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = 10 * time.Second
	}
	if cfg.RateMax < 1 {
		cfg.RateMax = 30
	}
	return cfg, nil
}

// LoadClient reads client values from environment variables. Either
// PDV_JOIN_PAYLOAD or the four PDV_MASTER_HOST/PDV_MASTER_PORT/PDV_EVENT_ID/
// PDV_PIN values are required; their shape is validated at join time.
func LoadClient() (Client, error) {
	cfg := Client{
		JoinPayload:   envStr("PDV_JOIN_PAYLOAD", ""),
		MasterHost:    envStr("PDV_MASTER_HOST", ""),
		MasterPort:    envStr("PDV_MASTER_PORT", "8787"),
		EventID:       envStr("PDV_EVENT_ID", ""),
		PIN:           envStr("PDV_PIN", ""),
		DeviceName:    envStr("PDV_DEVICE_NAME", hostnameOr("Cliente")),
		DataDir:       envStr("PDV_DATA_DIR", "./data"),
		Redis:         loadRedis(),
		SyncInterval:  envDur("PDV_SYNC_INTERVAL", 8*time.Second),
		FlushInterval: envDur("PDV_FLUSH_INTERVAL", 5*time.Second),
		HTTPTimeout:   envDur("PDV_HTTP_TIMEOUT", 8*time.Second),
		Log:           loadLog(),
	}

	if cfg.JoinPayload == "" && (cfg.MasterHost == "" || cfg.EventID == "" || cfg.PIN == "") {
		return Client{}, errors.New("PDV_JOIN_PAYLOAD or PDV_MASTER_HOST, PDV_EVENT_ID and PDV_PIN required")
	}
	return cfg, nil
}

func loadRedis() Redis {
	return Redis{
		Addr:     envStr("REDIS_ADDR", ""),
		Password: envStr("REDIS_PASSWORD", ""),
		DB:       envInt("REDIS_DB", 0),
	}
}

func loadLog() Log {
	return Log{
		Level:  envStr("LOG_LEVEL", "info"),
		Pretty: envBool("LOG_PRETTY", false),
	}
}

func hostnameOr(d string) string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return d
}

func envStr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		switch strings.ToLower(v) {
		case "yes", "on":
			return true
		case "no", "off":
			return false
		}
		return d
	}
	return b
}

func envInt(k string, d int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}

func envPort(k string, d int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 || n > 65535 {
		return 0, fmt.Errorf("%s must be a port number, got %q", k, v)
	}
	return n, nil
}
