// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradeloop/escrowgate/internal/domain"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port                 string        // e.g. "8080"
	BackofficePort       string        // e.g. "8081"
	Env                  string        // "development" | "production"
	ReadTimeout          time.Duration // default 10s
	WriteTimeout         time.Duration // default 10s
	BackofficeAllowedIPs string        // comma-separated IPs; "" = allow all
	AllowedOrigins       []string      // production CORS allowlist
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver        string // "postgres" | "memory"
	MigrationsDir string // default "migrations"
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// JWTConfig holds the shared secret used to verify access tokens. Tokens
// are issued by the identity service.
type JWTConfig struct {
	AccessSecret string // must be set
}

// AMLConfig holds the risk thresholds. Amounts are in each currency's own
// unit and are never converted.
type AMLConfig struct {
	Thresholds domain.ThresholdTable
}

// SettlementConfig holds escrow/settlement settings.
type SettlementConfig struct {
	Timeout           time.Duration // per fund/release deadline, default 5s
	DefaultProvider   string        // default "manual"
	ProviderRefPrefix string        // default "esc"
}

// KafkaConfig holds the audit-event publisher settings. An empty broker
// list logs audit events instead of publishing them.
type KafkaConfig struct {
	Brokers      []string
	AuditTopic   string        // default "escrow.audit"
	WriteTimeout time.Duration // default 2s
	BatchTimeout time.Duration // max wait before a partial batch is flushed, default 10ms
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	DB         DBConfig
	JWT        JWTConfig
	AML        AMLConfig
	Settlement SettlementConfig
	Kafka      KafkaConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// UsesMemoryStore reports whether the in-process store is selected.
func (c *Config) UsesMemoryStore() bool {
	return c.Storage.Driver == "memory"
}

// Validate checks that all required configuration values are present and valid.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET must be set"))
	}

	switch c.Storage.Driver {
	case "postgres":
		if c.IsProd() && c.DB.DSN == "" {
			errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
		}
	case "memory":
		if c.IsProd() {
			errs = append(errs, errors.New("STORAGE_DRIVER=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be postgres or memory, got %q", c.Storage.Driver))
	}

	if !c.AML.Thresholds.Default.IsOrdered() {
		errs = append(errs, errors.New("AML thresholds must be positive and ordered monitor <= edd <= block"))
	}
	for cur, th := range c.AML.Thresholds.PerCurrency {
		if !th.IsOrdered() {
			errs = append(errs, fmt.Errorf("AML thresholds for %s must be positive and ordered", cur))
		}
	}

	if c.Settlement.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("SETTLEMENT_TIMEOUT must be positive, got %s", c.Settlement.Timeout))
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.AuditTopic == "" {
		errs = append(errs, errors.New("KAFKA_AUDIT_TOPIC must be set when KAFKA_BROKERS is set"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = Load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Loader
// ──────────────────────────────────────────────────────────────────────────────

// Load reads the configuration from the environment without caching it.
func Load() (*Config, error) {
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:                 getEnv("SERVER_PORT", "8080"),
		BackofficePort:       getEnv("BACKOFFICE_PORT", "8081"),
		Env:                  getEnv("ENVIRONMENT", "development"),
		ReadTimeout:          getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:         getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		BackofficeAllowedIPs: getEnv("BACKOFFICE_ALLOWED_IPS", ""),
		AllowedOrigins:       getList("CORS_ALLOWED_ORIGINS"),
	}

	cfg.Storage = StorageConfig{
		Driver:        strings.ToLower(getEnv("STORAGE_DRIVER", "postgres")),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "migrations"),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		// Build DSN from individual components for convenience in dev
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "escrowgate"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		AccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
	}

	// ── AML ───────────────────────────────────────────────────────────────────
	def := domain.DefaultThresholds()
	if def.Monitor, err = getDecimal("AML_MONITOR_THRESHOLD", def.Monitor); err != nil {
		return nil, fmt.Errorf("AML_MONITOR_THRESHOLD: %w", err)
	}
	if def.EnhancedDueDiligence, err = getDecimal("AML_EDD_THRESHOLD", def.EnhancedDueDiligence); err != nil {
		return nil, fmt.Errorf("AML_EDD_THRESHOLD: %w", err)
	}
	if def.HardBlock, err = getDecimal("AML_BLOCK_THRESHOLD", def.HardBlock); err != nil {
		return nil, fmt.Errorf("AML_BLOCK_THRESHOLD: %w", err)
	}
	perCurrency, err := ParseCurrencyThresholds(os.Getenv("AML_CURRENCY_THRESHOLDS"))
	if err != nil {
		return nil, fmt.Errorf("AML_CURRENCY_THRESHOLDS: %w", err)
	}
	cfg.AML = AMLConfig{
		Thresholds: domain.ThresholdTable{Default: def, PerCurrency: perCurrency},
	}

	// ── Settlement ────────────────────────────────────────────────────────────
	cfg.Settlement = SettlementConfig{
		Timeout:           getDuration("SETTLEMENT_TIMEOUT", 5*time.Second),
		DefaultProvider:   getEnv("ESCROW_DEFAULT_PROVIDER", "manual"),
		ProviderRefPrefix: getEnv("ESCROW_PROVIDER_REF_PREFIX", "esc"),
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	cfg.Kafka = KafkaConfig{
		Brokers:      getList("KAFKA_BROKERS"),
		AuditTopic:   getEnv("KAFKA_AUDIT_TOPIC", "escrow.audit"),
		WriteTimeout: getDuration("KAFKA_WRITE_TIMEOUT", 2*time.Second),
		BatchTimeout: getDuration("KAFKA_BATCH_TIMEOUT", 10*time.Millisecond),
	}

	return cfg, nil
}

// ParseCurrencyThresholds parses "JPY=15000000/37500000/150000000;EUR=..."
// into per-currency thresholds (monitor/edd/block). An empty string yields
// no overrides.
func ParseCurrencyThresholds(raw string) (map[string]domain.Thresholds, error) {
	out := map[string]domain.Thresholds{}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		cur, values, ok := strings.Cut(entry, "=")
		cur = strings.ToUpper(strings.TrimSpace(cur))
		if !ok || len(cur) != 3 {
			return nil, fmt.Errorf("invalid entry %q: want CUR=monitor/edd/block", entry)
		}
		parts := strings.Split(values, "/")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid entry %q: want three amounts", entry)
		}
		var nums [3]decimal.Decimal
		for i, p := range parts {
			d, err := decimal.NewFromString(strings.TrimSpace(p))
			if err != nil {
				return nil, fmt.Errorf("invalid amount %q for %s", p, cur)
			}
			nums[i] = d
		}
		out[cur] = domain.Thresholds{
			Monitor:              nums[0],
			EnhancedDueDiligence: nums[1],
			HardBlock:            nums[2],
		}
	}
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getDecimal(key string, defaultVal decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", v)
	}
	return d, nil
}

// getList splits a comma-separated env var, dropping blanks.
func getList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or empty.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Fall back to default; do not crash on parse error
		return defaultVal
	}
	return d
}
