package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/domain/vote"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "govforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv("GOVFORGE_CONFIG"); p != "" {
		path = p
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is operator-supplied
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "GOVFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "GOVFORGE_CORS_ORIGIN")
	setString(&cfg.Store.Driver, "GOVFORGE_STORE_DRIVER")
	setString(&cfg.Store.Locker, "GOVFORGE_LOCKER")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "GOVFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "GOVFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "GOVFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "GOVFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "GOVFORGE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Redis.Addr, "REDIS_ADDR")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "GOVFORGE_REDIS_DB")
	setDuration(&cfg.Redis.LockTTL, "GOVFORGE_REDIS_LOCK_TTL")
	setString(&cfg.Logging.Level, "GOVFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "GOVFORGE_LOG_SERVICE")
	setBool(&cfg.Logging.Async, "GOVFORGE_LOG_ASYNC")
	setBool(&cfg.Auth.Enabled, "GOVFORGE_AUTH_ENABLED")
	setString(&cfg.Auth.JWTSecret, "GOVFORGE_JWT_SECRET")
	setString(&cfg.Auth.Issuer, "GOVFORGE_JWT_ISSUER")
	setInt(&cfg.Breaker.MaxFailures, "GOVFORGE_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "GOVFORGE_BREAKER_TIMEOUT")
	setFloat64(&cfg.Rate.RequestsPerSecond, "GOVFORGE_RATE_RPS")
	setInt(&cfg.Rate.Burst, "GOVFORGE_RATE_BURST")
	setDuration(&cfg.Rate.CleanupInterval, "GOVFORGE_RATE_CLEANUP_INTERVAL")
	setDuration(&cfg.Rate.MaxIdleTime, "GOVFORGE_RATE_MAX_IDLE_TIME")

	// Cache
	setBool(&cfg.Cache.Enabled, "GOVFORGE_CACHE_ENABLED")
	setInt64(&cfg.Cache.L1MaxSizeMB, "GOVFORGE_CACHE_L1_SIZE_MB")
	setDuration(&cfg.Cache.L1TTL, "GOVFORGE_CACHE_L1_TTL")
	setString(&cfg.Cache.L2Bucket, "GOVFORGE_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.L2TTL, "GOVFORGE_CACHE_L2_TTL")

	// Idempotency
	setString(&cfg.Idempotency.Bucket, "GOVFORGE_IDEMPOTENCY_BUCKET")
	setDuration(&cfg.Idempotency.TTL, "GOVFORGE_IDEMPOTENCY_TTL")

	// OpenTelemetry
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "GOVFORGE_OTEL_INSECURE")

	// Governance
	setInt(&cfg.Governance.Weights.StakePct, "GOVFORGE_STAKE_WEIGHT_PCT")
	setInt(&cfg.Governance.Weights.ReputationPct, "GOVFORGE_REPUTATION_WEIGHT_PCT")
	setFloat64(&cfg.Governance.Weights.MaxPower, "GOVFORGE_MAX_POWER")
	setInt64(&cfg.Governance.Eligibility.MinStake, "GOVFORGE_MIN_STAKE")
	setFloat64(&cfg.Governance.Eligibility.MinReputation, "GOVFORGE_MIN_REPUTATION")
	setList(&cfg.Governance.Eligibility.Blacklist, "GOVFORGE_BLACKLIST")
	setInt64(&cfg.Governance.ProposerMinStake, "GOVFORGE_PROPOSER_MIN_STAKE")
	setList(&cfg.Governance.Approvers, "GOVFORGE_APPROVERS")
	setDuration(&cfg.Governance.SweepInterval, "GOVFORGE_SWEEP_INTERVAL")
	setDuration(&cfg.Governance.LockTimeout, "GOVFORGE_LOCK_TIMEOUT")

	// Cognitive analysis
	setString(&cfg.Cognitive.URL, "GOVFORGE_COGNITIVE_URL")
	setString(&cfg.Cognitive.APIKey, "GOVFORGE_COGNITIVE_API_KEY")
	setDuration(&cfg.Cognitive.Timeout, "GOVFORGE_COGNITIVE_TIMEOUT")

	// Execution
	setString(&cfg.Execution.Engine, "GOVFORGE_EXECUTION_ENGINE")
	setInt(&cfg.Execution.MaxAttempts, "GOVFORGE_EXECUTION_MAX_ATTEMPTS")
	setDuration(&cfg.Execution.BaseBackoff, "GOVFORGE_EXECUTION_BASE_BACKOFF")
	setDuration(&cfg.Execution.MaxBackoff, "GOVFORGE_EXECUTION_MAX_BACKOFF")
	setDuration(&cfg.Execution.AttemptTimeout, "GOVFORGE_EXECUTION_ATTEMPT_TIMEOUT")
	setDuration(&cfg.Execution.ClaimLease, "GOVFORGE_EXECUTION_CLAIM_LEASE")

	// Alerts
	setProvider(cfg, "slack", "webhook_url", "GOVFORGE_SLACK_WEBHOOK_URL")
	setProvider(cfg, "discord", "webhook_url", "GOVFORGE_DISCORD_WEBHOOK_URL")
	setList(&cfg.Alerts.Events, "GOVFORGE_ALERT_EVENTS")
	setDuration(&cfg.Alerts.Timeout, "GOVFORGE_ALERT_TIMEOUT")

	setBool(&cfg.MCP.Enabled, "GOVFORGE_MCP_ENABLED")

	setString(&cfg.Secrets.File, "GOVFORGE_SECRETS_FILE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required")
		}
		if cfg.Postgres.MaxConns < 1 {
			return errors.New("postgres.max_conns must be >= 1")
		}
	case "memory":
	default:
		return fmt.Errorf("store.driver must be postgres or memory, got %q", cfg.Store.Driver)
	}
	switch cfg.Store.Locker {
	case "memory":
	case "redis":
		if cfg.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis locker")
		}
		if cfg.Redis.LockTTL <= 0 {
			return errors.New("redis.lock_ttl must be positive")
		}
	default:
		return fmt.Errorf("store.locker must be memory or redis, got %q", cfg.Store.Locker)
	}
	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" && cfg.Secrets.File == "" {
		return errors.New("auth.jwt_secret or secrets.file is required when auth is enabled")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if cfg.Rate.Burst < 1 {
		return errors.New("rate.burst must be >= 1")
	}
	if err := cfg.Governance.Weights.Validate(); err != nil {
		return fmt.Errorf("governance.weights: %w", err)
	}
	if cfg.Governance.Eligibility.MinStake < 0 {
		return errors.New("governance.eligibility.min_stake must be >= 0")
	}
	if cfg.Governance.SweepInterval <= 0 {
		return errors.New("governance.sweep_interval must be positive")
	}
	if cfg.Governance.LockTimeout <= 0 {
		return errors.New("governance.lock_timeout must be positive")
	}
	for _, t := range proposal.Types {
		tr, ok := cfg.Governance.Types[string(t)]
		if !ok {
			return fmt.Errorf("governance.types.%s is required", t)
		}
		r := tr.Rules(t, &cfg.Governance)
		if err := r.Validate(); err != nil {
			return fmt.Errorf("governance.types.%s: %w", t, err)
		}
	}
	for name := range cfg.Governance.Types {
		if !proposal.Type(name).Valid() {
			return fmt.Errorf("governance.types: unknown proposal type %q", name)
		}
	}
	if cfg.Cognitive.Timeout <= 0 {
		return errors.New("cognitive.timeout must be positive")
	}
	switch cfg.Execution.Engine {
	case "nats":
		if cfg.NATS.URL == "" {
			return errors.New("nats.url is required for the nats execution engine")
		}
	case "log":
	default:
		return fmt.Errorf("execution.engine must be nats or log, got %q", cfg.Execution.Engine)
	}
	if cfg.Execution.MaxAttempts < 1 {
		return errors.New("execution.max_attempts must be >= 1")
	}
	if cfg.Execution.BaseBackoff <= 0 || cfg.Execution.MaxBackoff < cfg.Execution.BaseBackoff {
		return errors.New("execution backoff must satisfy 0 < base_backoff <= max_backoff")
	}
	if cfg.Execution.AttemptTimeout <= 0 {
		return errors.New("execution.attempt_timeout must be positive")
	}
	if budget := cfg.Execution.RetryBudget(); cfg.Execution.ClaimLease <= budget {
		return fmt.Errorf("execution.claim_lease must exceed the retry budget of %s", budget)
	}
	if len(cfg.Alerts.Providers) > 0 && cfg.Alerts.Timeout <= 0 {
		return errors.New("alerts.timeout must be positive")
	}
	return nil
}

// Rules converts per-type configuration into the snapshot stored on a proposal.
// Strategic, governance and financial proposals are always gated. The power
// weights and proposer stake minimum of g are snapshotted with the thresholds.
func (tr TypeRules) Rules(t proposal.Type, g *Governance) proposal.Rules {
	return proposal.Rules{
		Thresholds: vote.Thresholds{
			QuorumPct:   tr.QuorumPct,
			ApprovalPct: tr.ApprovalPct,
		},
		VotingPeriod:          tr.VotingPeriod,
		ReviewPeriod:          tr.ReviewPeriod,
		RequiresHumanApproval: tr.RequiresHumanApproval || t.AlwaysGated(),
		Eligibility: vote.Eligibility{
			MinStake:      g.Eligibility.MinStake,
			MinReputation: g.Eligibility.MinReputation,
			Blacklist:     append([]string(nil), g.Eligibility.Blacklist...),
		},
		Weights:          g.Weights,
		ProposerMinStake: g.ProposerMinStake,
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setProvider(cfg *Config, provider, setting, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if cfg.Alerts.Providers == nil {
		cfg.Alerts.Providers = make(map[string]map[string]string)
	}
	if cfg.Alerts.Providers[provider] == nil {
		cfg.Alerts.Providers[provider] = make(map[string]string)
	}
	cfg.Alerts.Providers[provider][setting] = v
}

func setList(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		var out []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*dst = out
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
