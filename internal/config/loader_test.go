package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/domain/vote"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoadFrom_FullHierarchy(t *testing.T) {
	// YAML sets port=9090, env overrides to 7070. Env must win.
	path := writeYAML(t, `
server:
  port: "9090"
logging:
  level: "debug"
`)
	t.Setenv("GOVFORGE_PORT", "7070")
	t.Setenv("GOVFORGE_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("env should override YAML: got port %q, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override YAML: got level %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadFrom_MissingYAMLFile(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/to/config.yaml")
	if err != nil {
		t.Fatalf("missing YAML should not error, got %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %q", cfg.Server.Port)
	}
}

func TestLoadFrom_MalformedYAML(t *testing.T) {
	if _, err := LoadFrom(writeYAML(t, `{{{invalid yaml`)); err == nil {
		t.Fatal("expected error for malformed YAML, got nil")
	}
}

func TestLoadFrom_EnvInvalidValuesIgnored(t *testing.T) {
	t.Setenv("GOVFORGE_PG_MAX_CONNS", "notanumber")
	t.Setenv("GOVFORGE_BREAKER_TIMEOUT", "invalid-duration")
	t.Setenv("GOVFORGE_RATE_RPS", "abc")

	cfg, err := LoadFrom(writeYAML(t, ""))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Postgres.MaxConns != 15 {
		t.Errorf("got max_conns %d, want 15", cfg.Postgres.MaxConns)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("got breaker timeout %v, want 30s", cfg.Breaker.Timeout)
	}
	if cfg.Rate.RequestsPerSecond != 10 {
		t.Errorf("got rps %v, want 10", cfg.Rate.RequestsPerSecond)
	}
}

func TestLoadFrom_GovernanceYAML(t *testing.T) {
	path := writeYAML(t, `
governance:
  weights:
    stake_weight_pct: 60
    reputation_weight_pct: 40
    max_power: 500
  types:
    technical:
      quorum_pct: 25
      approval_pct: 50
      voting_period: 6h
      review_period: 30m
`)
	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Governance.Weights.StakePct != 60 || cfg.Governance.Weights.MaxPower != 500 {
		t.Errorf("unexpected weights %+v", cfg.Governance.Weights)
	}
	tech := cfg.Governance.Types["technical"]
	if tech.QuorumPct != 25 || tech.VotingPeriod != 6*time.Hour || tech.ReviewPeriod != 30*time.Minute {
		t.Errorf("unexpected technical rules %+v", tech)
	}
	// Untouched types keep their defaults.
	if _, ok := cfg.Governance.Types["strategic"]; !ok {
		t.Error("strategic rules should survive a partial override")
	}
}

func TestLoadFrom_WeightsMustSumTo100(t *testing.T) {
	t.Setenv("GOVFORGE_STAKE_WEIGHT_PCT", "80")
	if _, err := LoadFrom(writeYAML(t, "")); err == nil {
		t.Fatal("expected validation error for weights 80/30")
	}
}

func TestLoadFrom_UnknownProposalType(t *testing.T) {
	path := writeYAML(t, `
governance:
  types:
    social:
      quorum_pct: 10
      approval_pct: 50
      voting_period: 1h
`)
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected error for unknown proposal type")
	}
}

func TestLoadFrom_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad store driver", map[string]string{"GOVFORGE_STORE_DRIVER": "sqlite"}},
		{"redis locker without addr", map[string]string{"GOVFORGE_LOCKER": "redis", "REDIS_ADDR": ""}},
		{"auth without secret", map[string]string{"GOVFORGE_AUTH_ENABLED": "true"}},
		{"zero attempts", map[string]string{"GOVFORGE_EXECUTION_MAX_ATTEMPTS": "0"}},
		{"backoff inverted", map[string]string{"GOVFORGE_EXECUTION_BASE_BACKOFF": "1m", "GOVFORGE_EXECUTION_MAX_BACKOFF": "1s"}},
		{"bad engine", map[string]string{"GOVFORGE_EXECUTION_ENGINE": "kafka"}},
		{"lease within retry budget", map[string]string{"GOVFORGE_EXECUTION_CLAIM_LEASE": "1m"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := Defaults()
			loadEnv(&cfg)
			if tt.name == "redis locker without addr" {
				cfg.Redis.Addr = ""
			}
			if err := validate(&cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestExecution_RetryBudget(t *testing.T) {
	e := Defaults().Execution
	// 5 attempts of 10s and 4 waits of at most 45s.
	if got, want := e.RetryBudget(), 230*time.Second; got != want {
		t.Fatalf("retry budget = %v, want %v", got, want)
	}
	if e.ClaimLease <= e.RetryBudget() {
		t.Fatalf("default lease %v must exceed the retry budget", e.ClaimLease)
	}
}

func TestLoadEnv_Lists(t *testing.T) {
	t.Setenv("GOVFORGE_APPROVERS", "carol, dave ,,")
	t.Setenv("GOVFORGE_BLACKLIST", "mallory")
	cfg := Defaults()
	loadEnv(&cfg)

	if len(cfg.Governance.Approvers) != 2 || cfg.Governance.Approvers[1] != "dave" {
		t.Errorf("unexpected approvers %v", cfg.Governance.Approvers)
	}
	if len(cfg.Governance.Eligibility.Blacklist) != 1 {
		t.Errorf("unexpected blacklist %v", cfg.Governance.Eligibility.Blacklist)
	}
}

func TestLoadEnv_AlertProviders(t *testing.T) {
	t.Setenv("GOVFORGE_SLACK_WEBHOOK_URL", "https://hooks.slack.example/T1")
	t.Setenv("GOVFORGE_ALERT_EVENTS", "execution.failed")
	cfg := Defaults()
	loadEnv(&cfg)

	if got := cfg.Alerts.Providers["slack"]["webhook_url"]; got != "https://hooks.slack.example/T1" {
		t.Errorf("unexpected slack webhook %q", got)
	}
	if _, ok := cfg.Alerts.Providers["discord"]; ok {
		t.Error("discord must stay unconfigured")
	}
	if len(cfg.Alerts.Events) != 1 || cfg.Alerts.Events[0] != "execution.failed" {
		t.Errorf("unexpected events %v", cfg.Alerts.Events)
	}
}

func TestLoadEnv_MCP(t *testing.T) {
	cfg := Defaults()
	if cfg.MCP.Enabled {
		t.Fatal("mcp must be off by default")
	}
	t.Setenv("GOVFORGE_MCP_ENABLED", "true")
	loadEnv(&cfg)
	if !cfg.MCP.Enabled {
		t.Error("GOVFORGE_MCP_ENABLED=true must enable mcp")
	}
}

func TestTypeRules_AlwaysGated(t *testing.T) {
	tr := TypeRules{QuorumPct: 10, ApprovalPct: 50, VotingPeriod: time.Hour}
	gov := Defaults().Governance
	for _, typ := range proposal.Types {
		r := tr.Rules(typ, &gov)
		if typ.AlwaysGated() && !r.RequiresHumanApproval {
			t.Errorf("%s must require human approval", typ)
		}
		if !typ.AlwaysGated() && r.RequiresHumanApproval {
			t.Errorf("%s should follow its configured gate", typ)
		}
	}
}

func TestTypeRules_SnapshotsWeightsAndProposerStake(t *testing.T) {
	gov := Defaults().Governance
	gov.Weights = vote.Weights{StakePct: 10, ReputationPct: 90, MaxPower: 50}
	gov.ProposerMinStake = 7
	r := gov.Types[string(proposal.TypeTechnical)].Rules(proposal.TypeTechnical, &gov)
	if r.Weights != gov.Weights {
		t.Errorf("weights = %+v, want %+v", r.Weights, gov.Weights)
	}
	if r.ProposerMinStake != 7 {
		t.Errorf("proposer min stake = %d, want 7", r.ProposerMinStake)
	}
	if err := r.Validate(); err != nil {
		t.Errorf("snapshot must validate: %v", err)
	}

	gov.Weights.StakePct = 20
	bad := gov.Types[string(proposal.TypeTechnical)].Rules(proposal.TypeTechnical, &gov)
	if err := bad.Validate(); err == nil {
		t.Error("weights 20/90 must not validate")
	}
}
