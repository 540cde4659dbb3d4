package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/GovForge/internal/adapter/postgres"
	"github.com/Strob0t/GovForge/internal/domain"
	"github.com/Strob0t/GovForge/internal/domain/audit"
	"github.com/Strob0t/GovForge/internal/domain/cognitive"
	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/domain/vote"
)

// setupStore creates a pgxpool connection, runs all migrations, and returns a
// ready-to-use Store. The pool is closed via t.Cleanup.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	return postgres.NewStore(pool)
}

func newProposal() *proposal.Proposal {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &proposal.Proposal{
		ID:         uuid.NewString(),
		Title:      "Raise treasury cap",
		Type:       proposal.TypeFinancial,
		Status:     proposal.StatusDraft,
		ProposerID: "alice",
		Rules: proposal.Rules{
			Thresholds:            vote.Thresholds{QuorumPct: 30, ApprovalPct: 66},
			VotingPeriod:          time.Hour,
			RequiresHumanApproval: true,
			Weights:               vote.Weights{StakePct: 70, ReputationPct: 30, MaxPower: 10000},
			ProposerMinStake:      100,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestStore_ProposalRoundTripAndCAS(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	p := newProposal()
	created := audit.Entry{ProposalID: p.ID, Kind: audit.KindTransition, Actor: "alice", ToStatus: proposal.StatusDraft}
	if err := s.CreateProposal(ctx, p, created); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetProposal(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Rules.VotingPeriod != time.Hour || !got.Rules.RequiresHumanApproval {
		t.Fatalf("rules not round-tripped: %+v", got.Rules)
	}
	if got.Rules.Weights != p.Rules.Weights || got.Rules.ProposerMinStake != 100 {
		t.Fatalf("weights snapshot not round-tripped: %+v", got.Rules)
	}
	if got.CognitiveSummary != nil {
		t.Fatal("summary must start empty")
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	stale := got.Clone()
	got.CognitiveSummary = &cognitive.Summary{AlignmentScore: 0.8, Confidence: 0.6, Insights: []string{"ok"}}
	got.Execution = proposal.Execution{State: proposal.ExecutionDispatched, ClaimedAt: &now, Claims: 1}
	if err := s.UpdateProposal(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Version != stale.Version+1 {
		t.Fatalf("version not bumped: %d", got.Version)
	}

	stale.Title = "lost update"
	if err := s.UpdateProposal(ctx, stale); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	reloaded, _ := s.GetProposal(ctx, p.ID)
	if reloaded.Title != p.Title || reloaded.CognitiveSummary == nil {
		t.Fatalf("unexpected state after conflict: %+v", reloaded)
	}
	if c := reloaded.Execution.ClaimedAt; c == nil || !c.Equal(now) || reloaded.Execution.Claims != 1 {
		t.Fatalf("execution claim not round-tripped: %+v", reloaded.Execution)
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := setupStore(t)
	if _, err := s.GetProposal(context.Background(), uuid.NewString()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_DuplicateVote(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	p := newProposal()
	if err := s.CreateProposal(ctx, p); err != nil {
		t.Fatal(err)
	}
	v := &vote.Vote{ProposalID: p.ID, VoterID: "bob", Choice: vote.ChoiceFor, Power: 10, CastAt: time.Now().UTC()}
	p.Tally.Add(v.Choice, v.Power)
	if err := s.RecordVote(ctx, p, v); err != nil {
		t.Fatalf("first vote: %v", err)
	}

	dup := &vote.Vote{ProposalID: p.ID, VoterID: "bob", Choice: vote.ChoiceAgainst, Power: 10, CastAt: time.Now().UTC()}
	p.Tally.Add(dup.Choice, dup.Power)
	if err := s.RecordVote(ctx, p, dup); !errors.Is(err, domain.ErrDuplicateVote) {
		t.Fatalf("expected ErrDuplicateVote, got %v", err)
	}

	got, _ := s.GetProposal(ctx, p.ID)
	if got.Tally.ForPower != 10 || got.Tally.AgainstPower != 0 {
		t.Fatalf("duplicate must not change the tally: %+v", got.Tally)
	}
	votes, _ := s.ListVotes(ctx, p.ID)
	if len(votes) != 1 {
		t.Fatalf("expected 1 vote, got %d", len(votes))
	}
}

func TestStore_AuditOrderAndVoters(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	p := newProposal()
	if err := s.CreateProposal(ctx, p); err != nil {
		t.Fatal(err)
	}
	for _, r := range []string{"first", "second", "third"} {
		if err := s.AppendAudit(ctx, &audit.Entry{ProposalID: p.ID, Kind: audit.KindNote, Actor: "x", Reasoning: r}); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := s.ListAudit(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 || entries[0].Reasoning != "first" || entries[2].Reasoning != "third" {
		t.Fatalf("unexpected audit order: %+v", entries)
	}

	id := "voter-" + uuid.NewString()
	if err := s.UpsertVoter(ctx, &vote.Voter{ID: id, Stake: 10, Reputation: 5, UpdatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertVoter(ctx, &vote.Voter{ID: id, Stake: 20, Reputation: 5, UpdatedAt: time.Now().UTC()}); err != nil {
		t.Fatal(err)
	}
	v, err := s.GetVoter(ctx, id)
	if err != nil || v.Stake != 20 {
		t.Fatalf("upsert did not replace stake: %+v %v", v, err)
	}
}
