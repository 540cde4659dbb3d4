package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/GovForge/internal/domain"
	"github.com/Strob0t/GovForge/internal/domain/audit"
	"github.com/Strob0t/GovForge/internal/domain/cognitive"
	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/domain/vote"
)

// Store implements database.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Proposals ---

const proposalColumns = `id, title, description, execution_plan, type, status, proposer_id, rules,
	eligible_power, tally, outcome, cognitive_summary, human_decision, execution,
	submitted_at, voting_starts_at, voting_ends_at, closed_at, version, created_at, updated_at`

// proposalRow holds the JSONB columns of a proposal in their encoded form.
type proposalRow struct {
	rules, tally, outcome, summary, decision, execution []byte
}

func encodeProposal(p *proposal.Proposal) (proposalRow, error) {
	var r proposalRow
	var err error
	if r.rules, err = json.Marshal(p.Rules); err != nil {
		return r, fmt.Errorf("marshal rules: %w", err)
	}
	if r.tally, err = json.Marshal(p.Tally); err != nil {
		return r, fmt.Errorf("marshal tally: %w", err)
	}
	if r.outcome, err = jsonOrNil(p.Outcome); err != nil {
		return r, fmt.Errorf("marshal outcome: %w", err)
	}
	if r.summary, err = jsonOrNil(p.CognitiveSummary); err != nil {
		return r, fmt.Errorf("marshal cognitive summary: %w", err)
	}
	if r.decision, err = jsonOrNil(p.HumanDecision); err != nil {
		return r, fmt.Errorf("marshal human decision: %w", err)
	}
	if r.execution, err = json.Marshal(p.Execution); err != nil {
		return r, fmt.Errorf("marshal execution: %w", err)
	}
	return r, nil
}

func scanProposal(row scannable) (proposal.Proposal, error) {
	var p proposal.Proposal
	var r proposalRow
	err := row.Scan(&p.ID, &p.Title, &p.Description, &p.ExecutionPlan, &p.Type, &p.Status, &p.ProposerID, &r.rules,
		&p.EligiblePower, &r.tally, &r.outcome, &r.summary, &r.decision, &r.execution,
		&p.SubmittedAt, &p.VotingStartsAt, &p.VotingEndsAt, &p.ClosedAt, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(r.rules, &p.Rules); err != nil {
		return p, fmt.Errorf("unmarshal rules: %w", err)
	}
	if err := json.Unmarshal(r.tally, &p.Tally); err != nil {
		return p, fmt.Errorf("unmarshal tally: %w", err)
	}
	if err := json.Unmarshal(r.execution, &p.Execution); err != nil {
		return p, fmt.Errorf("unmarshal execution: %w", err)
	}
	if p.Outcome, err = unmarshalOptional[vote.Result](r.outcome); err != nil {
		return p, fmt.Errorf("unmarshal outcome: %w", err)
	}
	if p.CognitiveSummary, err = unmarshalOptional[cognitive.Summary](r.summary); err != nil {
		return p, fmt.Errorf("unmarshal cognitive summary: %w", err)
	}
	if p.HumanDecision, err = unmarshalOptional[proposal.HumanDecision](r.decision); err != nil {
		return p, fmt.Errorf("unmarshal human decision: %w", err)
	}
	return p, nil
}

func (s *Store) CreateProposal(ctx context.Context, p *proposal.Proposal, entries ...audit.Entry) error {
	r, err := encodeProposal(p)
	if err != nil {
		return err
	}
	if p.Version == 0 {
		p.Version = 1
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO proposals (`+proposalColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
			p.ID, p.Title, p.Description, p.ExecutionPlan, p.Type, p.Status, p.ProposerID, r.rules,
			p.EligiblePower, r.tally, r.outcome, r.summary, r.decision, r.execution,
			p.SubmittedAt, p.VotingStartsAt, p.VotingEndsAt, p.ClosedAt, p.Version, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert proposal: %w", err)
		}
		return insertAudit(ctx, tx, entries)
	})
}

func (s *Store) GetProposal(ctx context.Context, id string) (*proposal.Proposal, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	p, err := scanProposal(row)
	if err != nil {
		return nil, notFoundWrap(err, "get proposal %s", id)
	}
	return &p, nil
}

func (s *Store) ListProposals(ctx context.Context, statuses ...proposal.Status) ([]proposal.Proposal, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.pool.Query(ctx, `SELECT `+proposalColumns+` FROM proposals ORDER BY created_at DESC`)
	} else {
		names := make([]string, len(statuses))
		for i, st := range statuses {
			names[i] = string(st)
		}
		rows, err = s.pool.Query(ctx,
			`SELECT `+proposalColumns+` FROM proposals WHERE status = ANY($1) ORDER BY created_at DESC`, names)
	}
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	defer rows.Close()

	var out []proposal.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, p)
	}
	return orEmpty(out), rows.Err()
}

func (s *Store) UpdateProposal(ctx context.Context, p *proposal.Proposal, entries ...audit.Entry) error {
	r, err := encodeProposal(p)
	if err != nil {
		return err
	}
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE proposals SET title = $2, description = $3, execution_plan = $4, status = $5, rules = $6,
			        eligible_power = $7, tally = $8, outcome = $9, cognitive_summary = $10, human_decision = $11,
			        execution = $12, submitted_at = $13, voting_starts_at = $14, voting_ends_at = $15, closed_at = $16,
			        updated_at = $17, version = version + 1
			 WHERE id = $1 AND version = $18`,
			p.ID, p.Title, p.Description, p.ExecutionPlan, p.Status, r.rules,
			p.EligiblePower, r.tally, r.outcome, r.summary, r.decision,
			r.execution, p.SubmittedAt, p.VotingStartsAt, p.VotingEndsAt, p.ClosedAt,
			p.UpdatedAt, p.Version)
		if err != nil {
			return fmt.Errorf("update proposal %s: %w", p.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return s.missingOrConflict(ctx, tx, p.ID)
		}
		return insertAudit(ctx, tx, entries)
	})
	if err != nil {
		return err
	}
	p.Version++
	return nil
}

// missingOrConflict distinguishes a stale version from an unknown proposal.
func (s *Store) missingOrConflict(ctx context.Context, tx pgx.Tx, id string) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM proposals WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("update proposal %s: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("update proposal %s: %w", id, domain.ErrNotFound)
	}
	return fmt.Errorf("update proposal %s: %w", id, domain.ErrConflict)
}

// --- Votes ---

func (s *Store) RecordVote(ctx context.Context, p *proposal.Proposal, v *vote.Vote) error {
	tally, err := json.Marshal(p.Tally)
	if err != nil {
		return fmt.Errorf("marshal tally: %w", err)
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	err = s.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO votes (id, proposal_id, voter_id, choice, power, cast_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			v.ID, v.ProposalID, v.VoterID, v.Choice, v.Power, v.CastAt)
		if err != nil {
			if isUniqueViolation(err, "votes_one_per_voter") {
				return fmt.Errorf("voter %s on proposal %s: %w", v.VoterID, v.ProposalID, domain.ErrDuplicateVote)
			}
			return fmt.Errorf("insert vote: %w", err)
		}
		tag, err := tx.Exec(ctx,
			`UPDATE proposals SET tally = $2, updated_at = $3, version = version + 1 WHERE id = $1 AND version = $4`,
			p.ID, tally, p.UpdatedAt, p.Version)
		if err != nil {
			return fmt.Errorf("update tally %s: %w", p.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return s.missingOrConflict(ctx, tx, p.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.Version++
	return nil
}

func (s *Store) ListVotes(ctx context.Context, proposalID string) ([]vote.Vote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, proposal_id, voter_id, choice, power, cast_at FROM votes WHERE proposal_id = $1 ORDER BY cast_at, id`,
		proposalID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}
	defer rows.Close()

	var out []vote.Vote
	for rows.Next() {
		var v vote.Vote
		if err := rows.Scan(&v.ID, &v.ProposalID, &v.VoterID, &v.Choice, &v.Power, &v.CastAt); err != nil {
			return nil, fmt.Errorf("scan vote: %w", err)
		}
		out = append(out, v)
	}
	return orEmpty(out), rows.Err()
}

// --- Audit ---

func (s *Store) AppendAudit(ctx context.Context, e *audit.Entry) error {
	prepareAudit(e)
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return insertAudit(ctx, tx, []audit.Entry{*e})
	})
}

func (s *Store) ListAudit(ctx context.Context, proposalID string) ([]audit.Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, proposal_id, kind, actor, from_status, to_status, reasoning, metadata, created_at
		 FROM audit_log WHERE proposal_id = $1 ORDER BY seq`, proposalID)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var e audit.Entry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.ProposalID, &e.Kind, &e.Actor, &e.FromStatus, &e.ToStatus, &e.Reasoning, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal audit metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return orEmpty(out), rows.Err()
}

func prepareAudit(e *audit.Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
}

func insertAudit(ctx context.Context, tx pgx.Tx, entries []audit.Entry) error {
	for i := range entries {
		e := &entries[i]
		prepareAudit(e)
		var meta []byte
		if len(e.Metadata) > 0 {
			var err error
			if meta, err = json.Marshal(e.Metadata); err != nil {
				return fmt.Errorf("marshal audit metadata: %w", err)
			}
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO audit_log (id, proposal_id, kind, actor, from_status, to_status, reasoning, metadata, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			e.ID, e.ProposalID, e.Kind, e.Actor, e.FromStatus, e.ToStatus, e.Reasoning, meta, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}
	return nil
}

// --- Voters ---

func (s *Store) UpsertVoter(ctx context.Context, v *vote.Voter) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO voters (id, stake, reputation, updated_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET stake = EXCLUDED.stake, reputation = EXCLUDED.reputation, updated_at = EXCLUDED.updated_at`,
		v.ID, v.Stake, v.Reputation, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert voter %s: %w", v.ID, err)
	}
	return nil
}

func (s *Store) GetVoter(ctx context.Context, id string) (*vote.Voter, error) {
	var v vote.Voter
	err := s.pool.QueryRow(ctx, `SELECT id, stake, reputation, updated_at FROM voters WHERE id = $1`, id).
		Scan(&v.ID, &v.Stake, &v.Reputation, &v.UpdatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get voter %s", id)
	}
	return &v, nil
}

func (s *Store) ListVoters(ctx context.Context) ([]vote.Voter, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, stake, reputation, updated_at FROM voters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list voters: %w", err)
	}
	defer rows.Close()

	var out []vote.Voter
	for rows.Next() {
		var v vote.Voter
		if err := rows.Scan(&v.ID, &v.Stake, &v.Reputation, &v.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan voter: %w", err)
		}
		out = append(out, v)
	}
	return orEmpty(out), rows.Err()
}

// Ping reports database reachability for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
