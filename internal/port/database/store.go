// Package database defines the database store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/GovForge/internal/domain/audit"
	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/domain/vote"
)

// Store is the port interface for governance persistence.
//
// Writes that change a proposal use compare-and-swap on Proposal.Version:
// when the stored version differs the write fails with domain.ErrConflict
// and nothing is persisted. On success the store increments p.Version.
type Store interface {
	// Proposals
	CreateProposal(ctx context.Context, p *proposal.Proposal, entries ...audit.Entry) error
	GetProposal(ctx context.Context, id string) (*proposal.Proposal, error)
	ListProposals(ctx context.Context, statuses ...proposal.Status) ([]proposal.Proposal, error)
	// UpdateProposal persists p and appends entries in one atomic write.
	UpdateProposal(ctx context.Context, p *proposal.Proposal, entries ...audit.Entry) error

	// Votes
	// RecordVote inserts v and persists the updated tally on p in one atomic
	// write. A second vote by the same voter fails with domain.ErrDuplicateVote.
	RecordVote(ctx context.Context, p *proposal.Proposal, v *vote.Vote) error
	ListVotes(ctx context.Context, proposalID string) ([]vote.Vote, error)

	// Audit
	AppendAudit(ctx context.Context, e *audit.Entry) error
	ListAudit(ctx context.Context, proposalID string) ([]audit.Entry, error)

	// Voters
	UpsertVoter(ctx context.Context, v *vote.Voter) error
	GetVoter(ctx context.Context, id string) (*vote.Voter, error)
	ListVoters(ctx context.Context) ([]vote.Voter, error)
}
