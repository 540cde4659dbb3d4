// Package memory implements the database store in process memory. It backs
// the "memory" store driver and the service tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/GovForge/internal/domain"
	"github.com/Strob0t/GovForge/internal/domain/audit"
	"github.com/Strob0t/GovForge/internal/domain/proposal"
	"github.com/Strob0t/GovForge/internal/domain/vote"
)

// Store implements database.Store with the same compare-and-swap and
// uniqueness guarantees as the PostgreSQL store.
type Store struct {
	mu        sync.RWMutex
	proposals map[string]*proposal.Proposal
	order     []string
	votes     map[string][]vote.Vote
	voted     map[string]map[string]bool
	audit     map[string][]audit.Entry
	voters    map[string]vote.Voter
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		proposals: make(map[string]*proposal.Proposal),
		votes:     make(map[string][]vote.Vote),
		voted:     make(map[string]map[string]bool),
		audit:     make(map[string][]audit.Entry),
		voters:    make(map[string]vote.Voter),
	}
}

func (s *Store) CreateProposal(_ context.Context, p *proposal.Proposal, entries ...audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[p.ID]; ok {
		return fmt.Errorf("create proposal %s: %w", p.ID, domain.ErrConflict)
	}
	if p.Version == 0 {
		p.Version = 1
	}
	s.proposals[p.ID] = p.Clone()
	s.order = append(s.order, p.ID)
	s.appendLocked(entries)
	return nil
}

func (s *Store) GetProposal(_ context.Context, id string) (*proposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, fmt.Errorf("get proposal %s: %w", id, domain.ErrNotFound)
	}
	return p.Clone(), nil
}

// ListProposals returns proposals newest first.
func (s *Store) ListProposals(_ context.Context, statuses ...proposal.Status) ([]proposal.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]proposal.Proposal, 0, len(s.order))
	for i := len(s.order) - 1; i >= 0; i-- {
		p := s.proposals[s.order[i]]
		if len(statuses) > 0 && !slices.Contains(statuses, p.Status) {
			continue
		}
		out = append(out, *p.Clone())
	}
	return out, nil
}

func (s *Store) UpdateProposal(_ context.Context, p *proposal.Proposal, entries ...audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.casLocked(p); err != nil {
		return err
	}
	p.Version++
	s.proposals[p.ID] = p.Clone()
	s.appendLocked(entries)
	return nil
}

func (s *Store) casLocked(p *proposal.Proposal) error {
	cur, ok := s.proposals[p.ID]
	if !ok {
		return fmt.Errorf("update proposal %s: %w", p.ID, domain.ErrNotFound)
	}
	if cur.Version != p.Version {
		return fmt.Errorf("update proposal %s: %w", p.ID, domain.ErrConflict)
	}
	return nil
}

func (s *Store) RecordVote(_ context.Context, p *proposal.Proposal, v *vote.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.voted[v.ProposalID][v.VoterID] {
		return fmt.Errorf("voter %s on proposal %s: %w", v.VoterID, v.ProposalID, domain.ErrDuplicateVote)
	}
	if err := s.casLocked(p); err != nil {
		return err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}

	cur := s.proposals[p.ID]
	cur.Tally = p.Tally
	cur.UpdatedAt = p.UpdatedAt
	cur.Version++
	p.Version = cur.Version

	if s.voted[v.ProposalID] == nil {
		s.voted[v.ProposalID] = make(map[string]bool)
	}
	s.voted[v.ProposalID][v.VoterID] = true
	s.votes[v.ProposalID] = append(s.votes[v.ProposalID], *v)
	return nil
}

func (s *Store) ListVotes(_ context.Context, proposalID string) ([]vote.Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]vote.Vote{}, s.votes[proposalID]...), nil
}

func (s *Store) AppendAudit(_ context.Context, e *audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[e.ProposalID]; !ok {
		return fmt.Errorf("append audit for %s: %w", e.ProposalID, domain.ErrNotFound)
	}
	prepare(e)
	s.appendLocked([]audit.Entry{*e})
	return nil
}

func (s *Store) ListAudit(_ context.Context, proposalID string) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.audit[proposalID]
	out := make([]audit.Entry, len(src))
	for i, e := range src {
		e.Metadata = maps.Clone(e.Metadata)
		out[i] = e
	}
	return out, nil
}

func (s *Store) appendLocked(entries []audit.Entry) {
	for _, e := range entries {
		prepare(&e)
		e.Metadata = maps.Clone(e.Metadata)
		s.audit[e.ProposalID] = append(s.audit[e.ProposalID], e)
	}
}

func prepare(e *audit.Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
}

func (s *Store) UpsertVoter(_ context.Context, v *vote.Voter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.voters[v.ID] = *v
	return nil
}

func (s *Store) GetVoter(_ context.Context, id string) (*vote.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.voters[id]
	if !ok {
		return nil, fmt.Errorf("get voter %s: %w", id, domain.ErrNotFound)
	}
	return &v, nil
}

func (s *Store) ListVoters(_ context.Context) ([]vote.Voter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]vote.Voter, 0, len(s.voters))
	for _, id := range slices.Sorted(maps.Keys(s.voters)) {
		out = append(out, s.voters[id])
	}
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }
