package proposal

import (
	"fmt"
	"time"

	"github.com/Strob0t/GovForge/internal/domain"
	"github.com/Strob0t/GovForge/internal/domain/vote"
)

// Status represents a proposal's position in the governance lifecycle.
type Status string

const (
	StatusDraft                Status = "draft"
	StatusSubmitted            Status = "submitted"
	StatusVoting               Status = "voting"
	StatusPendingHumanApproval Status = "pending_human_approval"
	StatusExecuted             Status = "executed"
	StatusRejected             Status = "rejected"
)

// validStatuses enumerates all valid statuses.
var validStatuses = map[Status]bool{
	StatusDraft:                true,
	StatusSubmitted:            true,
	StatusVoting:               true,
	StatusPendingHumanApproval: true,
	StatusExecuted:             true,
	StatusRejected:             true,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return validStatuses[s] }

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusRejected
}

// edges is the transition graph. Every status is reachable from draft.
var edges = map[Status][]Status{
	StatusDraft:                {StatusSubmitted},
	StatusSubmitted:            {StatusVoting},
	StatusVoting:               {StatusPendingHumanApproval, StatusExecuted, StatusRejected},
	StatusPendingHumanApproval: {StatusExecuted, StatusRejected},
}

// CanTransition reports whether from -> to is an edge of the graph.
func CanTransition(from, to Status) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Event is the trigger presented to Transition.
type Event struct {
	To     Status
	At     time.Time
	Actor  string
	Reason string

	// Outcome must be set when leaving voting.
	Outcome *vote.Result
	// Decision must be set when leaving pending_human_approval.
	Decision *HumanDecision
	// ProposerStake and MinStake are checked on draft -> submitted.
	ProposerStake int64
	MinStake      int64
	// EligiblePower is snapshotted on submitted -> voting.
	EligiblePower float64
}

// Transition validates ev against p and applies it in place. On error p is
// left untouched.
func Transition(p *Proposal, ev Event) error {
	from := p.Status
	if !CanTransition(from, ev.To) {
		return fmt.Errorf("%s -> %s: %w", from, ev.To, domain.ErrInvalidTransition)
	}
	if err := checkPreconditions(p, ev); err != nil {
		return err
	}

	at := ev.At.UTC()
	switch ev.To {
	case StatusSubmitted:
		p.SubmittedAt = &at
	case StatusVoting:
		end := at.Add(p.Rules.VotingPeriod)
		p.VotingStartsAt = &at
		p.VotingEndsAt = &end
		p.EligiblePower = ev.EligiblePower
	case StatusPendingHumanApproval:
		o := *ev.Outcome
		p.Outcome = &o
	case StatusExecuted, StatusRejected:
		if from == StatusVoting {
			o := *ev.Outcome
			p.Outcome = &o
		}
		if ev.Decision != nil {
			d := *ev.Decision
			p.HumanDecision = &d
		}
		p.ClosedAt = &at
		if ev.To == StatusExecuted {
			p.Execution = Execution{State: ExecutionPending}
		}
	}
	p.Status = ev.To
	p.UpdatedAt = at
	return nil
}

func checkPreconditions(p *Proposal, ev Event) error {
	switch ev.To {
	case StatusSubmitted:
		if ev.Actor == "" || ev.Actor != p.ProposerID {
			return fmt.Errorf("only the proposer may submit: %w", domain.ErrForbidden)
		}
		if ev.ProposerStake < ev.MinStake {
			return fmt.Errorf("proposer stake %d below minimum %d: %w", ev.ProposerStake, ev.MinStake, domain.ErrInsufficientStake)
		}
	case StatusVoting:
		if p.SubmittedAt == nil || ev.At.Before(p.SubmittedAt.Add(p.Rules.ReviewPeriod)) {
			return fmt.Errorf("review period has not elapsed: %w", domain.ErrInvalidTransition)
		}
	}

	if p.Status == StatusVoting {
		if p.VotingEndsAt == nil || ev.At.Before(*p.VotingEndsAt) {
			return fmt.Errorf("voting window still open: %w", domain.ErrInvalidTransition)
		}
		if ev.Outcome == nil {
			return fmt.Errorf("leaving voting requires a tally: %w", domain.ErrInvalidTransition)
		}
		switch ev.To {
		case StatusRejected:
			if ev.Outcome.Approved {
				return fmt.Errorf("approved tally cannot reject: %w", domain.ErrInvalidTransition)
			}
		case StatusExecuted:
			if !ev.Outcome.Approved || p.Rules.RequiresHumanApproval {
				return fmt.Errorf("direct execution requires an approved tally and no human gate: %w", domain.ErrInvalidTransition)
			}
		case StatusPendingHumanApproval:
			if !ev.Outcome.Approved || !p.Rules.RequiresHumanApproval {
				return fmt.Errorf("human gate requires an approved tally on a gated proposal: %w", domain.ErrInvalidTransition)
			}
		}
	}

	if p.Status == StatusPendingHumanApproval {
		if ev.Decision == nil || ev.Decision.Approver == "" {
			return fmt.Errorf("human decision required: %w", domain.ErrValidation)
		}
		if ev.Decision.Approved != (ev.To == StatusExecuted) {
			return fmt.Errorf("decision does not match target status: %w", domain.ErrInvalidTransition)
		}
	}
	return nil
}
