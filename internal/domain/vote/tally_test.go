package vote_test

import (
	"errors"
	"testing"

	"github.com/Strob0t/GovForge/internal/domain"
	"github.com/Strob0t/GovForge/internal/domain/vote"
)

func TestTally_QuorumAndApproval(t *testing.T) {
	c := vote.Counts{ForPower: 5000, AgainstPower: 1000, AbstainPower: 500, Votes: 3}
	r := vote.Tally(c, 10000, vote.Thresholds{QuorumPct: 20, ApprovalPct: 66})

	if !r.QuorumReached {
		t.Fatal("expected quorum reached")
	}
	if !r.Approved {
		t.Fatal("expected approved")
	}
	if r.Participation != 0.65 {
		t.Fatalf("expected participation 0.65, got %v", r.Participation)
	}
	if r.ApprovalRatio < 0.833 || r.ApprovalRatio > 0.834 {
		t.Fatalf("expected approval ratio ~0.833, got %v", r.ApprovalRatio)
	}
	if r.Votes != 3 {
		t.Fatalf("expected 3 votes, got %d", r.Votes)
	}
}

func TestTally_ThresholdEqualityPasses(t *testing.T) {
	c := vote.Counts{ForPower: 3, AgainstPower: 1}
	r := vote.Tally(c, 8, vote.Thresholds{QuorumPct: 50, ApprovalPct: 75})

	if !r.QuorumReached {
		t.Fatal("exact quorum should pass")
	}
	if !r.Approved {
		t.Fatal("exact approval threshold should pass")
	}
}

func TestTally_QuorumNotReached(t *testing.T) {
	c := vote.Counts{ForPower: 100}
	r := vote.Tally(c, 10000, vote.Thresholds{QuorumPct: 20, ApprovalPct: 50})

	if r.QuorumReached || r.Approved {
		t.Fatalf("expected no quorum and not approved, got %+v", r)
	}
}

func TestTally_AbstainExcludedFromApproval(t *testing.T) {
	// 40 for, 50 against, 1000 abstain: quorum met, but for < against.
	c := vote.Counts{ForPower: 40, AgainstPower: 50, AbstainPower: 1000}
	r := vote.Tally(c, 2000, vote.Thresholds{QuorumPct: 20, ApprovalPct: 50})

	if !r.QuorumReached {
		t.Fatal("expected quorum reached")
	}
	if r.Approved {
		t.Fatal("abstentions must not count towards approval")
	}
}

func TestTally_OnlyAbstentions(t *testing.T) {
	c := vote.Counts{AbstainPower: 5000}
	r := vote.Tally(c, 5000, vote.Thresholds{QuorumPct: 20, ApprovalPct: 0})

	if r.Approved {
		t.Fatal("no decisive power must never approve")
	}
}

func TestTally_ZeroEligiblePower(t *testing.T) {
	r := vote.Tally(vote.Counts{ForPower: 10}, 0, vote.Thresholds{QuorumPct: 0, ApprovalPct: 0})
	if r.QuorumReached || r.Approved {
		t.Fatalf("zero eligible power must not reach quorum, got %+v", r)
	}
}

func TestRecount(t *testing.T) {
	votes := []vote.Vote{
		{Choice: vote.ChoiceFor, Power: 10},
		{Choice: vote.ChoiceAgainst, Power: 4},
		{Choice: vote.ChoiceAbstain, Power: 1},
		{Choice: vote.ChoiceFor, Power: 2},
	}
	c := vote.Recount(votes)
	if c.ForPower != 12 || c.AgainstPower != 4 || c.AbstainPower != 1 || c.Votes != 4 {
		t.Fatalf("unexpected counts %+v", c)
	}
}

func TestEligibility_Check(t *testing.T) {
	e := vote.Eligibility{MinStake: 100, MinReputation: 10, Blacklist: []string{"mallory"}}

	cases := []struct {
		name  string
		voter *vote.Voter
		ok    bool
	}{
		{"eligible", &vote.Voter{ID: "alice", Stake: 100, Reputation: 10}, true},
		{"unregistered", nil, false},
		{"low stake", &vote.Voter{ID: "bob", Stake: 99, Reputation: 50}, false},
		{"low reputation", &vote.Voter{ID: "carol", Stake: 500, Reputation: 9.9}, false},
		{"blacklisted", &vote.Voter{ID: "mallory", Stake: 9999, Reputation: 100}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := e.Check(tc.voter)
			if tc.ok && err != nil {
				t.Fatalf("expected eligible, got %v", err)
			}
			if !tc.ok && !errors.Is(err, domain.ErrIneligibleVoter) {
				t.Fatalf("expected ErrIneligibleVoter, got %v", err)
			}
		})
	}
}

func TestEligiblePower_SkipsIneligible(t *testing.T) {
	calc := mustCalculator(t, vote.Weights{StakePct: 100, ReputationPct: 0, MaxPower: 1e9})
	e := vote.Eligibility{MinStake: 10, Blacklist: []string{"x"}}
	voters := []vote.Voter{
		{ID: "a", Stake: 100},
		{ID: "b", Stake: 5},
		{ID: "x", Stake: 1000},
		{ID: "c", Stake: 50},
	}
	if got := vote.EligiblePower(calc, e, voters); got != 150 {
		t.Fatalf("expected 150, got %v", got)
	}
}

func TestCastRequest_Validate(t *testing.T) {
	good := vote.CastRequest{Choice: vote.ChoiceAbstain}
	if err := good.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := vote.CastRequest{Choice: "maybe"}
	if err := bad.Validate(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
