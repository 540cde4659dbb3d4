package vote_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Strob0t/GovForge/internal/domain/vote"
)

// Property: power never exceeds the cap and never decreases when either input grows.
func TestPowerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	calc, err := vote.NewCalculator(vote.Weights{StakePct: 70, ReputationPct: 30, MaxPower: 5000})
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}

	stakeGen := gen.Int64Range(0, 1_000_000)
	repGen := gen.Float64Range(0, vote.MaxReputation)

	properties.Property("power is within [0, cap]", prop.ForAll(
		func(stake int64, rep float64) bool {
			p, err := calc.Power(stake, rep)
			return err == nil && p >= 0 && p <= 5000
		},
		stakeGen, repGen,
	))

	properties.Property("power is non-decreasing in stake", prop.ForAll(
		func(stake, delta int64, rep float64) bool {
			lo, err1 := calc.Power(stake, rep)
			hi, err2 := calc.Power(stake+delta, rep)
			return err1 == nil && err2 == nil && hi >= lo
		},
		stakeGen, gen.Int64Range(0, 1_000_000), repGen,
	))

	properties.Property("power is non-decreasing in reputation", prop.ForAll(
		func(stake int64, a, b float64) bool {
			if a > b {
				a, b = b, a
			}
			lo, err1 := calc.Power(stake, a)
			hi, err2 := calc.Power(stake, b)
			return err1 == nil && err2 == nil && hi >= lo
		},
		stakeGen, repGen, repGen,
	))

	properties.TestingRun(t)
}

// Property: adding a vote never lowers the participating power, and an
// abstention never changes the approval ratio.
func TestTallyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	powerGen := gen.Float64Range(0, 1000)
	th := vote.Thresholds{QuorumPct: 20, ApprovalPct: 66}

	properties.Property("abstain does not move the approval ratio", prop.ForAll(
		func(f, a, abstain float64) bool {
			c := vote.Counts{ForPower: f, AgainstPower: a}
			before := vote.Tally(c, 10000, th)
			c.Add(vote.ChoiceAbstain, abstain)
			after := vote.Tally(c, 10000, th)
			return before.ApprovalRatio == after.ApprovalRatio && after.Participation >= before.Participation
		},
		powerGen, powerGen, powerGen,
	))

	properties.TestingRun(t)
}
