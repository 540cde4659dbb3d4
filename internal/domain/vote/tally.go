package vote

// Thresholds are the pass criteria for a tally, as percentages in [0, 100].
type Thresholds struct {
	QuorumPct   float64 `json:"quorum_pct" yaml:"quorum_pct"`
	ApprovalPct float64 `json:"approval_pct" yaml:"approval_pct"`
}

// Counts is the running sum of voting power per choice.
type Counts struct {
	ForPower     float64 `json:"for_power"`
	AgainstPower float64 `json:"against_power"`
	AbstainPower float64 `json:"abstain_power"`
	Votes        int     `json:"votes"`
}

// Add records a vote of the given power.
func (c *Counts) Add(choice Choice, power float64) {
	switch choice {
	case ChoiceFor:
		c.ForPower += power
	case ChoiceAgainst:
		c.AgainstPower += power
	case ChoiceAbstain:
		c.AbstainPower += power
	}
	c.Votes++
}

// Total is the participating power across all choices.
func (c Counts) Total() float64 {
	return c.ForPower + c.AgainstPower + c.AbstainPower
}

// Result is the outcome of a tally.
type Result struct {
	QuorumReached bool    `json:"quorum_reached"`
	Approved      bool    `json:"approved"`
	ForPower      float64 `json:"for_power"`
	AgainstPower  float64 `json:"against_power"`
	AbstainPower  float64 `json:"abstain_power"`
	Participation float64 `json:"participation"`
	ApprovalRatio float64 `json:"approval_ratio"`
	Votes         int     `json:"votes"`
}

// Tally evaluates counts against the thresholds. Abstentions count towards
// quorum but are excluded from the approval ratio. Threshold equality passes.
func Tally(c Counts, eligiblePower float64, t Thresholds) Result {
	r := Result{
		ForPower:     c.ForPower,
		AgainstPower: c.AgainstPower,
		AbstainPower: c.AbstainPower,
		Votes:        c.Votes,
	}
	if eligiblePower > 0 {
		r.Participation = c.Total() / eligiblePower
		r.QuorumReached = c.Total()*100 >= t.QuorumPct*eligiblePower
	}
	decisive := c.ForPower + c.AgainstPower
	if decisive > 0 {
		r.ApprovalRatio = c.ForPower / decisive
	}
	// Cross-multiplied so exact threshold equality is not lost to rounding.
	r.Approved = r.QuorumReached && decisive > 0 && c.ForPower*100 >= t.ApprovalPct*decisive
	return r
}

// Recount rebuilds counts from a vote ledger.
func Recount(votes []Vote) Counts {
	var c Counts
	for i := range votes {
		c.Add(votes[i].Choice, votes[i].Power)
	}
	return c
}
