package engine

import (
	"fmt"
	"maps"
	"math"
	"slices"
)

// Costs breaks down what an allocation spends.
type Costs struct {
	SE int `json:"SE"`
	TE int `json:"TE"`
	BR int `json:"BR"`
	AR int `json:"AR"`
	SP int `json:"SP"`
}

// MaxLineCount bounds every dice count in an allocation. No reachable budget
// comes close, so larger counts are rejected as malformed.
const MaxLineCount = 1 << 16

// Total sums every cost line, saturating at math.MaxInt.
func (c Costs) Total() int {
	total := 0
	for _, v := range []int{c.SE, c.TE, c.BR, c.AR, c.SP} {
		total = addCapped(total, v)
	}
	return total
}

// addCapped adds b to a, stopping at math.MaxInt instead of wrapping.
func addCapped(a, b int) int {
	if b > 0 && a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

// mulCapped multiplies non-negative a and b, stopping at math.MaxInt.
func mulCapped(a, b int) int {
	if a > 0 && b > math.MaxInt/a {
		return math.MaxInt
	}
	return a * b
}

// Budget is the verdict of ValidateBudget.
type Budget struct {
	OK     bool  `json:"ok"`
	Used   int   `json:"used"`
	Budget int   `json:"budget"`
	Costs  Costs `json:"costs"`
}

// Remaining is the unspent part of the budget, never negative.
func (b Budget) Remaining() int {
	if b.Used >= b.Budget {
		return 0
	}
	return b.Budget - b.Used
}

// SECost prices secondary education: larger populations cost more to educate.
func SECost(pop, meanPop float64) int {
	if meanPop <= 0 || pop <= 0 {
		return 0
	}
	return int(math.Ceil(pop / meanPop))
}

// AllocationCost prices each line of an allocation independently.
func AllocationCost(alloc *Allocation, pop, meanPop float64, schedule CostSchedule) Costs {
	var c Costs
	if alloc == nil {
		return c
	}
	if alloc.SE > 0 {
		c.SE = SECost(pop, meanPop)
	}
	if alloc.TE > 0 {
		c.TE = 1
	}
	if alloc.BR > 0 {
		c.BR = alloc.BR
	}
	c.AR = schedule.Cost(alloc.ARTotal())
	c.SP = len(alloc.ActiveSpies())
	return c
}

// ValidateBudget checks an allocation against 2*W plus any banked carryover.
// states supplies every team's POP for the education price.
func ValidateBudget(w, carry int, alloc *Allocation, pop float64, states map[Team]*TeamState, schedule CostSchedule) Budget {
	teams := slices.Sorted(maps.Keys(states))
	costs := AllocationCost(alloc, pop, meanPOP(teams, states), schedule)
	used := costs.Total()
	budget := 2*w + carry
	return Budget{
		OK:     used <= budget,
		Used:   used,
		Budget: budget,
		Costs:  costs,
	}
}

// CheckAllocation rejects allocations that cannot be priced: negative counts,
// unknown tiers or stances, and spying on unknown teams or oneself.
func CheckAllocation(cfg Config, team Team, alloc *Allocation) error {
	if alloc == nil {
		return nil
	}
	reject := func(format string, args ...any) error {
		return withMetadata(CodeInvalidAllocation, fmt.Sprintf(format, args...), map[string]string{"team": string(team)})
	}
	if alloc.SE != 0 && alloc.SE != 1 {
		return reject("SE must be 0 or 1, got %d", alloc.SE)
	}
	if alloc.TE != 0 && alloc.TE != 1 {
		return reject("TE must be 0 or 1, got %d", alloc.TE)
	}
	switch alloc.IM {
	case "", StanceNone, StanceOpen, StanceClose:
	default:
		return reject("unknown immigration stance %q", alloc.IM)
	}
	if alloc.BR < 0 || alloc.BR > MaxLineCount {
		return reject("BR must be within 0..%d, got %d", MaxLineCount, alloc.BR)
	}
	for _, tier := range slices.Sorted(maps.Keys(alloc.AR)) {
		n := alloc.AR[tier]
		if !cfg.HasTier(tier) {
			return reject("unknown tier %q in AR", tier)
		}
		if n < 0 || n > MaxLineCount {
			return reject("AR[%s] must be within 0..%d, got %d", tier, MaxLineCount, n)
		}
	}
	if n := alloc.ARTotal(); n > MaxLineCount {
		return reject("AR total must be <= %d, got %d", MaxLineCount, n)
	}
	if len(alloc.SP) > MaxLineCount {
		return reject("at most %d spy actions, got %d", MaxLineCount, len(alloc.SP))
	}
	for _, sp := range alloc.ActiveSpies() {
		if sp.Target == team {
			return reject("cannot spy on own team")
		}
		if !cfg.HasTeam(sp.Target) {
			return reject("unknown spy target %q", sp.Target)
		}
		if !cfg.HasTier(sp.Tech) {
			return reject("unknown spy tier %q", sp.Tech)
		}
	}
	return nil
}
