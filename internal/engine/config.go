package engine

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/xtding233/techrace-backend/internal/dice"
)

// TeamInit seeds a team at game creation.
type TeamInit struct {
	GDP    float64 `json:"GDP"`
	POP    float64 `json:"POP"`
	SE     int     `json:"SE"`
	TE     int     `json:"TE"`
	IM     int     `json:"IM"`
	Regime Regime  `json:"regime"`
}

// Requirement gates a discovery. Zero fields are not checked.
type Requirement struct {
	KMin  float64 `json:"K_min,omitempty"`
	TKMin float64 `json:"TK_min,omitempty"`
}

// TierInfo is one row of the research table.
type TierInfo struct {
	BRReq float64         `json:"br_req"` // BR_effective needed before AR dice produce points
	ARThr int             `json:"ar_thr"` // AR roll counted as a success (TK gain)
	Draw  dice.TwoOutcome `json:"draw"`
}

// CostStep prices Units dice at Cost each. Units == 0 means "all remaining".
type CostStep struct {
	Units int `json:"units"`
	Cost  int `json:"cost"`
}

// CostSchedule is a tiered price list over a combined dice count.
type CostSchedule []CostStep

// Cost returns the price of n dice. Dice past the last bounded step pay the
// last step's rate.
func (s CostSchedule) Cost(n int) int {
	if n <= 0 || len(s) == 0 {
		return 0
	}
	total, left := 0, n
	for _, st := range s {
		take := left
		if st.Units > 0 && take > st.Units {
			take = st.Units
		}
		total = addCapped(total, mulCapped(take, st.Cost))
		left -= take
		if left == 0 {
			return total
		}
	}
	return addCapped(total, mulCapped(left, s[len(s)-1].Cost))
}

// Education tunes the education and immigration phase.
type Education struct {
	SEKPerCost    float64 `json:"se_k_per_cost"`   // ΔK = SEKPerCost * SE * se_cost
	TEGain        int     `json:"te_gain"`         // TE increase per tertiary investment
	TETK          float64 `json:"te_tk"`           // ΔTK = TETK * TE after the increase
	ImmigrationK  float64 `json:"immigration_k"`   // ΔK = ImmigrationK * im_weight for open stance
	InitialKScale float64 `json:"initial_k_scale"` // K0 = InitialKScale * (SE + TE)
}

// BasicResearch tunes the basic-research phase.
type BasicResearch struct {
	Die       dice.Die `json:"die"`
	Spillover float64  `json:"spillover"` // share of rivals' BR_total counted as own
}

// Espionage tunes the espionage phase.
type Espionage struct {
	Die        dice.Die `json:"die"`
	TKTransfer float64  `json:"tk_transfer"` // max TK copied from a stronger target
}

// Config is the immutable rule set of one game. Pass it by value to every call.
type Config struct {
	MaxRounds             int                  `json:"max_rounds"`
	Teams                 []Team               `json:"teams"`
	Techs                 []Tier               `json:"techs"`
	GDPWeightExponent     float64              `json:"gdp_weight_exponent"`
	PopWeightExponent     float64              `json:"pop_weight_exponent"`
	GDPBaseline           float64              `json:"gdp_baseline"`
	InitByTeam            map[Team]TeamInit    `json:"init_by_team"`
	TPThreshold           map[Tier]int         `json:"tp_threshold"`
	MinRequirements       map[Tier]Requirement `json:"min_requirements"`
	TechInfo              map[Tier]TierInfo    `json:"tech_info"`
	DiscoveryTK           map[Tier]float64     `json:"discovery_tk"`
	ARSuccessTK           float64              `json:"ar_success_tk"`
	ARCost                CostSchedule         `json:"ar_cost"`
	Education             Education            `json:"education"`
	BasicResearch         BasicResearch        `json:"basic_research"`
	Espionage             Espionage            `json:"espionage"`
	CarryFraction         float64              `json:"carry_fraction"`
	RequireAllSubmissions bool                 `json:"require_all_submissions"`
	AnnounceDiscoveries   bool                 `json:"announce_discoveries"`
}

// DefaultConfig returns the standard four-nation rule set. Each call returns
// a fresh value.
func DefaultConfig() Config {
	return Config{
		MaxRounds:         10,
		Teams:             []Team{"US", "China", "France", "Russia"},
		Techs:             []Tier{TierL, TierM, TierH},
		GDPWeightExponent: 0.2,
		PopWeightExponent: 0.2,
		GDPBaseline:       4,
		InitByTeam: map[Team]TeamInit{
			"US":     {GDP: 26000, POP: 330, SE: 2, TE: 4, IM: 1, Regime: RegimeDemo},
			"China":  {GDP: 17500, POP: 1400, SE: 4, TE: 3, IM: 0, Regime: RegimeAuto},
			"France": {GDP: 3000, POP: 67, SE: 4, TE: 2, IM: 1, Regime: RegimeDemo},
			"Russia": {GDP: 2200, POP: 146, SE: 3, TE: 2, IM: 0, Regime: RegimeAuto},
		},
		TPThreshold: map[Tier]int{TierL: 10, TierM: 20, TierH: 40},
		MinRequirements: map[Tier]Requirement{
			TierM: {KMin: 7},
			TierH: {KMin: 12, TKMin: 20},
		},
		TechInfo: map[Tier]TierInfo{
			TierL: {BRReq: 0, ARThr: 2, Draw: dice.TwoOutcome{Low: 1, High: 2, Curve: dice.Constant(0.75)}},
			TierM: {BRReq: 8, ARThr: 4, Draw: dice.TwoOutcome{Low: 2, High: 6, Curve: dice.Curve{Base: 0.3, Max: 0.9, Ref: 15}}},
			TierH: {BRReq: 20, ARThr: 6, Draw: dice.TwoOutcome{Low: 1, High: 36, Curve: dice.Curve{Base: 0.05, Max: 0.7, Ref: 40}}},
		},
		DiscoveryTK: map[Tier]float64{TierL: 2, TierM: 5, TierH: 10},
		ARSuccessTK: 1,
		ARCost:      CostSchedule{{Units: 2, Cost: 1}, {Units: 2, Cost: 2}, {Units: 0, Cost: 3}},
		Education: Education{
			SEKPerCost:    0.5,
			TEGain:        1,
			TETK:          0.5,
			ImmigrationK:  1,
			InitialKScale: 1,
		},
		BasicResearch:       BasicResearch{Die: dice.D6(4), Spillover: 0.75},
		Espionage:           Espionage{Die: dice.D6(4), TKTransfer: 1},
		CarryFraction:       0.5,
		AnnounceDiscoveries: true,
	}
}

// HasTeam reports whether t plays in this game.
func (c Config) HasTeam(t Team) bool {
	for _, x := range c.Teams {
		if x == t {
			return true
		}
	}
	return false
}

// HasTier reports whether tier is researchable in this game.
func (c Config) HasTier(tier Tier) bool {
	for _, x := range c.Techs {
		if x == tier {
			return true
		}
	}
	return false
}

// Validate checks the rule set is internally consistent.
func (c Config) Validate() error {
	var errs []string
	bad := func(format string, args ...any) { errs = append(errs, fmt.Sprintf(format, args...)) }
	finite := func(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

	if c.MaxRounds < 1 {
		bad("max_rounds must be >= 1")
	}
	if len(c.Teams) == 0 {
		bad("teams must not be empty")
	}
	seen := map[Team]bool{}
	for _, t := range c.Teams {
		if t == "" || Role(t) == RoleGM {
			bad("team name %q is reserved", t)
		}
		if seen[t] {
			bad("team %q listed twice", t)
		}
		seen[t] = true
		init, ok := c.InitByTeam[t]
		if !ok {
			bad("init_by_team.%s missing", t)
			continue
		}
		if !(init.GDP >= 0) || !(init.POP >= 0) || !finite(init.GDP) || !finite(init.POP) {
			bad("init_by_team.%s: GDP and POP must be finite and >= 0", t)
		}
		if init.IM != 0 && init.IM != 1 {
			bad("init_by_team.%s.IM must be 0 or 1", t)
		}
		if init.SE < 0 || init.TE < 0 {
			bad("init_by_team.%s: SE and TE must be >= 0", t)
		}
	}

	if len(c.Techs) == 0 {
		bad("techs must not be empty")
	}
	seenTier := map[Tier]bool{}
	for _, tier := range c.Techs {
		if seenTier[tier] {
			bad("tech %q listed twice", tier)
		}
		seenTier[tier] = true
		info, ok := c.TechInfo[tier]
		if !ok {
			bad("tech_info.%s missing", tier)
			continue
		}
		if err := info.Draw.Validate(); err != nil {
			bad("tech_info.%s.draw: %v", tier, err)
		}
		if info.BRReq < 0 || !finite(info.BRReq) {
			bad("tech_info.%s.br_req must be >= 0", tier)
		}
		if c.TPThreshold[tier] <= 0 {
			bad("tp_threshold.%s must be > 0", tier)
		}
	}

	if !finite(c.GDPWeightExponent) || !finite(c.PopWeightExponent) {
		bad("weight exponents must be finite")
	}
	if !(c.GDPBaseline > 0) || !finite(c.GDPBaseline) {
		bad("gdp_baseline must be > 0")
	}
	if c.BasicResearch.Spillover < 0 || c.BasicResearch.Spillover > 1 {
		bad("basic_research.spillover must be in [0,1]")
	}
	if err := c.BasicResearch.Die.Validate(); err != nil {
		bad("basic_research.die: %v", err)
	}
	if err := c.Espionage.Die.Validate(); err != nil {
		bad("espionage.die: %v", err)
	}
	if c.Espionage.TKTransfer < 0 {
		bad("espionage.tk_transfer must be >= 0")
	}
	if c.CarryFraction < 0 || c.CarryFraction > 1 {
		bad("carry_fraction must be in [0,1]")
	}
	if c.ARSuccessTK < 0 {
		bad("ar_success_tk must be >= 0")
	}
	for tier, v := range c.DiscoveryTK {
		if v < 0 {
			bad("discovery_tk.%s must be >= 0", tier)
		}
	}
	ed := c.Education
	if ed.SEKPerCost < 0 || ed.TEGain < 0 || ed.TETK < 0 || ed.ImmigrationK < 0 || ed.InitialKScale < 0 {
		bad("education parameters must be >= 0")
	}
	if len(c.ARCost) == 0 {
		bad("ar_cost must have at least one step")
	}
	for i, st := range c.ARCost {
		if st.Cost < 0 || st.Units < 0 {
			bad("ar_cost[%d]: units and cost must be >= 0", i)
		}
		if st.Units == 0 && i != len(c.ARCost)-1 {
			bad("ar_cost[%d]: only the last step may be unbounded", i)
		}
	}

	if len(errs) > 0 {
		return wrap(CodeInvalidConfig, "config validation failed", errors.New(strings.Join(errs, "; ")))
	}
	return nil
}
