package engine

import "fmt"

// Status is where a game sits in the round cycle.
type Status string

const (
	StatusAwaitingSubmissions Status = "awaiting_submissions"
	StatusResolved            Status = "resolved"
	StatusConcluded           Status = "concluded"
)

// Status derives the cycle state from the snapshot flags.
func (g *GameState) Status() Status {
	switch {
	case g.Concluded:
		return StatusConcluded
	case g.RoundResolved:
		return StatusResolved
	default:
		return StatusAwaitingSubmissions
	}
}

// NewGame builds round 1 from the roster in cfg.
func NewGame(cfg Config) (*GameState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	g := &GameState{
		Round:        1,
		Teams:        make(map[Team]*TeamState, len(cfg.Teams)),
		Submissions:  make(map[Team]*Allocation, len(cfg.Teams)),
		GlobalBRPool: make(map[Tier]int, len(cfg.Techs)),
		PublicLog:    []LogEntry{},
		PrivateLogs:  make(map[Team][]LogEntry, len(cfg.Teams)),
		ActiveUsers:  make(map[Team]bool, len(cfg.Teams)),
		GameReady:    true,
		History:      []RoundHistory{},
	}
	for _, tier := range cfg.Techs {
		g.GlobalBRPool[tier] = 0
	}
	for _, team := range cfg.Teams {
		g.Teams[team] = newTeamState(cfg, cfg.InitByTeam[team])
		g.Submissions[team] = nil
		g.PrivateLogs[team] = []LogEntry{}
		g.ActiveUsers[team] = false
	}
	applyWeights(cfg, g.Teams)
	return g, nil
}

func newTeamState(cfg Config, init TeamInit) *TeamState {
	s := &TeamState{
		GDP:            init.GDP,
		POP:            init.POP,
		SE:             init.SE,
		TE:             init.TE,
		IM:             init.IM,
		Regime:         init.Regime,
		K:              cfg.Education.InitialKScale * float64(init.SE+init.TE),
		TP:             make(map[Tier]int, len(cfg.Techs)),
		TPLastRound:    make(map[Tier]int, len(cfg.Techs)),
		Discovered:     make(map[Tier]bool, len(cfg.Techs)),
		SpyRevealed:    make(map[Team]map[Tier]bool, len(cfg.Teams)),
		SpyCaughtCount: make(map[Team]map[Tier]int, len(cfg.Teams)),
		RollsSaved:     Rolls{AR: map[Tier][]int{}},
		DiceLog:        []DiceLogEntry{},
		CarryFraction:  cfg.CarryFraction,
	}
	for _, tier := range cfg.Techs {
		s.TP[tier] = 0
		s.TPLastRound[tier] = 0
		s.Discovered[tier] = false
	}
	for _, target := range cfg.Teams {
		s.SpyRevealed[target] = make(map[Tier]bool, len(cfg.Techs))
		s.SpyCaughtCount[target] = make(map[Tier]int, len(cfg.Techs))
		for _, tier := range cfg.Techs {
			s.SpyRevealed[target][tier] = false
			s.SpyCaughtCount[target][tier] = 0
		}
	}
	return s
}

// weightsFor computes W and PW for every configured team in one pass.
func weightsFor(cfg Config, teams map[Team]*TeamState) (map[Team]int, map[Team]float64) {
	gdp := make([]float64, len(cfg.Teams))
	pop := make([]float64, len(cfg.Teams))
	for i, t := range cfg.Teams {
		gdp[i] = teams[t].GDP
		pop[i] = teams[t].POP
	}
	w := WeightsFromGDP(gdp, cfg.GDPWeightExponent, cfg.GDPBaseline)
	pw := PopulationWeights(pop, cfg.PopWeightExponent)
	wm := make(map[Team]int, len(cfg.Teams))
	pm := make(map[Team]float64, len(cfg.Teams))
	for i, t := range cfg.Teams {
		wm[t] = w[i]
		pm[t] = pw[i]
	}
	return wm, pm
}

// applyWeights recomputes W and PW for every team from GDP and POP.
func applyWeights(cfg Config, teams map[Team]*TeamState) {
	w, pw := weightsFor(cfg, teams)
	for _, t := range cfg.Teams {
		teams[t].W = w[t]
		teams[t].PW = pw[t]
	}
}

// checkState makes sure every configured team has a record.
func checkState(cfg Config, g *GameState) error {
	if g == nil {
		return newError(CodeInvalidState, "game state is nil")
	}
	for _, t := range cfg.Teams {
		if g.Teams[t] == nil {
			return withMetadata(CodeInvalidState, fmt.Sprintf("team %s has no state", t), map[string]string{"team": string(t)})
		}
	}
	return nil
}

// Submit records team's allocation for the current round, replacing any
// earlier one, and opens the submission cycle. It mutates g in place; the
// caller serializes access per game.
func Submit(g *GameState, cfg Config, team Team, alloc *Allocation) error {
	if err := checkState(cfg, g); err != nil {
		return err
	}
	if g.Concluded || g.Round > cfg.MaxRounds {
		return ErrPostMaxRounds
	}
	if !cfg.HasTeam(team) {
		return withMetadata(CodeUnknownTeam, fmt.Sprintf("unknown team %q", team), map[string]string{"team": string(team)})
	}
	if alloc == nil {
		alloc = &Allocation{}
	}
	if err := CheckAllocation(cfg, team, alloc); err != nil {
		return err
	}
	if g.Submissions == nil {
		g.Submissions = map[Team]*Allocation{}
	}
	g.Submissions[team] = alloc.Clone()
	g.Teams[team].Submitted = true
	g.RoundResolved = false
	return nil
}

// OpenRound starts the next submission cycle without a submission.
func OpenRound(g *GameState, cfg Config) error {
	if err := checkState(cfg, g); err != nil {
		return err
	}
	if g.Concluded || g.Round > cfg.MaxRounds {
		return ErrPostMaxRounds
	}
	g.RoundResolved = false
	return nil
}

// Missing lists teams without a submission, in roster order.
func Missing(g *GameState, cfg Config) []Team {
	var out []Team
	for _, t := range cfg.Teams {
		if g.Submissions[t] == nil {
			out = append(out, t)
		}
	}
	return out
}
