package engine

import (
	"fmt"

	"github.com/xtding233/techrace-backend/internal/dice"
)

// round carries the scratch state of one resolution. Teams are always
// visited in roster order so cross-team effects never depend on who
// submitted first.
type round struct {
	e   *Engine
	cfg Config
	g   *GameState
	n   int
	log *logBook

	before   map[Team]*TeamState
	allocs   map[Team]*Allocation
	accepted map[Team]bool
	budgets  map[Team]Budget
	rolls    map[Team]*Rolls
	rng      map[Team]dice.RandomSource
}

func (e *Engine) newRound(g *GameState) *round {
	cfg := e.cfg
	r := &round{
		e:        e,
		cfg:      cfg,
		g:        g,
		n:        g.Round,
		log:      newLogBook(g.Round),
		before:   cloneTeams(g.Teams),
		allocs:   make(map[Team]*Allocation, len(cfg.Teams)),
		accepted: make(map[Team]bool, len(cfg.Teams)),
		budgets:  make(map[Team]Budget, len(cfg.Teams)),
		rolls:    make(map[Team]*Rolls, len(cfg.Teams)),
		rng:      make(map[Team]dice.RandomSource, len(cfg.Teams)),
	}
	if g.Submissions == nil {
		g.Submissions = map[Team]*Allocation{}
	}
	if g.GlobalBRPool == nil {
		g.GlobalBRPool = map[Tier]int{}
	}
	for _, t := range cfg.Teams {
		fillTeamMaps(cfg, g.Teams[t])
		r.rolls[t] = &Rolls{AR: map[Tier][]int{}}
		src := e.sources(g.Round, t)
		if src == nil {
			src = dice.DefaultRNG()
		}
		r.rng[t] = src
	}
	return r
}

// fillTeamMaps makes a snapshot from an older or hand-written source safe to write to.
func fillTeamMaps(cfg Config, s *TeamState) {
	if s.TP == nil {
		s.TP = map[Tier]int{}
	}
	if s.TPLastRound == nil {
		s.TPLastRound = map[Tier]int{}
	}
	if s.Discovered == nil {
		s.Discovered = map[Tier]bool{}
	}
	if s.SpyRevealed == nil {
		s.SpyRevealed = map[Team]map[Tier]bool{}
	}
	if s.SpyCaughtCount == nil {
		s.SpyCaughtCount = map[Team]map[Tier]int{}
	}
	for _, target := range cfg.Teams {
		if s.SpyRevealed[target] == nil {
			s.SpyRevealed[target] = map[Tier]bool{}
		}
		if s.SpyCaughtCount[target] == nil {
			s.SpyCaughtCount[target] = map[Tier]int{}
		}
	}
}

func (r *round) run() error {
	r.weights()
	r.validate()
	r.education()
	r.basicResearch()
	r.effectiveBR()
	if err := r.appliedResearch(); err != nil {
		return err
	}
	r.espionage()
	r.carryover()
	r.finish()
	return nil
}

func (r *round) diceLog(t Team, e DiceLogEntry) {
	e.Round = r.n
	s := r.g.Teams[t]
	s.DiceLog = append(s.DiceLog, e)
}

// weights recomputes W and PW for everyone before any team acts.
func (r *round) weights() {
	applyWeights(r.cfg, r.g.Teams)
}

// validate accepts or rejects each allocation as a whole. A missing
// allocation abstains.
func (r *round) validate() {
	for _, t := range r.cfg.Teams {
		s := r.g.Teams[t]
		alloc := r.g.Submissions[t]
		if alloc == nil {
			alloc = &Allocation{}
		}
		r.allocs[t] = alloc

		if err := CheckAllocation(r.cfg, t, alloc); err != nil {
			r.reject(t, err.Error())
			continue
		}
		b := ValidateBudget(s.W, s.PendingWCarryover, alloc, s.POP, r.g.Teams, r.cfg.ARCost)
		r.budgets[t] = b
		if !b.OK {
			r.reject(t, fmt.Sprintf("budget exceeded: used %d of %d", b.Used, b.Budget))
			continue
		}
		r.accepted[t] = true
	}
}

func (r *round) reject(t Team, reason string) {
	r.log.Private(t, "Allocation rejected: %s", reason)
	r.diceLog(t, DiceLogEntry{Phase: PhaseReject, SPResult: reason})
}

// education applies schooling and immigration. Immigration weights are read
// from every team before anyone's TE changes.
func (r *round) education() {
	teams := r.cfg.Teams
	w := make([]int, len(teams))
	te := make([]int, len(teams))
	nextIM := make([]int, len(teams))
	for i, t := range teams {
		s := r.g.Teams[t]
		w[i], te[i], nextIM[i] = s.W, s.TE, s.IM
		if !r.accepted[t] {
			continue
		}
		switch r.allocs[t].IM {
		case StanceOpen:
			nextIM[i] = 1
		case StanceClose:
			nextIM[i] = 0
		}
	}
	imw := ImmigrationWeights(w, te, nextIM)

	ed := r.cfg.Education
	for i, t := range teams {
		if !r.accepted[t] {
			continue
		}
		s, a := r.g.Teams[t], r.allocs[t]
		var dK, dTK float64
		dIM := nextIM[i] - s.IM
		if a.SE > 0 {
			dK += ed.SEKPerCost * float64(s.SE) * float64(r.budgets[t].Costs.SE)
		}
		if a.TE > 0 {
			s.TE += ed.TEGain
			dTK += ed.TETK * float64(s.TE)
		}
		if a.IM == StanceOpen {
			dK += ed.ImmigrationK * imw[i]
		}
		s.IM = nextIM[i]
		s.K += dK
		s.TK += dTK

		if a.SE == 0 && a.TE == 0 && dIM == 0 && dK == 0 {
			continue
		}
		r.diceLog(t, DiceLogEntry{Phase: PhaseEducation, DeltaK: dK, DeltaTK: dTK, DeltaIM: dIM})
		r.log.Private(t, "Education: K %+.2f, TK %+.2f, TE %d, borders %s", dK, dTK, s.TE, borders(s.IM))
	}
}

func borders(im int) string {
	if im == 1 {
		return "open"
	}
	return "closed"
}

// frontier is the lowest tier the team has not discovered yet.
func frontier(cfg Config, s *TeamState) Tier {
	for _, tier := range cfg.Techs {
		if !s.Discovered[tier] {
			return tier
		}
	}
	return cfg.Techs[len(cfg.Techs)-1]
}

// basicResearch rolls BR dice and credits successes to the shared pool.
func (r *round) basicResearch() {
	die := r.cfg.BasicResearch.Die
	for _, t := range r.cfg.Teams {
		s := r.g.Teams[t]
		s.BRSucc = 0
		if !r.accepted[t] || r.allocs[t].BR <= 0 {
			continue
		}
		n := r.allocs[t].BR
		front := frontier(r.cfg, s)
		rolls := die.Roll(n, r.rng[t])
		succ := 0
		for _, v := range rolls {
			if r.e.brSuccess(v, front) {
				succ++
			}
		}
		s.BRSucc = succ
		s.BRTotal += succ
		r.g.GlobalBRPool[front] += succ
		r.rolls[t].BR = rolls
		r.diceLog(t, DiceLogEntry{Phase: PhaseBasic, Tech: front, Rolls: rolls})
		r.log.Private(t, "Basic research: %d of %d dice succeeded (tier %s)", succ, n, front)
	}
}

// effectiveBR leaks a share of every rival's basic research to each team.
func (r *round) effectiveBR() {
	total := 0
	for _, t := range r.cfg.Teams {
		total += r.g.Teams[t].BRTotal
	}
	spill := r.cfg.BasicResearch.Spillover
	for _, t := range r.cfg.Teams {
		s := r.g.Teams[t]
		s.BREffective = float64(s.BRTotal) + spill*float64(total-s.BRTotal)
	}
}

// appliedResearch turns AR dice into technology points and checks discoveries.
// Every tier is drawn at the knowledge the team had when the phase began.
func (r *round) appliedResearch() error {
	for _, t := range r.cfg.Teams {
		s := r.g.Teams[t]
		s.TPLastRound = cloneMap(s.TP)
		if r.accepted[t] {
			tk := s.TK
			for _, tier := range r.cfg.Techs {
				n := r.allocs[t].AR[tier]
				if n <= 0 {
					continue
				}
				info := r.cfg.TechInfo[tier]
				if s.BREffective < info.BRReq {
					r.diceLog(t, DiceLogEntry{Phase: PhaseApplied, Tech: tier})
					r.log.Private(t, "Applied research in %s produced nothing: basic research %.2f below %.2f", tier, s.BREffective, info.BRReq)
					continue
				}
				rolls, err := info.Draw.Roll(n, tk, r.rng[t])
				if err != nil {
					return wrap(CodeInvalidConfig, fmt.Sprintf("draw tier %s", tier), err)
				}
				gain := dice.Sum(rolls)
				succ := 0
				for _, v := range rolls {
					if v >= info.ARThr {
						succ++
					}
				}
				dTK := r.cfg.ARSuccessTK * float64(succ)
				s.TP[tier] += gain
				s.TK += dTK
				r.rolls[t].AR[tier] = rolls
				r.diceLog(t, DiceLogEntry{Phase: PhaseApplied, Tech: tier, Rolls: rolls, DeltaTP: gain, DeltaTK: dTK})
				r.log.Private(t, "Applied research in %s: +%d TP (%d/%d), TK %+.2f", tier, gain, s.TP[tier], r.cfg.TPThreshold[tier], dTK)
			}
		}
		r.discover(t, s)
	}
	return nil
}

// discover flips discovered tiers. A tier stays discovered forever.
func (r *round) discover(t Team, s *TeamState) {
	for _, tier := range r.cfg.Techs {
		threshold := r.cfg.TPThreshold[tier]
		if s.Discovered[tier] || s.TP[tier] < threshold {
			continue
		}
		req := r.cfg.MinRequirements[tier]
		if s.K < req.KMin || s.TK < req.TKMin {
			r.log.Private(t, "Tier %s reached %d TP but needs K >= %.0f and TK >= %.0f", tier, s.TP[tier], req.KMin, req.TKMin)
			continue
		}
		s.Discovered[tier] = true
		boost := r.cfg.DiscoveryTK[tier]
		s.TK += boost
		r.diceLog(t, DiceLogEntry{Phase: PhaseApplied, Tech: tier, DeltaTK: boost, SPResult: "discovered"})
		r.log.Private(t, "Discovered tier %s technology (TK %+.2f)", tier, boost)
		if r.cfg.AnnounceDiscoveries {
			r.log.Public("%s announced a tier %s breakthrough", t, tier)
		}
	}
}
