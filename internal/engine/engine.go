package engine

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xtding233/techrace-backend/internal/dice"
)

// SourceFunc hands out the random source for one team in one round. Sources
// must not be shared between teams.
type SourceFunc func(round int, team Team) dice.RandomSource

// BRPredicate decides whether a basic-research roll succeeds. tier is the
// research frontier the success will be credited to.
type BRPredicate func(roll int, tier Tier) bool

// Engine resolves rounds under one immutable Config.
type Engine struct {
	cfg       Config
	sources   SourceFunc
	brSuccess BRPredicate
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSources overrides where dice come from.
func WithSources(f SourceFunc) Option {
	return func(e *Engine) { e.sources = f }
}

// WithSeed makes every roll reproducible: each (round, team) pair gets its
// own PCG stream derived from seed.
func WithSeed(seed uint64) Option {
	return WithSources(func(round int, team Team) dice.RandomSource {
		return dice.NewSeededRNG(dice.DeriveSeed(seed, strconv.Itoa(round), string(team)))
	})
}

// WithBRSuccess replaces the basic-research success rule.
func WithBRSuccess(p BRPredicate) Option {
	return func(e *Engine) { e.brSuccess = p }
}

// New validates cfg and returns an engine for it.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.sources == nil {
		e.sources = func(int, Team) dice.RandomSource { return dice.DefaultRNG() }
	}
	if e.brSuccess == nil {
		die := cfg.BasicResearch.Die
		e.brSuccess = func(roll int, _ Tier) bool { return die.Success(roll) }
	}
	return e, nil
}

// Config returns the engine's rule set.
func (e *Engine) Config() Config { return e.cfg }

// ResolveOptions tunes a single resolution.
type ResolveOptions struct {
	// Force lets the game master resolve with missing submissions even when
	// the rules require every team.
	Force bool
}

// Resolve returns the snapshot after resolving the current round. prev is
// never modified; on error it is exactly as it was.
func (e *Engine) Resolve(prev *GameState, opts ResolveOptions) (*GameState, error) {
	if err := checkState(e.cfg, prev); err != nil {
		return nil, err
	}
	if prev.Concluded || prev.Round > e.cfg.MaxRounds {
		return nil, withMetadata(CodePostMaxRounds,
			fmt.Sprintf("game concluded after round %d", e.cfg.MaxRounds),
			map[string]string{"round": strconv.Itoa(prev.Round)})
	}
	if prev.RoundResolved {
		return nil, withMetadata(CodeAlreadyResolved,
			fmt.Sprintf("round %d already resolved; round %d has not been opened", prev.Round-1, prev.Round),
			map[string]string{"round": strconv.Itoa(prev.Round - 1)})
	}
	if missing := Missing(prev, e.cfg); len(missing) > 0 && e.cfg.RequireAllSubmissions && !opts.Force {
		names := make([]string, len(missing))
		for i, t := range missing {
			names[i] = string(t)
		}
		return nil, withMetadata(CodeIncompleteSubmissions,
			fmt.Sprintf("waiting on %s", strings.Join(names, ", ")),
			map[string]string{"missing": strings.Join(names, ",")})
	}

	next := prev.Clone()
	r := e.newRound(next)
	if err := r.run(); err != nil {
		return nil, err
	}
	return next, nil
}

// ResolveRound resolves the current round of g under cfg.
func ResolveRound(g *GameState, cfg Config, opts ...Option) (*GameState, error) {
	e, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return e.Resolve(g, ResolveOptions{})
}

// Validate prices alloc for team against this round's weights.
func (e *Engine) Validate(team Team, alloc *Allocation, g *GameState) (Budget, error) {
	return ValidateAllocation(team, alloc, g, e.cfg)
}

// ValidateAllocation gives pre-submission feedback. W is recomputed jointly
// for all teams, exactly as resolution will do.
func ValidateAllocation(team Team, alloc *Allocation, g *GameState, cfg Config) (Budget, error) {
	if err := checkState(cfg, g); err != nil {
		return Budget{}, err
	}
	if !cfg.HasTeam(team) {
		return Budget{}, withMetadata(CodeUnknownTeam, fmt.Sprintf("unknown team %q", team), map[string]string{"team": string(team)})
	}
	if err := CheckAllocation(cfg, team, alloc); err != nil {
		return Budget{}, err
	}
	w, _ := weightsFor(cfg, g.Teams)
	s := g.Teams[team]
	return ValidateBudget(w[team], s.PendingWCarryover, alloc, s.POP, g.Teams, cfg.ARCost), nil
}
