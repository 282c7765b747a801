package engine

import (
	"fmt"

	"github.com/xtding233/techrace-backend/internal/dice"
)

// Forecast is the Monte Carlo outlook for buying n applied-research dice in
// one tier at the team's current TK.
type Forecast struct {
	Tier      Tier       `json:"tier"`
	Dice      int        `json:"dice"`
	TK        float64    `json:"tk"`
	PHigh     float64    `json:"p_high"`
	Expected  float64    `json:"expected"`
	Stats     dice.Stats `json:"stats"`
	Threshold int        `json:"threshold"`
	Remaining int        `json:"remaining"` // TP still missing for discovery
}

const (
	// DefaultForecastTrials is used when Forecast is asked for zero trials.
	DefaultForecastTrials = 2000
	// MaxForecastTrials bounds a single forecast.
	MaxForecastTrials = 100_000
	// MaxForecastDraws bounds dice times trials.
	MaxForecastDraws = 10_000_000
)

// Forecast estimates the TP gain of n AR dice in tier for team. It reads g
// and never changes it.
func (e *Engine) Forecast(g *GameState, team Team, tier Tier, n, trials int, rng dice.RandomSource) (Forecast, error) {
	if err := checkState(e.cfg, g); err != nil {
		return Forecast{}, err
	}
	if !e.cfg.HasTeam(team) {
		return Forecast{}, withMetadata(CodeUnknownTeam, fmt.Sprintf("unknown team %q", team), map[string]string{"team": string(team)})
	}
	if !e.cfg.HasTier(tier) {
		return Forecast{}, withMetadata(CodeInvalidAllocation, fmt.Sprintf("unknown tier %q", tier), map[string]string{"tier": string(tier)})
	}
	if n < 0 || n > MaxLineCount {
		return Forecast{}, withMetadata(CodeInvalidAllocation, fmt.Sprintf("dice must be within 0..%d, got %d", MaxLineCount, n), map[string]string{"tier": string(tier)})
	}
	if trials > MaxForecastTrials {
		return Forecast{}, withMetadata(CodeInvalidAllocation, fmt.Sprintf("trials must be <= %d, got %d", MaxForecastTrials, trials), map[string]string{"tier": string(tier)})
	}
	if trials <= 0 {
		trials = max(min(DefaultForecastTrials, MaxForecastDraws/max(n, 1)), 1)
	}
	if n*trials > MaxForecastDraws {
		return Forecast{}, withMetadata(CodeInvalidAllocation, fmt.Sprintf("%d dice x %d trials exceeds %d draws", n, trials, MaxForecastDraws), map[string]string{"tier": string(tier)})
	}
	s := g.Teams[team]
	draw := e.cfg.TechInfo[tier].Draw
	remaining := max(e.cfg.TPThreshold[tier]-s.TP[tier], 0)
	st, err := dice.Estimate(draw, s.TK, n, trials, remaining, rng)
	if err != nil {
		return Forecast{}, wrap(CodeInvalidConfig, fmt.Sprintf("estimate tier %s", tier), err)
	}
	return Forecast{
		Tier:      tier,
		Dice:      n,
		TK:        s.TK,
		PHigh:     draw.PHigh(s.TK),
		Expected:  dice.Expected(draw, s.TK, n),
		Stats:     st,
		Threshold: e.cfg.TPThreshold[tier],
		Remaining: remaining,
	}, nil
}
