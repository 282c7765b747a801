// resolve.go
package rules

import (
	"fmt"

	"github.com/xtding233/techrace-backend/internal/dice"
	"github.com/xtding233/techrace-backend/internal/engine"
)

// Overrides carries per-game tweaks sent with a create request. They apply
// after default → scenario.
type Overrides struct {
	MaxRounds             *int
	CarryFraction         *float64
	RequireAllSubmissions *bool
	AnnounceDiscoveries   *bool
}

type Resolver interface {
	// Returns merged RawConfig and the validated engine config
	Resolve(scenario string, o Overrides) (RawConfig, engine.Config, error)
}

// FileResolver resolves rule sets through a Loader.
type FileResolver struct {
	loader *Loader
}

func NewResolver(l *Loader) *FileResolver { return &FileResolver{loader: l} }

func (r *FileResolver) Resolve(scenario string, o Overrides) (RawConfig, engine.Config, error) {
	raw, err := r.loader.LoadMerged(scenario)
	if err != nil {
		return RawConfig{}, engine.Config{}, err
	}
	raw = mergeRaw(raw, RawConfig{Game: GameCfg{
		MaxRounds:             o.MaxRounds,
		CarryFraction:         o.CarryFraction,
		RequireAllSubmissions: o.RequireAllSubmissions,
		AnnounceDiscoveries:   o.AnnounceDiscoveries,
	}})
	if err := ValidateRaw(raw); err != nil {
		return raw, engine.Config{}, err
	}
	cfg, err := ToConfig(raw)
	if err != nil {
		return raw, engine.Config{}, err
	}
	return raw, cfg, nil
}

// ToConfig lays raw over engine.DefaultConfig and validates the result.
func ToConfig(raw RawConfig) (engine.Config, error) {
	cfg := engine.DefaultConfig()

	set(&cfg.MaxRounds, raw.Game.MaxRounds)
	set(&cfg.CarryFraction, raw.Game.CarryFraction)
	set(&cfg.RequireAllSubmissions, raw.Game.RequireAllSubmissions)
	set(&cfg.AnnounceDiscoveries, raw.Game.AnnounceDiscoveries)

	if w := raw.Weights; w != nil {
		set(&cfg.GDPWeightExponent, w.GDPExponent)
		set(&cfg.PopWeightExponent, w.PopExponent)
		set(&cfg.GDPBaseline, w.GDPBaseline)
	}

	if len(raw.Teams) > 0 {
		cfg.Teams = make([]engine.Team, 0, len(raw.Teams))
		cfg.InitByTeam = make(map[engine.Team]engine.TeamInit, len(raw.Teams))
		for _, t := range raw.Teams {
			name := engine.Team(t.Name)
			cfg.Teams = append(cfg.Teams, name)
			cfg.InitByTeam[name] = engine.TeamInit{
				GDP: t.GDP, POP: t.POP, SE: t.SE, TE: t.TE, IM: t.IM,
				Regime: engine.Regime(t.Regime),
			}
		}
	}

	if len(raw.Techs) > 0 {
		applyTechs(&cfg, raw.Techs)
	}

	if r := raw.Research; r != nil {
		set(&cfg.ARSuccessTK, r.ARSuccessTK)
		set(&cfg.BasicResearch.Spillover, r.Spillover)
		if r.BRDie != nil {
			cfg.BasicResearch.Die = dieOf(r.BRDie)
		}
		if len(r.ARCost) > 0 {
			cfg.ARCost = make(engine.CostSchedule, len(r.ARCost))
			for i, st := range r.ARCost {
				cfg.ARCost[i] = engine.CostStep{Units: st.Units, Cost: st.Cost}
			}
		}
	}

	if e := raw.Education; e != nil {
		set(&cfg.Education.SEKPerCost, e.SEKPerCost)
		set(&cfg.Education.TEGain, e.TEGain)
		set(&cfg.Education.TETK, e.TETK)
		set(&cfg.Education.ImmigrationK, e.ImmigrationK)
		set(&cfg.Education.InitialKScale, e.InitialKScale)
	}

	if e := raw.Espionage; e != nil {
		set(&cfg.Espionage.TKTransfer, e.TKTransfer)
		if e.Die != nil {
			cfg.Espionage.Die = dieOf(e.Die)
		}
	}

	if err := cfg.Validate(); err != nil {
		return engine.Config{}, fmt.Errorf("rules %q: %w", raw.Version, err)
	}
	return cfg, nil
}

// applyTechs replaces the tier list with the configured order. A tier the
// defaults know starts from its default row.
func applyTechs(cfg *engine.Config, techs []TechCfg) {
	cfg.Techs = make([]engine.Tier, 0, len(techs))
	for _, t := range techs {
		tier := engine.Tier(t.Tier)
		cfg.Techs = append(cfg.Techs, tier)

		info := cfg.TechInfo[tier]
		set(&info.BRReq, t.BRReq)
		set(&info.ARThr, t.ARThr)
		set(&info.Draw.Low, t.Low)
		set(&info.Draw.High, t.High)
		set(&info.Draw.Curve.Base, t.BaseP)
		set(&info.Draw.Curve.Max, t.MaxP)
		set(&info.Draw.Curve.Ref, t.TKRef)
		if t.Easing != "" {
			info.Draw.Curve.Easing = dice.Easing(t.Easing)
		}
		cfg.TechInfo[tier] = info

		if t.TPThreshold != nil {
			cfg.TPThreshold[tier] = *t.TPThreshold
		}
		req := cfg.MinRequirements[tier]
		set(&req.KMin, t.KMin)
		set(&req.TKMin, t.TKMin)
		if req != (engine.Requirement{}) {
			cfg.MinRequirements[tier] = req
		}
		if t.DiscoveryTK != nil {
			cfg.DiscoveryTK[tier] = *t.DiscoveryTK
		}
	}
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
