package rules

import (
	"fmt"
	"strings"

	"github.com/xtding233/techrace-backend/internal/dice"
	"github.com/xtding233/techrace-backend/internal/engine"
)

// ValidateRaw checks semantic constraints of a RawConfig. Anything left
// unset falls back to the built-in defaults and is not checked here.
func ValidateRaw(cfg RawConfig) error {
	var errs []string

	// game
	if cfg.Game.MaxRounds != nil && *cfg.Game.MaxRounds < 1 {
		errs = append(errs, "game.max_rounds must be >= 1")
	}
	if cfg.Game.CarryFraction != nil {
		if *cfg.Game.CarryFraction < 0 || *cfg.Game.CarryFraction > 1 {
			errs = append(errs, "game.carry_fraction must be in [0,1]")
		}
	}

	// weights
	if cfg.Weights != nil && cfg.Weights.GDPBaseline != nil && *cfg.Weights.GDPBaseline <= 0 {
		errs = append(errs, "weights.gdp_baseline must be > 0")
	}

	// teams
	seen := map[string]bool{}
	for i, t := range cfg.Teams {
		switch {
		case t.Name == "":
			errs = append(errs, fmt.Sprintf("teams[%d].name is required", i))
		case t.Name == string(engine.RoleGM):
			errs = append(errs, fmt.Sprintf("teams[%d].name %q is reserved", i, t.Name))
		case seen[t.Name]:
			errs = append(errs, fmt.Sprintf("teams[%d].name %q is duplicated", i, t.Name))
		}
		seen[t.Name] = true
		if t.GDP < 0 || t.POP < 0 {
			errs = append(errs, fmt.Sprintf("teams[%d]: gdp and pop must be >= 0", i))
		}
		if t.IM != 0 && t.IM != 1 {
			errs = append(errs, fmt.Sprintf("teams[%d].im must be 0 or 1", i))
		}
		switch engine.Regime(t.Regime) {
		case "", engine.RegimeDemo, engine.RegimeAuto:
		default:
			errs = append(errs, fmt.Sprintf("teams[%d].regime must be demo or auto", i))
		}
	}

	// techs
	for i, t := range cfg.Techs {
		if t.Tier == "" {
			errs = append(errs, fmt.Sprintf("techs[%d].tier is required", i))
		}
		if t.TPThreshold != nil && *t.TPThreshold <= 0 {
			errs = append(errs, fmt.Sprintf("techs[%d].tp_threshold must be > 0", i))
		}
		if t.BaseP != nil && (*t.BaseP < 0 || *t.BaseP > 1) {
			errs = append(errs, fmt.Sprintf("techs[%d].base_p must be in [0,1]", i))
		}
		if t.MaxP != nil && (*t.MaxP < 0 || *t.MaxP > 1) {
			errs = append(errs, fmt.Sprintf("techs[%d].max_p must be in [0,1]", i))
		}
		if t.Low != nil && t.High != nil && (*t.Low <= 0 || *t.Low > *t.High) {
			errs = append(errs, fmt.Sprintf("techs[%d]: need 0 < low <= high", i))
		}
		switch dice.Easing(t.Easing) {
		case "", dice.EaseLinear, dice.EaseOutQuad, dice.EaseInOutCubic:
		default:
			errs = append(errs, fmt.Sprintf("techs[%d].easing must be one of: linear, easeOutQuad, easeInOutCubic", i))
		}
	}

	// research
	if r := cfg.Research; r != nil {
		for i, st := range r.ARCost {
			if st.Units < 0 || st.Cost < 0 {
				errs = append(errs, fmt.Sprintf("research.ar_cost[%d]: units and cost must be >= 0", i))
			}
			if st.Units == 0 && i != len(r.ARCost)-1 {
				errs = append(errs, fmt.Sprintf("research.ar_cost[%d]: only the last step may be unbounded", i))
			}
		}
		if r.Spillover != nil && (*r.Spillover < 0 || *r.Spillover > 1) {
			errs = append(errs, "research.spillover must be in [0,1]")
		}
		if r.BRDie != nil && dieOf(r.BRDie).Validate() != nil {
			errs = append(errs, "research.br_die needs sides > 0 and 1 <= success_at <= sides")
		}
	}

	// espionage (optional)
	if e := cfg.Espionage; e != nil {
		if e.Die != nil && dieOf(e.Die).Validate() != nil {
			errs = append(errs, "espionage.die needs sides > 0 and 1 <= success_at <= sides")
		}
		if e.TKTransfer != nil && *e.TKTransfer < 0 {
			errs = append(errs, "espionage.tk_transfer must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func dieOf(d *DieCfg) dice.Die {
	return dice.Die{Sides: d.Sides, SuccessAt: d.SuccessAt}
}
