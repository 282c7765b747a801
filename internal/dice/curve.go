package dice

import (
	"errors"
	"math"
)

// Easing specifies how the high-outcome probability ramps as knowledge
// approaches the reference level.
type Easing string

const (
	EaseLinear     Easing = "linear"
	EaseOutQuad    Easing = "easeOutQuad"
	EaseInOutCubic Easing = "easeInOutCubic"
)

var ErrCurveConfig = errors.New("invalid probability curve")

// Curve maps technical knowledge to the probability of the high outcome.
// Example: Base=0.3, Max=0.9, Ref=15 → TK 0 gives 0.3, TK 7.5 gives 0.6, TK >= 15 gives 0.9.
type Curve struct {
	Base   float64 `json:"base_p" yaml:"base_p"`
	Max    float64 `json:"max_p" yaml:"max_p"`
	Ref    float64 `json:"tk_ref" yaml:"tk_ref"` // <= 0 means constant at Base
	Easing Easing  `json:"easing,omitempty" yaml:"easing,omitempty"`
}

// Constant returns a curve that ignores knowledge.
func Constant(p float64) Curve {
	return Curve{Base: p, Max: p}
}

// Validate checks both ends are probabilities and the ramp does not go down.
func (c Curve) Validate() error {
	if validateProb(c.Base) != nil || validateProb(c.Max) != nil {
		return ErrCurveConfig
	}
	if c.Max < c.Base {
		return ErrCurveConfig
	}
	if math.IsNaN(c.Ref) || math.IsInf(c.Ref, 0) {
		return ErrCurveConfig
	}
	switch c.Easing {
	case "", EaseLinear, EaseOutQuad, EaseInOutCubic:
	default:
		return ErrCurveConfig
	}
	return nil
}

// Prob computes p = Base + (Max-Base) * ease(min(tk/Ref, 1)), clamped to [0,1].
func (c Curve) Prob(tk float64) float64 {
	if c.Ref <= 0 || c.Max == c.Base {
		return clamp01(c.Base)
	}
	t := tk / c.Ref
	if t < 0 || math.IsNaN(t) {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	switch c.Easing {
	case EaseOutQuad:
		// f(t) = 1 - (1 - t)^2
		t = 1 - (1-t)*(1-t)
	case EaseInOutCubic:
		if t < 0.5 {
			t = 4 * t * t * t
		} else {
			t = 1 - (-2*t+2)*(-2*t+2)*(-2*t+2)/2
		}
	default:
		// linear
	}
	return clamp01(c.Base + (c.Max-c.Base)*t)
}

func clamp01(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}
