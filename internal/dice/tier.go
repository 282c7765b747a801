package dice

import "errors"

var ErrTierConfig = errors.New("invalid tier draw; need 0 < low <= high")

// TwoOutcome is one row of the per-tier draw table: each die lands on Low or
// High, High with probability Curve.Prob(TK).
type TwoOutcome struct {
	Low   int   `json:"low" yaml:"low"`
	High  int   `json:"high" yaml:"high"`
	Curve Curve `json:"curve" yaml:"curve"`
}

// Validate checks the outcome magnitudes and the curve.
func (t TwoOutcome) Validate() error {
	if t.Low <= 0 || t.High < t.Low {
		return ErrTierConfig
	}
	return t.Curve.Validate()
}

// PHigh returns the high-outcome probability for the given knowledge.
func (t TwoOutcome) PHigh(tk float64) float64 {
	return t.Curve.Prob(tk)
}

// Roll draws n independent dice. Every call draws fresh values from rng.
func (t TwoOutcome) Roll(n int, tk float64, rng RandomSource) ([]int, error) {
	if n <= 0 {
		return nil, nil
	}
	p := t.PHigh(tk)
	out := make([]int, n)
	for i := range out {
		hit, err := Draw(p, rng)
		if err != nil {
			return nil, err
		}
		if hit {
			out[i] = t.High
		} else {
			out[i] = t.Low
		}
	}
	return out, nil
}

// Sum adds up rolled values.
func Sum(rolls []int) int {
	total := 0
	for _, v := range rolls {
		total += v
	}
	return total
}
