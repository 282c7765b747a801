package dice

import "errors"

var ErrDieConfig = errors.New("invalid die; need sides > 0 and 1 <= success_at <= sides")

// Die is a fair n-sided die with a success threshold, used for basic research
// and espionage checks.
type Die struct {
	Sides     int `json:"sides" yaml:"sides"`
	SuccessAt int `json:"success_at" yaml:"success_at"`
}

// D6 returns a six-sided die succeeding on success or better.
func D6(success int) Die { return Die{Sides: 6, SuccessAt: success} }

func (d Die) Validate() error {
	if d.Sides <= 0 || d.SuccessAt < 1 || d.SuccessAt > d.Sides {
		return ErrDieConfig
	}
	return nil
}

// RollOne returns a value in [1, Sides].
func (d Die) RollOne(rng RandomSource) int {
	if rng == nil {
		rng = DefaultRNG()
	}
	v := int(rng.Float64()*float64(d.Sides)) + 1
	if v > d.Sides {
		v = d.Sides
	}
	return v
}

// Roll returns n values in [1, Sides].
func (d Die) Roll(n int, rng RandomSource) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	for i := range out {
		out[i] = d.RollOne(rng)
	}
	return out
}

// Success reports whether v meets the threshold.
func (d Die) Success(v int) bool { return v >= d.SuccessAt }

// P returns the probability of a single success.
func (d Die) P() float64 {
	if d.Sides <= 0 {
		return 0
	}
	n := d.Sides - d.SuccessAt + 1
	if n < 0 {
		n = 0
	}
	return float64(n) / float64(d.Sides)
}
