package dice

import (
	"maps"
	"math"
	"slices"
)

// Stats summarizes the simulated point totals of one purchase.
type Stats struct {
	Trials int     `json:"trials"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	P10    int     `json:"p10"`
	P50    int     `json:"p50"`
	P90    int     `json:"p90"`
	// PReach is the share of trials whose total met the target passed to
	// Estimate.
	PReach float64 `json:"p_reach"`
}

// tally counts how often each total came up. Totals take few distinct
// values, so it stays small however many trials run.
type tally struct {
	counts map[int]int
	n      int
}

func (t *tally) add(v int) {
	t.counts[v]++
	t.n++
}

// stats reads moments and nearest-rank percentiles off the tally.
func (t *tally) stats(target int) Stats {
	if t.n == 0 {
		return Stats{}
	}
	values := slices.Sorted(maps.Keys(t.counts))
	var sum, reached float64
	for _, v := range values {
		c := float64(t.counts[v])
		sum += float64(v) * c
		if v >= target {
			reached += c
		}
	}
	mean := sum / float64(t.n)
	var acc float64
	for _, v := range values {
		d := float64(v) - mean
		acc += d * d * float64(t.counts[v])
	}
	rank := func(p float64) int {
		need := max(int(math.Ceil(p*float64(t.n))), 1)
		seen := 0
		for _, v := range values {
			seen += t.counts[v]
			if seen >= need {
				return v
			}
		}
		return values[len(values)-1]
	}
	return Stats{
		Trials: t.n,
		Mean:   mean,
		StdDev: math.Sqrt(acc / float64(t.n)),
		Min:    values[0],
		Max:    values[len(values)-1],
		P10:    rank(0.10),
		P50:    rank(0.50),
		P90:    rank(0.90),
		PReach: reached / float64(t.n),
	}
}

// Estimate runs trials of rolling n dice of one tier at knowledge tk and
// summarizes the total points per trial. target is the total worth reaching,
// usually the points a team still misses for discovery.
func Estimate(t TwoOutcome, tk float64, n, trials, target int, rng RandomSource) (Stats, error) {
	if trials <= 0 || n <= 0 {
		return Stats{}, nil
	}
	if rng == nil {
		rng = DefaultRNG()
	}
	p := t.PHigh(tk)
	if err := validateProb(p); err != nil {
		return Stats{}, err
	}
	acc := &tally{counts: make(map[int]int)}
	for i := 0; i < trials; i++ {
		total := 0
		for j := 0; j < n; j++ {
			hit, err := Draw(p, rng)
			if err != nil {
				return Stats{}, err
			}
			if hit {
				total += t.High
			} else {
				total += t.Low
			}
		}
		acc.add(total)
	}
	return acc.stats(target), nil
}

// Expected returns the exact expected total for n dice at knowledge tk.
func Expected(t TwoOutcome, tk float64, n int) float64 {
	if n <= 0 {
		return 0
	}
	p := t.PHigh(tk)
	return float64(n) * (p*float64(t.High) + (1-p)*float64(t.Low))
}
