package engine

import "math"

// Normalize raises each value to exponent and rescales so the outputs average
// baseline. Order and length are preserved. A zero value with a positive
// exponent stays zero. If every scaled value is zero the result is all zeros.
func Normalize(values []float64, exponent, baseline float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	sum := 0.0
	for i, v := range values {
		out[i] = math.Pow(v, exponent)
		sum += out[i]
	}
	mean := sum / float64(len(values))
	if mean == 0 || math.IsNaN(mean) || math.IsInf(mean, 0) {
		for i := range out {
			out[i] = 0
		}
		return out
	}
	for i := range out {
		out[i] = baseline * (out[i] / mean)
	}
	return out
}

// rescaleMean divides by the mean so the outputs average 1.
func rescaleMean(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	for i, v := range values {
		if mean == 0 {
			out[i] = 1
			continue
		}
		out[i] = v / mean
	}
	return out
}

// WeightsFromGDP returns the budget weight W per team, always rounded up.
func WeightsFromGDP(gdp []float64, exponent, baseline float64) []int {
	normed := Normalize(gdp, exponent, baseline)
	out := make([]int, len(normed))
	for i, v := range normed {
		out[i] = int(math.Ceil(v))
	}
	return out
}

// PopulationWeights returns population weights averaging 1.
func PopulationWeights(pop []float64, exponent float64) []float64 {
	return Normalize(pop, exponent, 1)
}

// ImmigrationWeights turns education pull (W * TE) into talent-inflow weights.
// Closed borders (IM == 0) are capped at parity before the vector is
// rescaled to average 1. A non-positive average pull gives every team 1.
func ImmigrationWeights(w []int, te []int, im []int) []float64 {
	n := len(w)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	pull := make([]float64, n)
	sum := 0.0
	for i := range w {
		pull[i] = float64(w[i]) * float64(te[i])
		sum += pull[i]
	}
	avg := sum / float64(n)
	if avg <= 0 {
		for i := range out {
			out[i] = 1
		}
		return out
	}
	for i, p := range pull {
		v := p / avg
		if im[i] == 0 {
			v = math.Min(1, v)
		}
		out[i] = v
	}
	return rescaleMean(out)
}

// meanPOP averages population across the given teams.
func meanPOP(teams []Team, states map[Team]*TeamState) float64 {
	if len(teams) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range teams {
		if s := states[t]; s != nil {
			sum += s.POP
		}
	}
	return sum / float64(len(teams))
}
