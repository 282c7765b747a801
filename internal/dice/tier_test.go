package dice

import "testing"

var (
	tierL = TwoOutcome{Low: 1, High: 2, Curve: Constant(0.75)}
	tierM = TwoOutcome{Low: 2, High: 6, Curve: Curve{Base: 0.3, Max: 0.9, Ref: 15}}
	tierH = TwoOutcome{Low: 1, High: 36, Curve: Curve{Base: 0.05, Max: 0.7, Ref: 40}}
)

func TestTierRollValues(t *testing.T) {
	rng := NewSeededRNG(3)
	cases := []struct {
		name string
		tier TwoOutcome
		tk   float64
	}{
		{"L", tierL, 0},
		{"M", tierM, 10},
		{"H", tierH, 25},
	}
	for _, tc := range cases {
		rolls, err := tc.tier.Roll(500, tc.tk, rng)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if len(rolls) != 500 {
			t.Fatalf("%s: expected 500 rolls, got %d", tc.name, len(rolls))
		}
		seenLow, seenHigh := false, false
		for _, v := range rolls {
			switch v {
			case tc.tier.Low:
				seenLow = true
			case tc.tier.High:
				seenHigh = true
			default:
				t.Fatalf("%s: value %d outside {%d,%d}", tc.name, v, tc.tier.Low, tc.tier.High)
			}
		}
		if !seenLow || !seenHigh {
			t.Fatalf("%s: expected both outcomes in 500 rolls", tc.name)
		}
	}
}

func TestTierRollZero(t *testing.T) {
	rolls, err := tierH.Roll(0, 0, nil)
	if err != nil || rolls != nil {
		t.Fatalf("zero dice should roll nothing; got=%v err=%v", rolls, err)
	}
}

func TestTierRollFrequencyTracksKnowledge(t *testing.T) {
	const n = 20000
	count := func(tk float64) int {
		rolls, err := tierM.Roll(n, tk, NewSeededRNG(9))
		if err != nil {
			t.Fatal(err)
		}
		hi := 0
		for _, v := range rolls {
			if v == tierM.High {
				hi++
			}
		}
		return hi
	}
	low, mid, capped := count(0), count(7.5), count(30)
	if !(low < mid && mid < capped) {
		t.Fatalf("high frequency should grow with tk: %d %d %d", low, mid, capped)
	}
	freq := float64(capped) / n
	if diff := freq - 0.9; diff > 0.01 || diff < -0.01 {
		t.Fatalf("capped freq=%f not close to 0.9", freq)
	}
}

func TestDieRoll(t *testing.T) {
	d := D6(4)
	if err := d.Validate(); err != nil {
		t.Fatal(err)
	}
	rolls := d.Roll(1000, NewSeededRNG(5))
	for _, v := range rolls {
		if v < 1 || v > 6 {
			t.Fatalf("d6 produced %d", v)
		}
	}
	if !d.Success(4) || d.Success(3) {
		t.Fatalf("success threshold misapplied")
	}
	if d.P() != 0.5 {
		t.Fatalf("P() = %v, want 0.5", d.P())
	}
	if err := (Die{Sides: 6, SuccessAt: 7}).Validate(); err == nil {
		t.Fatalf("success_at beyond sides must error")
	}
}
