package engine_test

import (
	"errors"
	"math"
	"testing"

	"github.com/xtding233/techrace-backend/internal/dice"
	"github.com/xtding233/techrace-backend/internal/engine"
)

func TestForecast(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	g.Teams["US"].TP[engine.TierL] = 3
	e, err := engine.New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	f, err := e.Forecast(g, "US", engine.TierL, 4, 20000, dice.NewSeededRNG(8))
	if err != nil {
		t.Fatal(err)
	}
	// 4 * (0.75*2 + 0.25*1)
	if f.Expected != 7 {
		t.Fatalf("expected=%v", f.Expected)
	}
	if math.Abs(f.Stats.Mean-7) > 0.1 {
		t.Fatalf("mean=%v", f.Stats.Mean)
	}
	if f.Remaining != 7 || f.Threshold != 10 || f.PHigh != 0.75 {
		t.Fatalf("forecast=%+v", f)
	}

	if _, err := e.Forecast(g, "US", "X", 1, 0, nil); !errors.Is(err, engine.ErrInvalidAllocation) {
		t.Fatalf("want invalid allocation, got %v", err)
	}
	if _, err := e.Forecast(g, "Nobody", engine.TierL, 1, 0, nil); !errors.Is(err, engine.ErrUnknownTeam) {
		t.Fatalf("want unknown team, got %v", err)
	}
}

func TestForecastLimits(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	e, err := engine.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct{ n, trials int }{
		{math.MaxInt, 1},
		{engine.MaxLineCount + 1, 1},
		{1, engine.MaxForecastTrials + 1},
		{1000, engine.MaxForecastTrials},
	}
	for _, c := range cases {
		if _, err := e.Forecast(g, "US", engine.TierL, c.n, c.trials, dice.NewSeededRNG(1)); !errors.Is(err, engine.ErrInvalidAllocation) {
			t.Fatalf("n=%d trials=%d: want invalid allocation, got %v", c.n, c.trials, err)
		}
	}

	f, err := e.Forecast(g, "US", engine.TierL, engine.MaxLineCount, 1, dice.NewSeededRNG(1))
	if err != nil {
		t.Fatal(err)
	}
	if f.Stats.Trials != 1 || f.Stats.Min < engine.MaxLineCount {
		t.Fatalf("forecast at the limit=%+v", f.Stats)
	}
}

func TestForecastReachProbability(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	g.Teams["US"].TP[engine.TierL] = 9
	e, err := engine.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	f, err := e.Forecast(g, "US", engine.TierL, 1, 500, dice.NewSeededRNG(3))
	if err != nil {
		t.Fatal(err)
	}
	// one L die always yields at least the single point still missing
	if f.Remaining != 1 || f.Stats.PReach != 1 {
		t.Fatalf("forecast=%+v", f)
	}
}
