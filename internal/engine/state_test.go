package engine_test

import (
	"errors"
	"testing"

	"github.com/xtding233/techrace-backend/internal/engine"
)

func TestNewGame(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	if g.Round != 1 || !g.GameReady || g.RoundResolved || g.Concluded {
		t.Fatalf("bad initial flags: %+v", g)
	}
	us := g.Teams["US"]
	if us.W != 6 || us.K != 6 || us.CarryFraction != 0.5 {
		t.Fatalf("US W=%d K=%v carry=%v", us.W, us.K, us.CarryFraction)
	}
	if us.SpyRevealed["China"] == nil || us.SpyCaughtCount["Russia"] == nil {
		t.Fatalf("spy maps not initialized")
	}
	if got := engine.Missing(g, cfg); len(got) != 4 {
		t.Fatalf("missing=%v", got)
	}
}

func TestSubmit(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	alloc := &engine.Allocation{BR: 1, AR: map[engine.Tier]int{engine.TierL: 1}}
	if err := engine.Submit(g, cfg, "US", alloc); err != nil {
		t.Fatal(err)
	}
	alloc.AR[engine.TierL] = 9
	if g.Submissions["US"].AR[engine.TierL] != 1 {
		t.Fatalf("submission shares memory with caller")
	}
	if !g.Teams["US"].Submitted {
		t.Fatalf("submitted flag not set")
	}

	// last write wins
	if err := engine.Submit(g, cfg, "US", &engine.Allocation{BR: 2}); err != nil {
		t.Fatal(err)
	}
	if g.Submissions["US"].BR != 2 {
		t.Fatalf("BR=%d", g.Submissions["US"].BR)
	}

	if err := engine.Submit(g, cfg, "Atlantis", &engine.Allocation{}); !errors.Is(err, engine.ErrUnknownTeam) {
		t.Fatalf("want unknown team, got %v", err)
	}
	if err := engine.Submit(g, cfg, "US", &engine.Allocation{BR: -1}); !errors.Is(err, engine.ErrInvalidAllocation) {
		t.Fatalf("want invalid allocation, got %v", err)
	}
	if got := engine.Missing(g, cfg); len(got) != 3 || got[0] != "China" {
		t.Fatalf("missing=%v", got)
	}
}

func TestOpenRound(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	submitAll(t, g, cfg, nil)
	next := resolve(t, g, cfg)
	if err := engine.OpenRound(next, cfg); err != nil {
		t.Fatal(err)
	}
	if next.RoundResolved || next.Status() != engine.StatusAwaitingSubmissions {
		t.Fatalf("round not reopened")
	}
	if _, err := engine.ResolveRound(next, cfg); err != nil {
		t.Fatalf("resolve after open: %v", err)
	}
}

func TestCheckStateNil(t *testing.T) {
	cfg := engine.DefaultConfig()
	if _, err := engine.ResolveRound(nil, cfg); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("want invalid state, got %v", err)
	}
	g := newGame(t, cfg)
	delete(g.Teams, "France")
	if _, err := engine.ValidateAllocation("US", &engine.Allocation{}, g, cfg); !errors.Is(err, engine.ErrInvalidState) {
		t.Fatalf("want invalid state, got %v", err)
	}
}

func TestErrorCodes(t *testing.T) {
	err := engine.Submit(nil, engine.DefaultConfig(), "US", nil)
	if engine.CodeOf(err) != engine.CodeInvalidState {
		t.Fatalf("code=%q", engine.CodeOf(err))
	}
	if engine.CodeOf(errors.New("plain")) != "" {
		t.Fatalf("plain errors have no code")
	}
}
