package engine_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/xtding233/techrace-backend/internal/dice"
	"github.com/xtding233/techrace-backend/internal/engine"
)

// fixed always returns the same value, so every die lands the same way.
type fixed float64

func (f fixed) Float64() float64 { return float64(f) }

func withFixed(v float64) engine.Option {
	return engine.WithSources(func(int, engine.Team) dice.RandomSource { return fixed(v) })
}

func newGame(t *testing.T, cfg engine.Config) *engine.GameState {
	t.Helper()
	g, err := engine.NewGame(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func submitAll(t *testing.T, g *engine.GameState, cfg engine.Config, allocs map[engine.Team]*engine.Allocation) {
	t.Helper()
	for _, team := range cfg.Teams {
		a, ok := allocs[team]
		if !ok {
			a = &engine.Allocation{IM: engine.StanceNone}
		}
		if err := engine.Submit(g, cfg, team, a); err != nil {
			t.Fatalf("submit %s: %v", team, err)
		}
	}
}

func resolve(t *testing.T, g *engine.GameState, cfg engine.Config, opts ...engine.Option) *engine.GameState {
	t.Helper()
	next, err := engine.ResolveRound(g, cfg, opts...)
	if err != nil {
		t.Fatalf("resolve round %d: %v", g.Round, err)
	}
	return next
}

func snapshot(t *testing.T, g *engine.GameState) []byte {
	t.Helper()
	b, err := json.Marshal(g)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func hasEntry(entries []engine.LogEntry, substr string) bool {
	for _, e := range entries {
		if strings.Contains(e.Event, substr) {
			return true
		}
	}
	return false
}

func TestResolveZeroAllocations(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	submitAll(t, g, cfg, nil)

	next := resolve(t, g, cfg, engine.WithSeed(1))
	for _, team := range cfg.Teams {
		before, after := g.Teams[team], next.Teams[team]
		if before.K != after.K || before.TK != after.TK {
			t.Fatalf("%s: K/TK changed %v/%v -> %v/%v", team, before.K, before.TK, after.K, after.TK)
		}
		for _, tier := range cfg.Techs {
			if after.TP[tier] != before.TP[tier] {
				t.Fatalf("%s: TP[%s] changed", team, tier)
			}
		}
		if after.Submitted || next.Submissions[team] != nil {
			t.Fatalf("%s: submission not cleared", team)
		}
	}
	if next.Round != 2 || len(next.History) != 1 || !next.RoundResolved {
		t.Fatalf("round=%d history=%d resolved=%v", next.Round, len(next.History), next.RoundResolved)
	}
	if next.Status() != engine.StatusResolved {
		t.Fatalf("status=%s", next.Status())
	}
	if !hasEntry(next.PublicLog, "Round 1 resolved") {
		t.Fatalf("missing round entry in %v", next.PublicLog)
	}
}

func TestResolveRejectsOverBudget(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)

	alloc := &engine.Allocation{BR: 25}
	b, err := engine.ValidateAllocation("US", alloc, g, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if b.OK || b.Used != 25 || b.Budget != 12 {
		t.Fatalf("budget=%+v", b)
	}

	submitAll(t, g, cfg, map[engine.Team]*engine.Allocation{"US": alloc})
	next := resolve(t, g, cfg, engine.WithSeed(7))
	us := next.Teams["US"]
	if us.BRTotal != g.Teams["US"].BRTotal {
		t.Fatalf("BR_total changed after rejection: %d", us.BRTotal)
	}
	if !hasEntry(next.PrivateLogs["US"], "Allocation rejected") {
		t.Fatalf("missing rejection entry: %v", next.PrivateLogs["US"])
	}
	last := us.DiceLog[len(us.DiceLog)-1]
	if last.Phase != engine.PhaseReject {
		t.Fatalf("dice log=%+v", us.DiceLog)
	}
	if us.PendingWCarryover != 0 || us.UnspentDice != 0 {
		t.Fatalf("rejected team banked carryover: %+v", us)
	}
}

func TestResolveTwiceIsRejected(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	submitAll(t, g, cfg, nil)
	next := resolve(t, g, cfg)

	before := snapshot(t, next)
	_, err := engine.ResolveRound(next, cfg)
	if !errors.Is(err, engine.ErrAlreadyResolved) {
		t.Fatalf("want already resolved, got %v", err)
	}
	if after := snapshot(t, next); !bytes.Equal(before, after) {
		t.Fatalf("state changed after rejected resolve")
	}
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	submitAll(t, g, cfg, map[engine.Team]*engine.Allocation{
		"US": {SE: 1, TE: 1, IM: engine.StanceOpen, BR: 2, AR: map[engine.Tier]int{engine.TierL: 2}},
	})
	before := snapshot(t, g)
	resolve(t, g, cfg, engine.WithSeed(3))
	if after := snapshot(t, g); !bytes.Equal(before, after) {
		t.Fatalf("input state was modified")
	}
}

func TestResolveSeededIsDeterministic(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	submitAll(t, g, cfg, map[engine.Team]*engine.Allocation{
		"US":    {BR: 3, AR: map[engine.Tier]int{engine.TierL: 3}},
		"China": {SP: []*engine.SpyAction{{Target: "US", Tech: engine.TierL}}},
	})
	a := resolve(t, g, cfg, engine.WithSeed(99))
	b := resolve(t, g, cfg, engine.WithSeed(99))
	if !bytes.Equal(snapshot(t, a), snapshot(t, b)) {
		t.Fatalf("same seed produced different rounds")
	}
}

func TestResolvePostMaxRounds(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.MaxRounds = 1
	g := newGame(t, cfg)
	submitAll(t, g, cfg, nil)
	next := resolve(t, g, cfg)
	if !next.Concluded || next.Status() != engine.StatusConcluded {
		t.Fatalf("game should be concluded")
	}
	if !hasEntry(next.PublicLog, "Game concluded") {
		t.Fatalf("missing conclusion entry")
	}
	if _, err := engine.ResolveRound(next, cfg); !errors.Is(err, engine.ErrPostMaxRounds) {
		t.Fatalf("want post max rounds, got %v", err)
	}
	if err := engine.OpenRound(next, cfg); !errors.Is(err, engine.ErrPostMaxRounds) {
		t.Fatalf("open after conclusion: %v", err)
	}
	if err := engine.Submit(next, cfg, "US", &engine.Allocation{}); !errors.Is(err, engine.ErrPostMaxRounds) {
		t.Fatalf("submit after conclusion: %v", err)
	}
}

func TestResolveIncompleteSubmissions(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.RequireAllSubmissions = true
	g := newGame(t, cfg)
	if err := engine.Submit(g, cfg, "US", &engine.Allocation{BR: 1}); err != nil {
		t.Fatal(err)
	}
	e, err := engine.New(cfg, engine.WithSeed(5))
	if err != nil {
		t.Fatal(err)
	}
	_, err = e.Resolve(g, engine.ResolveOptions{})
	if !errors.Is(err, engine.ErrIncompleteSubmissions) {
		t.Fatalf("want incomplete submissions, got %v", err)
	}
	var ee *engine.Error
	if !errors.As(err, &ee) || ee.Metadata["missing"] != "China,France,Russia" {
		t.Fatalf("metadata=%v", ee)
	}

	next, err := e.Resolve(g, engine.ResolveOptions{Force: true})
	if err != nil {
		t.Fatalf("forced resolve: %v", err)
	}
	if next.Round != 2 {
		t.Fatalf("round=%d", next.Round)
	}
}

func TestResolveMissingIsAbstain(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	if err := engine.Submit(g, cfg, "France", &engine.Allocation{}); err != nil {
		t.Fatal(err)
	}
	next := resolve(t, g, cfg)
	if next.Teams["US"].K != g.Teams["US"].K {
		t.Fatalf("missing allocation should not change K")
	}
	if next.Teams["US"].PendingWCarryover != 6 {
		t.Fatalf("abstaining team should bank half its budget, got %d", next.Teams["US"].PendingWCarryover)
	}
}

func TestResolveEducation(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	submitAll(t, g, cfg, map[engine.Team]*engine.Allocation{
		"US":     {SE: 1},
		"France": {TE: 1},
		"Russia": {IM: engine.StanceOpen},
		"China":  {IM: engine.StanceClose},
	})
	next := resolve(t, g, cfg)

	// 0.5 * SE(2) * cost(1)
	if got := next.Teams["US"].K - g.Teams["US"].K; got != 1 {
		t.Fatalf("US ΔK=%v want 1", got)
	}
	fr := next.Teams["France"]
	if fr.TE != 3 || fr.TK-g.Teams["France"].TK != 1.5 {
		t.Fatalf("France TE=%d TK=%v", fr.TE, fr.TK)
	}
	ru := next.Teams["Russia"]
	if ru.IM != 1 || ru.K <= g.Teams["Russia"].K {
		t.Fatalf("Russia IM=%d K=%v", ru.IM, ru.K)
	}
	if next.Teams["China"].IM != 0 || next.Teams["China"].K != g.Teams["China"].K {
		t.Fatalf("closing borders should not add K")
	}
}

func TestResolveBasicResearch(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	submitAll(t, g, cfg, map[engine.Team]*engine.Allocation{"US": {BR: 4}})

	always := engine.WithBRSuccess(func(int, engine.Tier) bool { return true })
	next := resolve(t, g, cfg, always)
	us := next.Teams["US"]
	if us.BRSucc != 4 || us.BRTotal != 4 || len(us.RollsSaved.BR) != 4 {
		t.Fatalf("US BR: succ=%d total=%d rolls=%v", us.BRSucc, us.BRTotal, us.RollsSaved.BR)
	}
	if next.GlobalBRPool[engine.TierL] != 4 {
		t.Fatalf("pool=%v", next.GlobalBRPool)
	}
	if us.BREffective != 4 {
		t.Fatalf("US BR_effective=%v", us.BREffective)
	}
	if got := next.Teams["China"].BREffective; got != 3 {
		t.Fatalf("China BR_effective=%v want 3", got)
	}
}

func TestResolveAppliedResearchNeedsBasicResearch(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	submitAll(t, g, cfg, map[engine.Team]*engine.Allocation{"US": {AR: map[engine.Tier]int{engine.TierM: 2}}})
	next := resolve(t, g, cfg, engine.WithSeed(11))
	if next.Teams["US"].TP[engine.TierM] != 0 {
		t.Fatalf("AR produced points without basic research")
	}
	if !hasEntry(next.PrivateLogs["US"], "produced nothing") {
		t.Fatalf("missing explanation: %v", next.PrivateLogs["US"])
	}
}

func TestResolveDiscovery(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	g.Teams["US"].TP[engine.TierL] = 9
	submitAll(t, g, cfg, map[engine.Team]*engine.Allocation{"US": {AR: map[engine.Tier]int{engine.TierL: 1}}})

	// 0.99 never beats p=0.75, so the die shows its low face 1
	next := resolve(t, g, cfg, withFixed(0.99))
	us := next.Teams["US"]
	if us.TP[engine.TierL] != 10 || !us.Discovered[engine.TierL] {
		t.Fatalf("TP=%v discovered=%v", us.TP, us.Discovered)
	}
	if us.TPLastRound[engine.TierL] != 9 {
		t.Fatalf("TP_last_round=%v", us.TPLastRound)
	}
	if us.TK != g.Teams["US"].TK+cfg.DiscoveryTK[engine.TierL] {
		t.Fatalf("TK=%v", us.TK)
	}
	if !hasEntry(next.PublicLog, "breakthrough") {
		t.Fatalf("discovery not announced")
	}

	submitAll(t, next, cfg, nil)
	later := resolve(t, next, cfg, withFixed(0.99))
	if !later.Teams["US"].Discovered[engine.TierL] {
		t.Fatalf("discovery reverted")
	}
}

func TestResolveDiscoveryRequirements(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	// US starts with K 6, below the M requirement of 7
	g.Teams["US"].TP[engine.TierM] = 25
	submitAll(t, g, cfg, nil)
	next := resolve(t, g, cfg)
	if next.Teams["US"].Discovered[engine.TierM] {
		t.Fatalf("M discovered without enough K")
	}
	if !hasEntry(next.PrivateLogs["US"], "needs K") {
		t.Fatalf("missing requirement entry: %v", next.PrivateLogs["US"])
	}
}

func TestResolveEspionage(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	g.Teams["China"].TK = 5
	g.Teams["China"].TP[engine.TierL] = 4
	spy := &engine.Allocation{SP: []*engine.SpyAction{{Target: "China", Tech: engine.TierL}}}
	submitAll(t, g, cfg, map[engine.Team]*engine.Allocation{"US": spy})

	won := resolve(t, g, cfg, withFixed(0.99))
	us := won.Teams["US"]
	if !us.SpyRevealed["China"][engine.TierL] {
		t.Fatalf("success should reveal target")
	}
	if us.TK != cfg.Espionage.TKTransfer {
		t.Fatalf("TK=%v want transfer %v", us.TK, cfg.Espionage.TKTransfer)
	}
	if !hasEntry(won.PrivateLogs["US"], "4/10 TP") {
		t.Fatalf("missing intel: %v", won.PrivateLogs["US"])
	}
	if hasEntry(won.PublicLog, "caught") {
		t.Fatalf("success leaked to public log")
	}

	lost := resolve(t, g, cfg, withFixed(0))
	if got := lost.Teams["US"].SpyCaughtCount["China"][engine.TierL]; got != 1 {
		t.Fatalf("caught count=%d", got)
	}
	if lost.Teams["US"].SpyRevealed["China"][engine.TierL] {
		t.Fatalf("failure revealed target")
	}
	if !hasEntry(lost.PublicLog, "US was caught spying on China") {
		t.Fatalf("failure not public: %v", lost.PublicLog)
	}
}

func TestResolveCarryover(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	submitAll(t, g, cfg, map[engine.Team]*engine.Allocation{"US": {BR: 3}})
	next := resolve(t, g, cfg, engine.WithSeed(2))
	us := next.Teams["US"]
	if us.UnspentDice != 9 || us.PendingWCarryover != 4 || us.LastCarryover != 0 {
		t.Fatalf("unspent=%d pending=%d last=%d", us.UnspentDice, us.PendingWCarryover, us.LastCarryover)
	}

	b, err := engine.ValidateAllocation("US", &engine.Allocation{BR: 16}, next, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if b.Budget != 16 || !b.OK {
		t.Fatalf("budget with carryover=%+v", b)
	}

	submitAll(t, next, cfg, map[engine.Team]*engine.Allocation{"US": {BR: 16}})
	later := resolve(t, next, cfg, engine.WithSeed(2))
	if u := later.Teams["US"]; u.LastCarryover != 4 || u.PendingWCarryover != 0 {
		t.Fatalf("last=%d pending=%d", u.LastCarryover, u.PendingWCarryover)
	}
}

func TestResolveMonotonic(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	plan := func(target engine.Team) *engine.Allocation {
		return &engine.Allocation{
			SE: 1, TE: 1, IM: engine.StanceOpen, BR: 2,
			AR: map[engine.Tier]int{engine.TierL: 1, engine.TierM: 1},
			SP: []*engine.SpyAction{{Target: target, Tech: engine.TierL}},
		}
	}
	e, err := engine.New(cfg, engine.WithSeed(2024))
	if err != nil {
		t.Fatal(err)
	}
	for g.Round <= cfg.MaxRounds {
		submitAll(t, g, cfg, map[engine.Team]*engine.Allocation{
			"US": plan("China"), "China": plan("US"), "France": plan("Russia"), "Russia": plan("France"),
		})
		next, err := e.Resolve(g, engine.ResolveOptions{})
		if err != nil {
			t.Fatal(err)
		}
		for _, team := range cfg.Teams {
			a, b := g.Teams[team], next.Teams[team]
			if b.K < a.K || b.TK < a.TK || b.BRTotal < a.BRTotal {
				t.Fatalf("round %d %s decreased: K %v->%v TK %v->%v BR %d->%d",
					g.Round, team, a.K, b.K, a.TK, b.TK, a.BRTotal, b.BRTotal)
			}
			for _, tier := range cfg.Techs {
				if a.Discovered[tier] && !b.Discovered[tier] {
					t.Fatalf("round %d %s lost tier %s", g.Round, team, tier)
				}
			}
		}
		g = next
	}
	if !g.Concluded || len(g.History) != cfg.MaxRounds {
		t.Fatalf("concluded=%v history=%d", g.Concluded, len(g.History))
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Teams = nil
	if _, err := engine.New(cfg); !errors.Is(err, engine.ErrInvalidConfig) {
		t.Fatalf("want invalid config, got %v", err)
	}
}

func TestResolveRejectionKeepsBankedBudget(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	submitAll(t, g, cfg, map[engine.Team]*engine.Allocation{"US": {BR: 3}})
	next := resolve(t, g, cfg, engine.WithSeed(2))
	if us := next.Teams["US"]; us.PendingWCarryover != 4 {
		t.Fatalf("pending=%d want 4", us.PendingWCarryover)
	}

	submitAll(t, next, cfg, map[engine.Team]*engine.Allocation{"US": {BR: 99}})
	later := resolve(t, next, cfg, engine.WithSeed(2))
	us := later.Teams["US"]
	if !hasEntry(later.PrivateLogs["US"], "Allocation rejected") {
		t.Fatalf("BR 99 not rejected: %v", later.PrivateLogs["US"])
	}
	if us.PendingWCarryover != 4 || us.UnspentDice != 9 || us.LastCarryover != 0 {
		t.Fatalf("rejection touched the bank: pending=%d unspent=%d last=%d", us.PendingWCarryover, us.UnspentDice, us.LastCarryover)
	}
	b, err := engine.ValidateAllocation("US", &engine.Allocation{BR: 16}, later, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if b.Budget != 16 || !b.OK {
		t.Fatalf("banked budget lost: %+v", b)
	}
}

func TestResolveUncheckedHugeSubmission(t *testing.T) {
	cfg := engine.DefaultConfig()
	g := newGame(t, cfg)
	// a snapshot written by another tool can skip Submit
	g.Submissions["US"] = &engine.Allocation{AR: map[engine.Tier]int{engine.TierL: math.MaxInt, engine.TierM: 2}}
	next := resolve(t, g, cfg, engine.WithSeed(5))
	if next.Teams["US"].TP[engine.TierL] != 0 {
		t.Fatalf("huge allocation rolled")
	}
	if !hasEntry(next.PrivateLogs["US"], "Allocation rejected") {
		t.Fatalf("missing rejection: %v", next.PrivateLogs["US"])
	}
}

func TestResolveSpiesNeverOvertakeTarget(t *testing.T) {
	cfg := engine.DefaultConfig()
	cfg.Espionage.TKTransfer = 1
	g := newGame(t, cfg)
	g.Teams["China"].TK = 1.5
	g.Teams["France"].TK = 0
	spies := &engine.Allocation{SP: []*engine.SpyAction{
		{Target: "China", Tech: engine.TierL},
		{Target: "China", Tech: engine.TierM},
	}}
	submitAll(t, g, cfg, map[engine.Team]*engine.Allocation{"France": spies})

	next := resolve(t, g, cfg, withFixed(0.99))
	france, china := next.Teams["France"], next.Teams["China"]
	if !france.SpyRevealed["China"][engine.TierM] {
		t.Fatalf("second spy did not succeed")
	}
	if france.TK != 1.5 || china.TK != 1.5 {
		t.Fatalf("France TK=%v China TK=%v, want both 1.5", france.TK, china.TK)
	}
}
