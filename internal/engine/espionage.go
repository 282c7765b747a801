package engine

import "fmt"

// espionage resolves every spy action against the post-research snapshot, so
// a transfer earlier in the roster never changes what a later spy sees. A
// spy's own gains this phase do count: transfers never lift it past its
// target.
func (r *round) espionage() {
	seen := cloneTeams(r.g.Teams)
	die := r.cfg.Espionage.Die
	for _, t := range r.cfg.Teams {
		if !r.accepted[t] {
			continue
		}
		s := r.g.Teams[t]
		for _, sp := range r.allocs[t].ActiveSpies() {
			roll := die.RollOne(r.rng[t])
			ok := die.Success(roll)
			r.rolls[t].SP = append(r.rolls[t].SP, SpyRoll{RawRoll: roll, Target: sp.Target, Tech: sp.Tech, Success: ok})

			if !ok {
				s.SpyCaughtCount[sp.Target][sp.Tech]++
				r.diceLog(t, DiceLogEntry{Phase: PhaseSpy, Tech: sp.Tech, Rolls: []int{roll}, SPResult: "caught"})
				r.log.Public("%s was caught spying on %s (tier %s)", t, sp.Target, sp.Tech)
				continue
			}

			target := seen[sp.Target]
			s.SpyRevealed[sp.Target][sp.Tech] = true
			var dTK float64
			if gap := target.TK - s.TK; gap > 0 {
				dTK = min(r.cfg.Espionage.TKTransfer, gap)
				s.TK += dTK
			}
			r.diceLog(t, DiceLogEntry{Phase: PhaseSpy, Tech: sp.Tech, Rolls: []int{roll}, DeltaTK: dTK, SPResult: "success"})
			r.log.Private(t, "Intel on %s tier %s: %s (TK %+.2f)", sp.Target, sp.Tech, intel(r.cfg, target, sp.Tech), dTK)
		}
	}
}

func intel(cfg Config, s *TeamState, tier Tier) string {
	if s.Discovered[tier] {
		return fmt.Sprintf("%d/%d TP, discovered", s.TP[tier], cfg.TPThreshold[tier])
	}
	return fmt.Sprintf("%d/%d TP, not discovered", s.TP[tier], cfg.TPThreshold[tier])
}
