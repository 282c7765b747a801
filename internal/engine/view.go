package engine

import "fmt"

// View returns the part of g that role may see. The GM gets a full copy. A
// team gets its own private log only; rivals' progress in a tier is hidden
// unless the team's espionage revealed it, and rivals' dice, spy records and
// submissions are dropped. History is filtered the same way.
func View(g *GameState, cfg Config, role Role) (*GameState, error) {
	if err := checkState(cfg, g); err != nil {
		return nil, err
	}
	out := g.Clone()
	if role == RoleGM {
		return out, nil
	}
	me := Team(role)
	if !cfg.HasTeam(me) {
		return nil, withMetadata(CodeUnknownTeam, fmt.Sprintf("unknown role %q", role), map[string]string{"role": string(role)})
	}
	revealed := g.Teams[me].SpyRevealed

	redactTeams(out.Teams, me, revealed)
	for t, a := range out.Submissions {
		if t != me && a != nil {
			out.Submissions[t] = nil
		}
	}
	out.PrivateLogs = onlyTeam(out.PrivateLogs, me)
	for i := range out.History {
		h := &out.History[i]
		redactTeams(h.Before, me, revealed)
		redactTeams(h.After, me, revealed)
		for t := range h.Allocations {
			if t != me {
				delete(h.Allocations, t)
			}
		}
		for t := range h.Rolls {
			if t != me {
				delete(h.Rolls, t)
			}
		}
		h.PrivateLogs = onlyTeam(h.PrivateLogs, me)
	}
	return out, nil
}

func onlyTeam(logs map[Team][]LogEntry, me Team) map[Team][]LogEntry {
	out := map[Team][]LogEntry{}
	if entries, ok := logs[me]; ok {
		out[me] = entries
	}
	return out
}

func redactTeams(teams map[Team]*TeamState, me Team, revealed map[Team]map[Tier]bool) {
	for t, s := range teams {
		if t == me || s == nil {
			continue
		}
		hidden := func(tier Tier) bool { return !revealed[t][tier] }
		for tier := range s.TP {
			if hidden(tier) {
				s.TP[tier] = 0
			}
		}
		for tier := range s.TPLastRound {
			if hidden(tier) {
				s.TPLastRound[tier] = 0
			}
		}
		for tier := range s.Discovered {
			if hidden(tier) {
				s.Discovered[tier] = false
			}
		}
		s.RollsSaved = Rolls{}
		s.DiceLog = nil
		s.SpyRevealed = nil
		s.SpyCaughtCount = nil
	}
}
