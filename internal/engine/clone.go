package engine

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	if m == nil {
		return nil
	}
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	return append([]T(nil), s...)
}

// Clone deep-copies an allocation. Nil stays nil.
func (a *Allocation) Clone() *Allocation {
	if a == nil {
		return nil
	}
	out := *a
	out.AR = cloneMap(a.AR)
	if a.SP != nil {
		out.SP = make([]*SpyAction, len(a.SP))
		for i, sp := range a.SP {
			if sp != nil {
				c := *sp
				out.SP[i] = &c
			}
		}
	}
	return &out
}

// Clone deep-copies the raw rolls.
func (r Rolls) Clone() Rolls {
	out := Rolls{BR: cloneSlice(r.BR), SP: cloneSlice(r.SP)}
	if r.AR != nil {
		out.AR = make(map[Tier][]int, len(r.AR))
		for k, v := range r.AR {
			out.AR[k] = cloneSlice(v)
		}
	}
	return out
}

// Clone deep-copies a team state.
func (s *TeamState) Clone() *TeamState {
	if s == nil {
		return nil
	}
	out := *s
	out.TP = cloneMap(s.TP)
	out.TPLastRound = cloneMap(s.TPLastRound)
	out.Discovered = cloneMap(s.Discovered)
	if s.SpyRevealed != nil {
		out.SpyRevealed = make(map[Team]map[Tier]bool, len(s.SpyRevealed))
		for k, v := range s.SpyRevealed {
			out.SpyRevealed[k] = cloneMap(v)
		}
	}
	if s.SpyCaughtCount != nil {
		out.SpyCaughtCount = make(map[Team]map[Tier]int, len(s.SpyCaughtCount))
		for k, v := range s.SpyCaughtCount {
			out.SpyCaughtCount[k] = cloneMap(v)
		}
	}
	out.RollsSaved = s.RollsSaved.Clone()
	if s.DiceLog != nil {
		out.DiceLog = make([]DiceLogEntry, len(s.DiceLog))
		for i, e := range s.DiceLog {
			e.Rolls = cloneSlice(e.Rolls)
			out.DiceLog[i] = e
		}
	}
	return &out
}

func cloneTeams(m map[Team]*TeamState) map[Team]*TeamState {
	if m == nil {
		return nil
	}
	out := make(map[Team]*TeamState, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

func cloneAllocations(m map[Team]*Allocation) map[Team]*Allocation {
	if m == nil {
		return nil
	}
	out := make(map[Team]*Allocation, len(m))
	for k, v := range m {
		out[k] = v.Clone()
	}
	return out
}

func cloneLogs(m map[Team][]LogEntry) map[Team][]LogEntry {
	if m == nil {
		return nil
	}
	out := make(map[Team][]LogEntry, len(m))
	for k, v := range m {
		out[k] = cloneSlice(v)
	}
	return out
}

// Clone deep-copies a history entry.
func (h RoundHistory) Clone() RoundHistory {
	out := h
	out.Allocations = cloneAllocations(h.Allocations)
	out.Before = cloneTeams(h.Before)
	out.After = cloneTeams(h.After)
	if h.Rolls != nil {
		out.Rolls = make(map[Team]Rolls, len(h.Rolls))
		for k, v := range h.Rolls {
			out.Rolls[k] = v.Clone()
		}
	}
	out.PublicLog = cloneSlice(h.PublicLog)
	out.PrivateLogs = cloneLogs(h.PrivateLogs)
	return out
}

// Clone deep-copies the whole snapshot.
func (g *GameState) Clone() *GameState {
	if g == nil {
		return nil
	}
	out := *g
	out.Teams = cloneTeams(g.Teams)
	out.Submissions = cloneAllocations(g.Submissions)
	out.GlobalBRPool = cloneMap(g.GlobalBRPool)
	out.PublicLog = cloneSlice(g.PublicLog)
	out.PrivateLogs = cloneLogs(g.PrivateLogs)
	out.ActiveUsers = cloneMap(g.ActiveUsers)
	if g.History != nil {
		out.History = make([]RoundHistory, len(g.History))
		for i, h := range g.History {
			out.History[i] = h.Clone()
		}
	}
	return &out
}
