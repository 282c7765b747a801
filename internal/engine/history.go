package engine

// carryover banks part of each accepted team's unspent budget for next round.
// A rejected team spent nothing, so whatever it had banked stays banked.
func (r *round) carryover() {
	for _, t := range r.cfg.Teams {
		s := r.g.Teams[t]
		if !r.accepted[t] {
			continue
		}
		s.LastCarryover = s.PendingWCarryover
		unspent := r.budgets[t].Remaining()
		s.UnspentDice = unspent
		s.PendingWCarryover = int(float64(unspent) * s.CarryFraction)
		if unspent > 0 {
			r.log.Private(t, "Banked %d of %d unspent budget for next round", s.PendingWCarryover, unspent)
		}
	}
}

// finish freezes the round into history and advances the snapshot.
func (r *round) finish() {
	g := r.g
	next := r.n + 1
	r.log.Public("Round %d resolved", r.n)
	if next > r.cfg.MaxRounds {
		r.log.Public("Game concluded after round %d", r.n)
	}

	rolls := make(map[Team]Rolls, len(r.cfg.Teams))
	for _, t := range r.cfg.Teams {
		g.Teams[t].RollsSaved = r.rolls[t].Clone()
		rolls[t] = r.rolls[t].Clone()
	}
	g.History = append(g.History, RoundHistory{
		Round:       r.n,
		Allocations: cloneAllocations(r.allocs),
		Before:      r.before,
		After:       cloneTeams(g.Teams),
		Rolls:       rolls,
		PublicLog:   cloneSlice(r.log.public),
		PrivateLogs: cloneLogs(r.log.private),
	})
	r.log.flush(g)

	g.Round = next
	for _, t := range r.cfg.Teams {
		g.Submissions[t] = nil
		g.Teams[t].Submitted = false
	}
	g.RoundResolved = true
	g.Concluded = next > r.cfg.MaxRounds
}
