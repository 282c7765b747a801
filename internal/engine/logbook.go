package engine

import "fmt"

// logBook gathers one round's entries. Public and private entries go through
// separate methods so the audience is always explicit.
type logBook struct {
	round   int
	public  []LogEntry
	private map[Team][]LogEntry
}

func newLogBook(round int) *logBook {
	return &logBook{round: round, private: map[Team][]LogEntry{}}
}

// Public records an entry every participant can read.
func (b *logBook) Public(format string, args ...any) {
	b.public = append(b.public, LogEntry{
		Round:    b.round,
		Event:    fmt.Sprintf(format, args...),
		Audience: Audience{Scope: ScopePublic},
	})
}

// Private records an entry only team (and the GM) can read.
func (b *logBook) Private(team Team, format string, args ...any) {
	b.private[team] = append(b.private[team], LogEntry{
		Round:    b.round,
		Event:    fmt.Sprintf(format, args...),
		Audience: Audience{Scope: ScopePrivate, Team: team},
	})
}

// flush appends the round's entries to the running logs.
func (b *logBook) flush(g *GameState) {
	g.PublicLog = append(g.PublicLog, b.public...)
	if g.PrivateLogs == nil {
		g.PrivateLogs = map[Team][]LogEntry{}
	}
	for team, entries := range b.private {
		g.PrivateLogs[team] = append(g.PrivateLogs[team], entries...)
	}
}
