// Package match runs games on top of the engine: it loads a snapshot,
// applies one engine operation under a per-game lock and saves the result.
package match

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/xtding233/techrace-backend/internal/dice"
	"github.com/xtding233/techrace-backend/internal/engine"
	"github.com/xtding233/techrace-backend/internal/rules"
	"github.com/xtding233/techrace-backend/internal/store"
)

// Store persists games. *store.Store satisfies it.
type Store interface {
	Create(ctx context.Context, g *store.Game) error
	Get(ctx context.Context, id string) (*store.Game, error)
	Save(ctx context.Context, g *store.Game) error
	List(ctx context.Context, limit int) ([]store.Summary, error)
}

// Notifier receives the public entries of every resolved round.
type Notifier interface {
	Publish(gameID string, round int, entries []engine.LogEntry)
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, int, []engine.LogEntry) {}

// Manager serializes operations per game. Different games run concurrently.
type Manager struct {
	store    Store
	rules    rules.Resolver
	notifier Notifier
	newID    func() string
	engOpts  []engine.Option

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option customizes a Manager.
type Option func(*Manager)

func WithNotifier(n Notifier) Option { return func(m *Manager) { m.notifier = n } }

// WithIDs replaces the uuid generator.
func WithIDs(f func() string) Option { return func(m *Manager) { m.newID = f } }

// WithEngineOptions is passed to every engine the manager builds.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(m *Manager) { m.engOpts = append(m.engOpts, opts...) }
}

func NewManager(s Store, r rules.Resolver, opts ...Option) *Manager {
	m := &Manager{
		store:    s,
		rules:    r,
		notifier: nopNotifier{},
		newID:    uuid.NewString,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// CreateRequest starts a game from a scenario plus overrides.
type CreateRequest struct {
	Scenario  string
	Overrides rules.Overrides
}

// CreateGame resolves the rule set, builds round 1 and stores it.
func (m *Manager) CreateGame(ctx context.Context, req CreateRequest) (*store.Game, error) {
	_, cfg, err := m.rules.Resolve(req.Scenario, req.Overrides)
	if err != nil {
		return nil, fmt.Errorf("resolve rules: %w", err)
	}
	st, err := engine.NewGame(cfg)
	if err != nil {
		return nil, err
	}
	g := &store.Game{ID: m.newID(), Scenario: req.Scenario, Config: cfg, State: st}
	if err := m.store.Create(ctx, g); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return g, nil
}

func (m *Manager) load(ctx context.Context, id string) (*store.Game, error) {
	g, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", id, err)
	}
	return g, nil
}

func (m *Manager) newEngine(cfg engine.Config) (*engine.Engine, error) {
	return engine.New(cfg, m.engOpts...)
}

// Submit stores team's allocation and returns its budget preview. An
// allocation over budget is still stored; resolution rejects it.
func (m *Manager) Submit(ctx context.Context, id string, team engine.Team, alloc *engine.Allocation) (engine.Budget, error) {
	defer m.lock(id)()
	g, err := m.load(ctx, id)
	if err != nil {
		return engine.Budget{}, err
	}
	if err := engine.Submit(g.State, g.Config, team, alloc); err != nil {
		return engine.Budget{}, err
	}
	if g.State.ActiveUsers == nil {
		g.State.ActiveUsers = map[engine.Team]bool{}
	}
	g.State.ActiveUsers[team] = true
	b, err := engine.ValidateAllocation(team, alloc, g.State, g.Config)
	if err != nil {
		return engine.Budget{}, err
	}
	if err := m.store.Save(ctx, g); err != nil {
		return engine.Budget{}, fmt.Errorf("save game %s: %w", id, err)
	}
	return b, nil
}

// Validate prices alloc without storing it.
func (m *Manager) Validate(ctx context.Context, id string, team engine.Team, alloc *engine.Allocation) (engine.Budget, error) {
	g, err := m.load(ctx, id)
	if err != nil {
		return engine.Budget{}, err
	}
	return engine.ValidateAllocation(team, alloc, g.State, g.Config)
}

// Open starts the next submission cycle.
func (m *Manager) Open(ctx context.Context, id string) error {
	defer m.lock(id)()
	g, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if err := engine.OpenRound(g.State, g.Config); err != nil {
		return err
	}
	if err := m.store.Save(ctx, g); err != nil {
		return fmt.Errorf("save game %s: %w", id, err)
	}
	return nil
}

// Resolve resolves the current round, saves the result and publishes the
// round's public entries.
func (m *Manager) Resolve(ctx context.Context, id string, force bool) (*engine.GameState, error) {
	defer m.lock(id)()
	g, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	e, err := m.newEngine(g.Config)
	if err != nil {
		return nil, err
	}
	next, err := e.Resolve(g.State, engine.ResolveOptions{Force: force})
	if err != nil {
		return nil, err
	}
	g.State = next
	if err := m.store.Save(ctx, g); err != nil {
		return nil, fmt.Errorf("save game %s: %w", id, err)
	}
	if n := len(next.History); n > 0 {
		h := next.History[n-1]
		m.notifier.Publish(id, h.Round, h.PublicLog)
	}
	return next, nil
}

// View returns the snapshot as role may see it.
func (m *Manager) View(ctx context.Context, id string, role engine.Role) (*engine.GameState, error) {
	g, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return engine.View(g.State, g.Config, role)
}

// Forecast estimates n AR dice in tier for team.
func (m *Manager) Forecast(ctx context.Context, id string, team engine.Team, tier engine.Tier, n, trials int) (engine.Forecast, error) {
	g, err := m.load(ctx, id)
	if err != nil {
		return engine.Forecast{}, err
	}
	e, err := m.newEngine(g.Config)
	if err != nil {
		return engine.Forecast{}, err
	}
	return e.Forecast(g.State, team, tier, n, trials, dice.DefaultRNG())
}

// List returns recent games.
func (m *Manager) List(ctx context.Context, limit int) ([]store.Summary, error) {
	return m.store.List(ctx, limit)
}
