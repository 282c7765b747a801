package api

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xtding233/techrace-backend/internal/engine"
	"github.com/xtding233/techrace-backend/internal/match"
	"github.com/xtding233/techrace-backend/internal/rules"
	"github.com/xtding233/techrace-backend/internal/store"
)

type fixedRules struct{ cfg engine.Config }

func (r fixedRules) Resolve(_ string, o rules.Overrides) (rules.RawConfig, engine.Config, error) {
	cfg := r.cfg
	if o.MaxRounds != nil {
		cfg.MaxRounds = *o.MaxRounds
	}
	if o.RequireAllSubmissions != nil {
		cfg.RequireAllSubmissions = *o.RequireAllSubmissions
	}
	return rules.RawConfig{}, cfg, nil
}

func newTestGames(t *testing.T, opts ...match.Option) *match.Manager {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	opts = append(opts, match.WithEngineOptions(engine.WithSeed(7)))
	return match.NewManager(s, fixedRules{engine.DefaultConfig()}, opts...)
}

func createTestGame(t *testing.T, g Games) string {
	t.Helper()
	created, err := g.CreateGame(context.Background(), match.CreateRequest{})
	require.NoError(t, err)
	return created.ID
}
