// Package store keeps game snapshots in SQLite. Each row holds the rule set
// and the latest engine snapshot of one game, guarded by a version counter.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/xtding233/techrace-backend/internal/engine"
	"github.com/xtding233/techrace-backend/internal/store/migrations"
)

var (
	ErrNotFound = errors.New("game not found")
	// ErrConflict means the row changed since it was read.
	ErrConflict = errors.New("game was modified concurrently")
)

// Game is one stored game.
type Game struct {
	ID        string
	Scenario  string
	Config    engine.Config
	State     *engine.GameState
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary is a listing row without the snapshot payload.
type Summary struct {
	ID        string    `db:"id" json:"id"`
	Scenario  string    `db:"scenario" json:"scenario"`
	Round     int       `db:"round" json:"round"`
	Status    string    `db:"status" json:"status"`
	UpdatedAt time.Time `db:"-" json:"updated_at"`
	Updated   int64     `db:"updated_at" json:"-"`
}

type row struct {
	ID        string `db:"id"`
	Scenario  string `db:"scenario"`
	Config    []byte `db:"config_json"`
	State     []byte `db:"state_json"`
	Round     int    `db:"round"`
	Status    string `db:"status"`
	Version   int64  `db:"version"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

// Store provides SQLite-backed persistence for games.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens or creates a SQLite database at the given path and migrates it.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Create inserts a new game at version 1.
func (s *Store) Create(ctx context.Context, g *Game) error {
	r, err := toRow(g)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	r.Version = 1
	r.CreatedAt, r.UpdatedAt = now.UnixMilli(), now.UnixMilli()
	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO games (id, scenario, config_json, state_json, round, status, version, created_at, updated_at)
		VALUES (:id, :scenario, :config_json, :state_json, :round, :status, :version, :created_at, :updated_at)`, r)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", g.ID, err)
	}
	g.Version = 1
	g.CreatedAt, g.UpdatedAt = now, now
	return nil
}

// Get loads a game by id.
func (s *Store) Get(ctx context.Context, id string) (*Game, error) {
	var r row
	err := s.db.GetContext(ctx, &r, `SELECT * FROM games WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get game %s: %w", id, err)
	}
	return fromRow(r)
}

// Save writes g if nobody saved it since g.Version was read, then bumps
// g.Version.
func (s *Store) Save(ctx context.Context, g *Game) error {
	r, err := toRow(g)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	r.UpdatedAt = now.UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		UPDATE games SET state_json = ?, round = ?, status = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		r.State, r.Round, r.Status, r.UpdatedAt, r.ID, g.Version)
	if err != nil {
		return fmt.Errorf("update game %s: %w", g.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update game %s: %w", g.ID, err)
	}
	if n == 0 {
		var exists int
		if err := s.db.GetContext(ctx, &exists, `SELECT COUNT(1) FROM games WHERE id = ?`, g.ID); err != nil {
			return fmt.Errorf("check game %s: %w", g.ID, err)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	g.Version++
	g.UpdatedAt = now
	return nil
}

// List returns games, most recently updated first.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []Summary
	err := s.db.SelectContext(ctx, &out,
		`SELECT id, scenario, round, status, updated_at FROM games ORDER BY updated_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	for i := range out {
		out[i].UpdatedAt = time.UnixMilli(out[i].Updated).UTC()
	}
	return out, nil
}

func toRow(g *Game) (row, error) {
	if g == nil || g.State == nil {
		return row{}, fmt.Errorf("game and state are required")
	}
	if strings.TrimSpace(g.ID) == "" {
		return row{}, fmt.Errorf("game id is required")
	}
	cfg, err := json.Marshal(g.Config)
	if err != nil {
		return row{}, fmt.Errorf("encode config: %w", err)
	}
	st, err := json.Marshal(g.State)
	if err != nil {
		return row{}, fmt.Errorf("encode state: %w", err)
	}
	return row{
		ID:       g.ID,
		Scenario: g.Scenario,
		Config:   cfg,
		State:    st,
		Round:    g.State.Round,
		Status:   string(g.State.Status()),
	}, nil
}

func fromRow(r row) (*Game, error) {
	g := &Game{
		ID:        r.ID,
		Scenario:  r.Scenario,
		Version:   r.Version,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
	}
	if err := json.Unmarshal(r.Config, &g.Config); err != nil {
		return nil, fmt.Errorf("decode config of %s: %w", r.ID, err)
	}
	g.State = &engine.GameState{}
	if err := json.Unmarshal(r.State, g.State); err != nil {
		return nil, fmt.Errorf("decode state of %s: %w", r.ID, err)
	}
	return g, nil
}

// migrate applies embedded SQL migrations in filename order, each at most once.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	files, err := fs.Glob(migrations.FS, "*.sql")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	sort.Strings(files)
	for _, name := range files {
		var applied int
		if err := s.db.Get(&applied, `SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, name); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if applied > 0 {
			continue
		}
		content, err := fs.ReadFile(migrations.FS, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		up := upSection(string(content))
		tx, err := s.db.Beginx()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(up); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, ?)`, name, s.now().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}

// upSection isolates the `-- +migrate Up` segment of a migration file.
func upSection(content string) string {
	const up, down = "-- +migrate Up", "-- +migrate Down"
	if i := strings.Index(content, up); i >= 0 {
		content = content[i+len(up):]
	}
	if i := strings.Index(content, down); i >= 0 {
		content = content[:i]
	}
	return content
}
