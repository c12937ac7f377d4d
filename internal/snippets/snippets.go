// Package snippets stores shared playground sources in SQLite.
//
// Snippets are content addressed: saving the same source twice yields the
// same id.
package snippets

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	ErrNotFound = errors.New("snippet not found")
	ErrTooLarge = errors.New("snippet too large")
	ErrInvalid  = errors.New("invalid snippet id")

	// ErrCollision means another source already holds the id.
	ErrCollision = errors.New("snippet id collision")
)

// IDLength is the number of hex digits of the source hash used as id.
const IDLength = 12

// MaxSourceSize bounds the size of a stored source in bytes.
const MaxSourceSize = 64 << 10

type Snippet struct {
	ID        string
	Source    string
	CreatedAt time.Time
	Views     int
}

// Store is a snippet store over a database/sql connection.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the SQLite database at path and applies
// pending migrations. Use ":memory:" for a private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate runs all pending database migrations.
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Version returns the current migration version.
func (s *Store) Version() (int64, error) {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite"); err != nil {
		return 0, fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.GetDBVersion(s.db)
}

// ID returns the id a source is stored under.
func ID(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])[:IDLength]
}

// Save stores source and returns its snippet. Saving an existing source
// returns the stored snippet unchanged. A different source stored under the
// same id fails with ErrCollision.
func (s *Store) Save(ctx context.Context, source string) (Snippet, error) {
	if len(source) > MaxSourceSize {
		return Snippet{}, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, len(source), MaxSourceSize)
	}

	id := ID(source)
	now := s.now().UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snippets (id, source, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		id, source, now.Unix())
	if err != nil {
		return Snippet{}, fmt.Errorf("save snippet: %w", err)
	}
	snippet, err := s.lookup(ctx, id)
	if err != nil {
		return Snippet{}, err
	}
	if snippet.Source != source {
		return Snippet{}, fmt.Errorf("%w: %s", ErrCollision, id)
	}
	return snippet, nil
}

// Get returns the snippet with the given id and counts the view.
func (s *Store) Get(ctx context.Context, id string) (Snippet, error) {
	if !validID(id) {
		return Snippet{}, fmt.Errorf("%w: %q", ErrInvalid, id)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE snippets SET views = views + 1 WHERE id = ?`, id)
	if err != nil {
		return Snippet{}, fmt.Errorf("get snippet: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Snippet{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.lookup(ctx, id)
}

func (s *Store) lookup(ctx context.Context, id string) (Snippet, error) {
	var (
		snippet Snippet
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, created_at, views FROM snippets WHERE id = ?`, id,
	).Scan(&snippet.ID, &snippet.Source, &created, &snippet.Views)
	if errors.Is(err, sql.ErrNoRows) {
		return Snippet{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Snippet{}, fmt.Errorf("get snippet: %w", err)
	}
	snippet.CreatedAt = time.Unix(created, 0).UTC()
	return snippet, nil
}

// Count returns the number of stored snippets.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snippets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snippets: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func validID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	_, err := hex.DecodeString(id)
	return err == nil
}
