package snippets

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "snippets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGet(t *testing.T) {
	store := openTestStore(t)
	store.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 6, time.UTC) }
	ctx := context.Background()

	saved, err := store.Save(ctx, `print "hello lox!";`)
	require.NoError(t, err)
	assert.Len(t, saved.ID, IDLength)
	assert.Equal(t, ID(`print "hello lox!";`), saved.ID)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), saved.CreatedAt)

	got, err := store.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.Source, got.Source)
	assert.Equal(t, 1, got.Views)

	got, err = store.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Views)
}

func TestSaveIsContentAddressed(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, "print 1;")
	require.NoError(t, err)

	store.now = func() time.Time { return time.Now().Add(time.Hour) }
	second, err := store.Save(ctx, "print 1;")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := store.Save(ctx, "print 2;")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestGetErrors(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "000000000000")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Get(ctx, "../etc")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestSaveTooLarge(t *testing.T) {
	store := openTestStore(t)
	_, err := store.Save(context.Background(), strings.Repeat("x", MaxSourceSize+1))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestMigrationVersion(t *testing.T) {
	store := openTestStore(t)
	version, err := store.Version()
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	// Reopening an up-to-date database is a no-op.
	require.NoError(t, Migrate(store.db))
}

func TestOpenMemory(t *testing.T) {
	store, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer store.Close()

	saved, err := store.Save(context.Background(), "print 3;")
	require.NoError(t, err)
	got, err := store.Get(context.Background(), saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "print 3;", got.Source)
}

func TestStoreDatabaseErrors(t *testing.T) {
	boom := errors.New("disk I/O error")
	id := ID("print 1;")

	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		call      func(s *Store) error
		errMsg    string
	}{
		{
			name: "save insert fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("INSERT INTO snippets")).
					WithArgs(id, "print 1;", sqlmock.AnyArg()).
					WillReturnError(boom)
			},
			call: func(s *Store) error {
				_, err := s.Save(context.Background(), "print 1;")
				return err
			},
			errMsg: "save snippet: disk I/O error",
		},
		{
			name: "get update fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("UPDATE snippets SET views")).
					WithArgs(id).
					WillReturnError(boom)
			},
			call: func(s *Store) error {
				_, err := s.Get(context.Background(), id)
				return err
			},
			errMsg: "get snippet: disk I/O error",
		},
		{
			name: "get missing row",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("UPDATE snippets SET views")).
					WithArgs(id).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			call: func(s *Store) error {
				_, err := s.Get(context.Background(), id)
				return err
			},
			errMsg: "snippet not found: " + id,
		},
		{
			name: "lookup vanished",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta("UPDATE snippets SET views")).
					WithArgs(id).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectQuery(regexp.QuoteMeta("SELECT id, source, created_at, views FROM snippets")).
					WithArgs(id).
					WillReturnError(sql.ErrNoRows)
			},
			call: func(s *Store) error {
				_, err := s.Get(context.Background(), id)
				return err
			},
			errMsg: "snippet not found: " + id,
		},
		{
			name: "count fails",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM snippets")).
					WillReturnError(boom)
			},
			call: func(s *Store) error {
				_, err := s.Count(context.Background())
				return err
			},
			errMsg: "count snippets: disk I/O error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			tt.setupMock(mock)
			err = tt.call(New(db))
			require.Error(t, err)
			assert.EqualError(t, err, tt.errMsg)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSaveReadsBackRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := ID("print 1;")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO snippets")).
		WithArgs(id, "print 1;", int64(1700000000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, source, created_at, views FROM snippets")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "source", "created_at", "views"}).
			AddRow(id, "print 1;", int64(1700000000), 0))

	store := New(db)
	store.now = func() time.Time { return time.Unix(1700000000, 0) }

	saved, err := store.Save(context.Background(), "print 1;")
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), saved.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRejectsIDCollision(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	id := ID("print 1;")
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO snippets")).
		WithArgs(id, "print 1;", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, source, created_at, views FROM snippets")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "source", "created_at", "views"}).
			AddRow(id, "print 2;", int64(1700000000), 4))

	_, err = New(db).Save(context.Background(), "print 1;")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollision))
	assert.EqualError(t, err, "snippet id collision: "+id)
	assert.NoError(t, mock.ExpectationsWereMet())
}
