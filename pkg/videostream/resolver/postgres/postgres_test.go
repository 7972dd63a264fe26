package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/video-streaming/pkg/videostream"
)

type fakeRow struct {
	path string
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.path
	return nil
}

type fakeDB struct {
	row     fakeRow
	queries []string
	args    [][]interface{}
	execErr error
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	db.queries = append(db.queries, sql)
	db.args = append(db.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), db.execErr
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	db.queries = append(db.queries, sql)
	db.args = append(db.args, args)
	return db.row
}

func TestResolver_Resolve(t *testing.T) {
	db := &fakeDB{row: fakeRow{path: "videos/one.mp4"}}
	r := New(db)

	rec, err := r.Resolve(context.Background(), "5d9e690ad76fe06a3d7ae416")
	require.NoError(t, err)
	assert.Equal(t, "videos/one.mp4", rec.Locator)

	require.Len(t, db.queries, 1)
	assert.Contains(t, db.queries[0], `FROM "videos" WHERE id = $1`)
	assert.Equal(t, []interface{}{"5d9e690ad76fe06a3d7ae416"}, db.args[0])
}

func TestResolver_NotFound(t *testing.T) {
	r := New(&fakeDB{row: fakeRow{err: pgx.ErrNoRows}})

	_, err := r.Resolve(context.Background(), "1")
	assert.ErrorIs(t, err, videostream.ErrNotFound)
}

func TestResolver_LookupError(t *testing.T) {
	r := New(&fakeDB{row: fakeRow{err: &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}}})

	_, err := r.Resolve(context.Background(), "1")
	var lookupErr *videostream.LookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Contains(t, err.Error(), "database migration required")
	assert.False(t, errors.Is(err, videostream.ErrNotFound))
}

func TestResolver_Timeout(t *testing.T) {
	r := New(&fakeDB{row: fakeRow{err: context.DeadlineExceeded}})

	_, err := r.Resolve(context.Background(), "1")
	var lookupErr *videostream.LookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestResolver_WithTable(t *testing.T) {
	db := &fakeDB{row: fakeRow{path: "a.mp4"}}
	r := New(db, WithTable("content", "videos"))

	_, err := r.Resolve(context.Background(), "1")
	require.NoError(t, err)
	assert.Contains(t, db.queries[0], `FROM "content"."videos"`)
}

func TestResolver_Upsert(t *testing.T) {
	db := &fakeDB{}
	r := New(db)

	require.NoError(t, r.EnsureSchema(context.Background()))
	err := r.Upsert(context.Background(),
		videostream.Record{ID: "1", Locator: "one.mp4"},
		videostream.Record{ID: "2", Locator: "two.mp4"},
	)
	require.NoError(t, err)

	require.Len(t, db.queries, 3)
	assert.Contains(t, db.queries[0], "CREATE TABLE IF NOT EXISTS")
	assert.Contains(t, db.queries[1], "ON CONFLICT (id)")
	assert.Equal(t, []interface{}{"2", "two.mp4"}, db.args[2])
}

func TestResolver_UpsertError(t *testing.T) {
	r := New(&fakeDB{execErr: errors.New("connection reset")})

	err := r.Upsert(context.Background(), videostream.Record{ID: "1", Locator: "one.mp4"})
	assert.ErrorContains(t, err, "database error in upsert")
}
