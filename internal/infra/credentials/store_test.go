package credentials

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	token string
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) > 0 {
		if p, ok := dest[0].(*string); ok {
			*p = r.token
		}
	}
	return nil
}

type fakeQuerier struct {
	row fakeRow

	execQuery string
	execArgs  []any
	execErr   error
}

func (q *fakeQuerier) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	return q.row
}

func (q *fakeQuerier) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	q.execQuery = query
	q.execArgs = args
	return pgconn.CommandTag{}, q.execErr
}

func TestTokenTrimsStoredValue(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{token: "  key-123  "}}
	store := NewStore(q)

	token, err := store.GeminiAPIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "key-123", token)
}

func TestTokenMissingRowIsEmptyNotError(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	store := NewStore(q)

	token, err := store.GeminiAPIKey(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestSetGeminiAPIKeyUpserts(t *testing.T) {
	q := &fakeQuerier{}
	store := NewStore(q)

	require.NoError(t, store.SetGeminiAPIKey(context.Background(), "  key-456  "))
	assert.Contains(t, q.execQuery, "INSERT INTO integration_tokens")
	assert.Contains(t, q.execQuery, "ON CONFLICT (provider)")
	require.Len(t, q.execArgs, 2)
	assert.Equal(t, ProviderGemini, q.execArgs[0])
	assert.Equal(t, "key-456", q.execArgs[1])
}

func TestSetGeminiAPIKeyRejectsEmpty(t *testing.T) {
	q := &fakeQuerier{}
	store := NewStore(q)

	assert.Error(t, store.SetGeminiAPIKey(context.Background(), "   "))
	assert.Empty(t, q.execQuery)
}
