package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/dl-alexandre/ghimg/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*Store, *DB) {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), db
}

func TestDB_KV(t *testing.T) {
	_, db := openStore(t)
	ctx := context.Background()

	_, ok, err := db.GetItem(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.SetItem(ctx, "k", "v1"))
	require.NoError(t, db.SetItem(ctx, "k", "v2"))
	v, ok, err := db.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	keys, err := db.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"k"}, keys)

	require.NoError(t, db.RemoveItem(ctx, "k"))
	_, ok, err = db.GetItem(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_AddKeepsNewestTwenty(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	for i := 0; i < 25; i++ {
		_, err := s.Add(ctx, types.SearchFilter{Keyword: fmt.Sprintf("q%d", i)}, i)
		require.NoError(t, err)
	}

	records, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, MaxRecords)
	assert.Equal(t, "q24", records[0].Filter.Keyword)
	assert.Equal(t, "q5", records[MaxRecords-1].Filter.Keyword)
	assert.Equal(t, 24, records[0].ResultCount)
}

func TestStore_GetAndRemove(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	rec, err := s.Add(ctx, types.SearchFilter{Keyword: "cat", Extensions: []string{"png"}}, 3)
	require.NoError(t, err)

	got, ok, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"png"}, got.Filter.Extensions)

	removed, err := s.Remove(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = s.Remove(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, ok, err = s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_Top(t *testing.T) {
	s, _ := openStore(t)
	ctx := context.Background()

	for kw, n := range map[string]int{"cat": 3, "dog": 5, "bird": 1, "fish": 2, "ant": 2, "cow": 1} {
		for i := 0; i < n; i++ {
			_, err := s.Add(ctx, types.SearchFilter{Keyword: "  " + kw + " "}, 0)
			require.NoError(t, err)
		}
	}
	_, err := s.Add(ctx, types.SearchFilter{}, 0)
	require.NoError(t, err)

	top, err := s.Top(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []KeywordCount{
		{"dog", 5}, {"cat", 3}, {"ant", 2}, {"fish", 2}, {"bird", 1},
	}, top)
}

func TestStore_Clear(t *testing.T) {
	s, db := openStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, types.SearchFilter{Keyword: "x"}, 1)
	require.NoError(t, err)
	require.NoError(t, s.Clear(ctx))

	records, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
	top, err := s.Top(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, top)

	keys, err := db.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := Open(path)
	require.NoError(t, err)
	_, err = NewStore(db).Add(context.Background(), types.SearchFilter{Keyword: "kept"}, 1)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	records, err := NewStore(db).List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "kept", records[0].Filter.Keyword)
}

func TestRecords_Rows(t *testing.T) {
	rows := Records{{ID: "0123456789", Filter: types.SearchFilter{Keyword: "k", Scope: "b"}, ResultCount: 2}}.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "01234567", rows[0][0])
	assert.Equal(t, "/b", rows[0][3])
	assert.Equal(t, "2", rows[0][4])
}
