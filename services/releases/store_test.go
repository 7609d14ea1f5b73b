package releases

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"upcomarr/models"
)

func newTestStore() *Store {
	return NewStore(afero.NewMemMapFs(), "data/movies.json")
}

func TestListEmptyWhenFileMissing(t *testing.T) {
	store := newTestStore()

	movies, err := store.List()
	require.NoError(t, err)
	require.Empty(t, movies)
}

func TestUpsertAndList(t *testing.T) {
	store := newTestStore()

	require.NoError(t, store.Upsert(models.TrackedMovie{TMDBID: 42, Title: "Nova", Year: 2025}))
	require.NoError(t, store.Upsert(models.TrackedMovie{TMDBID: 7, Title: "Other", Year: 2026}))

	movies, err := store.List()
	require.NoError(t, err)
	require.Len(t, movies, 2)
	require.Equal(t, int64(42), movies[0].TMDBID)
	require.Equal(t, "Nova", movies[0].Title)
}

func TestUpsertReplacesById(t *testing.T) {
	store := newTestStore()

	require.NoError(t, store.Upsert(models.TrackedMovie{TMDBID: 42, Title: "Nova", Year: 2025}))
	require.NoError(t, store.Upsert(models.TrackedMovie{TMDBID: 42, Title: "Nova", Year: 2025, ReleaseDate: "2025-06-01"}))

	movies, err := store.List()
	require.NoError(t, err)
	require.Len(t, movies, 1)
	require.Equal(t, "2025-06-01", movies[0].ReleaseDate)
}

func TestRemove(t *testing.T) {
	store := newTestStore()

	require.NoError(t, store.Upsert(models.TrackedMovie{TMDBID: 42, Title: "Nova", Year: 2025}))
	require.NoError(t, store.Remove(42))

	movies, err := store.List()
	require.NoError(t, err)
	require.Empty(t, movies)

	// Removing an absent id is a no-op.
	require.NoError(t, store.Remove(42))
	require.NoError(t, store.Remove(999))
}

func TestContains(t *testing.T) {
	store := newTestStore()

	require.NoError(t, store.Upsert(models.TrackedMovie{TMDBID: 42, Title: "Nova", Year: 2025}))

	ok, err := store.Contains(42)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Contains(7)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCorruptFileDegradesToEmpty(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "movies.json", []byte("{not json"), 0o644))
	store := NewStore(fs, "movies.json")

	movies, err := store.List()
	require.ErrorIs(t, err, ErrStoreCorrupt)
	require.Empty(t, movies)

	// A write after corruption starts over from an empty store.
	require.NoError(t, store.Upsert(models.TrackedMovie{TMDBID: 42, Title: "Nova", Year: 2025}))
	movies, err = store.List()
	require.NoError(t, err)
	require.Len(t, movies, 1)
}
