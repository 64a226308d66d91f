package karma_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gissleh/tally/karma"
)

func TestStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "karma.db")

	store, err := karma.Open(path)
	require.NoError(t, err)
	defer store.Close()

	score, err := store.Increment("Cake")
	require.NoError(t, err)
	assert.Equal(t, int64(1), score)

	// Keys are case-normalized before lookup.
	score, err = store.Increment("cake")
	require.NoError(t, err)
	assert.Equal(t, int64(2), score)

	score, err = store.Decrement("CAKE")
	require.NoError(t, err)
	assert.Equal(t, int64(1), score)

	score, err = store.Score("cake")
	require.NoError(t, err)
	assert.Equal(t, int64(1), score)

	score, err = store.Score("unknown")
	require.NoError(t, err)
	assert.Equal(t, int64(0), score)
}

func TestStoreEmptyKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "karma.db")

	store, err := karma.Open(path)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Increment("   ")
	assert.ErrorIs(t, err, karma.ErrEmptyKey)

	_, err = store.Decrement("")
	assert.ErrorIs(t, err, karma.ErrEmptyKey)

	_, err = store.Score("")
	assert.ErrorIs(t, err, karma.ErrEmptyKey)
}

func TestStoreNegative(t *testing.T) {
	path := filepath.Join(t.TempDir(), "karma.db")

	store, err := karma.Open(path)
	require.NoError(t, err)
	defer store.Close()

	score, err := store.Decrement("gravity")
	require.NoError(t, err)
	assert.Equal(t, int64(-1), score)
}

func TestStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "karma.db")

	store, err := karma.Open(path)
	require.NoError(t, err)

	_, err = store.Increment("durable")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = karma.Open(path)
	require.NoError(t, err)
	defer store.Close()

	score, err := store.Score("durable")
	require.NoError(t, err)
	assert.Equal(t, int64(1), score)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "cake", karma.Normalize("  CaKe "))
	assert.Equal(t, "", karma.Normalize("   "))
}
