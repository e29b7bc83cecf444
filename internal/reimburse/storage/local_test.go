package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bitfantasy/nimo-reimburse/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "INV1.pdf", strings.NewReader("first"), 5, "application/pdf"))
	err = store.Put(ctx, "INV1.pdf", strings.NewReader("second"), 6, "application/pdf")
	assert.ErrorIs(t, err, ErrExists)

	rc, err := store.Open(ctx, "INV1.pdf")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

func TestLocalStoreDeleteAndExists(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ok, err := store.Exists(ctx, "a.txt")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "a.txt", strings.NewReader("x"), 1, "text/plain"))
	ok, err = store.Exists(ctx, "a.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.Delete(ctx, "a.txt"))
	assert.ErrorIs(t, store.Delete(ctx, "a.txt"), ErrNotExist)

	_, err = store.Open(ctx, "a.txt")
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestLocalStorePathStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)

	assert.Equal(t, store.Path("passwd"), store.Path("../../etc/passwd"))
	assert.True(t, strings.HasPrefix(store.Path("../x"), dir))
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Driver: "ftp"}, config.MinIOConfig{})
	assert.Error(t, err)
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"INV1.pdf", "INV1_2.pdf", "attachment", "a-b.c"} {
		assert.True(t, ValidName(name), name)
	}
	for _, name := range []string{"", ".", "..", ".env", "../x", "a/b", `a\b`, "/etc/passwd"} {
		assert.False(t, ValidName(name), name)
	}
}

func TestLocalStoreRejectsDotNames(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{".", ".."} {
		_, err := store.Open(ctx, name)
		assert.ErrorIs(t, err, ErrNotExist, name)

		ok, err := store.Exists(ctx, name)
		require.NoError(t, err)
		assert.False(t, ok, name)

		assert.ErrorIs(t, store.Delete(ctx, name), ErrNotExist, name)
	}
	assert.ErrorIs(t, store.Put(ctx, "..", strings.NewReader("x"), 1, ""), ErrBadName)
}

func TestLocalStoreOpenSkipsDirectories(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocalStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	_, err = store.Open(ctx, "sub")
	assert.ErrorIs(t, err, ErrNotExist)
}
