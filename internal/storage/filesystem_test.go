package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreWriteRead(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	key, err := store.Write(context.Background(), "generated/job-1.png", []byte("imagebytes"))
	require.NoError(t, err)
	assert.Equal(t, "generated/job-1.png", key)

	data, err := store.Read(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("imagebytes"), data)
}

func TestFileStoreSanitizesTraversal(t *testing.T) {
	base := t.TempDir()
	store, err := NewFileStore(base)
	require.NoError(t, err)

	_, err = store.Write(context.Background(), "../escape.txt", []byte("x"))
	assert.Error(t, err)

	_, err = store.Read(context.Background(), "../../etc/passwd")
	assert.Error(t, err)

	// A leading slash is treated as relative to the root, not absolute.
	key, err := store.Write(context.Background(), "/nested/asset.png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "nested/asset.png", key)
	_, statErr := os.Stat(filepath.Join(base, "nested", "asset.png"))
	assert.NoError(t, statErr)
}

func TestFileStoreRejectsEmptyBasePath(t *testing.T) {
	_, err := NewFileStore("   ")
	assert.Error(t, err)
}

func TestFileStoreReadMissingKey(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read(context.Background(), "generated/nope.png")
	assert.Error(t, err)
}

func TestNilFileStore(t *testing.T) {
	var store *FileStore
	assert.Empty(t, store.BasePath())

	_, err := store.Write(context.Background(), "k", []byte("x"))
	assert.Error(t, err)
	_, err = store.Read(context.Background(), "k")
	assert.Error(t, err)
}
