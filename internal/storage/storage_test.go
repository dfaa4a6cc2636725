package storage

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendContract exercises the Backend semantics every implementation must
// provide.
func backendContract(t *testing.T, b Backend) {
	t.Helper()

	// Absent key.
	_, found, err := b.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	// Point put/get.
	require.NoError(t, b.Put("k1", []byte("v1")))
	value, found, err := b.Get("k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("v1"), value)

	// Overwrite.
	require.NoError(t, b.Put("k1", []byte("v2")))
	value, _, _ = b.Get("k1")
	assert.Equal(t, []byte("v2"), value)

	// Delete, including an absent key.
	require.NoError(t, b.Delete("k1"))
	_, found, err = b.Get("k1")
	require.NoError(t, err)
	assert.False(t, found)
	require.NoError(t, b.Delete("never-existed"))

	// Batch applies in order: a put then delete of the same key deletes.
	batch := new(Batch)
	batch.Put("a", []byte("1"))
	batch.Put("b", []byte("2"))
	batch.Put("c", []byte("3"))
	batch.Delete("b")
	require.Equal(t, 4, batch.Len())
	require.NoError(t, b.Write(batch))

	value, found, _ = b.Get("a")
	require.True(t, found)
	assert.Equal(t, []byte("1"), value)
	_, found, _ = b.Get("b")
	assert.False(t, found)
	value, found, _ = b.Get("c")
	require.True(t, found)
	assert.Equal(t, []byte("3"), value)

	// Empty batch is a no-op.
	require.NoError(t, b.Write(new(Batch)))
}

func TestMemoryBackend_Contract(t *testing.T) {
	b := NewMemoryBackend()
	backendContract(t, b)
	require.NoError(t, b.Close())
}

func TestMemoryBackend_Closed(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Put("k", []byte("v")))
	require.NoError(t, b.Close())

	_, _, err := b.Get("k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Put("k", nil), ErrClosed)
	assert.ErrorIs(t, b.Delete("k"), ErrClosed)
	assert.ErrorIs(t, b.Write(new(Batch)), ErrClosed)
}

func TestMemoryBackend_GetReturnsCopy(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Put("k", []byte("abc")))

	value, _, _ := b.Get("k")
	value[0] = 'x'

	fresh, _, _ := b.Get("k")
	assert.Equal(t, []byte("abc"), fresh)
}

func TestBatch_PutCopiesValue(t *testing.T) {
	b := NewMemoryBackend()
	value := []byte("abc")

	batch := new(Batch)
	batch.Put("k", value)
	value[0] = 'x' // mutate after queueing

	require.NoError(t, b.Write(batch))
	stored, _, _ := b.Get("k")
	assert.Equal(t, []byte("abc"), stored)
}

func TestLevelDBBackend_Contract(t *testing.T) {
	b, err := OpenLevelDB(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer b.Close()

	backendContract(t, b)
}

func TestLevelDBBackend_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")

	b, err := OpenLevelDB(path)
	require.NoError(t, err)
	batch := new(Batch)
	for i := 0; i < 100; i++ {
		batch.Put(fmt.Sprintf("key-%03d", i), []byte(fmt.Sprintf("value-%d", i)))
	}
	require.NoError(t, b.Write(batch))
	require.NoError(t, b.Close())

	b, err = OpenLevelDB(path)
	require.NoError(t, err)
	defer b.Close()

	value, found, err := b.Get("key-042")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("value-42"), value)
}
