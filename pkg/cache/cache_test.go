package cache

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSet(t *testing.T) {
	c := New(0)

	_, found := c.Get("missing")
	assert.False(t, found)

	c.Set("k1", []byte("report-1"))
	got, found := c.Get("k1")
	require.True(t, found)
	assert.Equal(t, []byte("report-1"), got)

	c.Set("k1", []byte("report-2"))
	got, _ = c.Get("k1")
	assert.Equal(t, []byte("report-2"), got)
	assert.Equal(t, 1, c.Len())
}

func TestLRUEviction(t *testing.T) {
	c := New(3)
	for i := 0; i < 3; i++ {
		c.Set(fmt.Sprintf("k%d", i), []byte{byte(i)})
	}

	// Touch k0 so k1 becomes the eviction candidate.
	_, found := c.Get("k0")
	require.True(t, found)

	c.Set("k3", []byte{3})
	assert.Equal(t, 3, c.Len())

	_, found = c.Get("k1")
	assert.False(t, found, "least recently used entry should be evicted")
	_, found = c.Get("k0")
	assert.True(t, found)
	_, found = c.Get("k3")
	assert.True(t, found)
}

func TestDeleteAndClear(t *testing.T) {
	c := New(0)
	c.Set("k1", []byte("a"))
	c.Set("k2", []byte("b"))

	c.Delete("k1")
	c.Delete("k1") // deleting twice is a no-op
	_, found := c.Get("k1")
	assert.False(t, found)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	c := New(0)
	c.Set("k1", []byte("report-1"))
	c.Set("k2", []byte("report-2"))

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	restored := New(0)
	require.NoError(t, restored.Load(&buf))
	assert.Equal(t, 2, restored.Len())

	got, found := restored.Get("k2")
	require.True(t, found)
	assert.Equal(t, []byte("report-2"), got)
}

func TestLoadDiscardsUnknownVersion(t *testing.T) {
	c := New(0)
	c.Set("k1", []byte("a"))

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	// Patch the version value; msgpack encodes small ints as a single byte
	// directly after the field name.
	data := buf.Bytes()
	data[bytes.Index(data, []byte("version"))+len("version")] = 0x63

	restored := New(0)
	require.NoError(t, restored.Load(bytes.NewReader(data)))
	assert.Equal(t, 0, restored.Len())
}

func TestFilePersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "reports.bin")

	c := New(0)
	c.Set("k1", []byte("report-1"))
	require.NoError(t, c.SaveFile(path), "parent directories are created")

	restored := New(0)
	require.NoError(t, restored.LoadFile(path))
	got, found := restored.Get("k1")
	require.True(t, found)
	assert.Equal(t, []byte("report-1"), got)
}

func TestLoadFileMissingIsNotAnError(t *testing.T) {
	c := New(0)
	require.NoError(t, c.LoadFile(filepath.Join(t.TempDir(), "absent.bin")))
	assert.Equal(t, 0, c.Len())
}

func TestKey(t *testing.T) {
	data := []byte("graph contents")
	settings := map[string]string{"precisions": "fp32", "force": "false"}

	k1 := Key(data, settings)
	k2 := Key(data, map[string]string{"force": "false", "precisions": "fp32"})
	assert.Equal(t, k1, k2, "key is independent of settings map order")

	assert.NotEqual(t, k1, Key([]byte("other graph"), settings))
	assert.NotEqual(t, k1, Key(data, map[string]string{"precisions": "fp32", "force": "true"}))
}
