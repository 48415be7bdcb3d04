package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LoadAndGet(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "default.md"), []byte("系统提示词\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alt.txt"), []byte("备用模板"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignore.json"), []byte("{}"), 0o644))

	m := NewManager(dir)
	require.NoError(t, m.Load())

	content, ok := m.Get("default")
	require.True(t, ok)
	assert.Equal(t, "系统提示词", content)

	_, ok = m.Get("alt")
	assert.True(t, ok)

	_, ok = m.Get("ignore")
	assert.False(t, ok, "仅加载 md/txt")

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestManager_MissingDirIsError(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, m.Load())
}
