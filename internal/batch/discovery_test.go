package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}
}

func TestDiscoverImageFiles_EmptyArgs(t *testing.T) {
	files, err := discoverImageFiles(nil, false, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscoverImageFiles_SkipsUnsupported(t *testing.T) {
	dir := t.TempDir()
	png := filepath.Join(dir, "a.png")
	bmp := filepath.Join(dir, "b.bmp")
	txt := filepath.Join(dir, "notes.txt")
	touch(t, png, bmp, txt)

	files, err := discoverImageFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{png, bmp}, files)

	files, err = discoverImageFiles([]string{txt, png}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{png}, files)
}

func TestDiscoverImageFiles_Recursive(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "root.png")
	sub := filepath.Join(dir, "sub", "sub.png")
	touch(t, root, sub)

	files, err := discoverImageFiles([]string{dir}, true, nil, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{root, sub}, files)

	files, err = discoverImageFiles([]string{dir}, false, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{root}, files)
}

func TestDiscoverImageFiles_Patterns(t *testing.T) {
	dir := t.TempDir()
	keep := filepath.Join(dir, "shape_1.png")
	drop := filepath.Join(dir, "shape_1_overlay.png")
	other := filepath.Join(dir, "photo.jpg")
	touch(t, keep, drop, other)

	files, err := discoverImageFiles([]string{dir}, false, []string{"shape_*"}, []string{"*_overlay.png"})
	require.NoError(t, err)
	assert.Equal(t, []string{keep}, files)
}

func TestDiscoverImageFiles_MissingPath(t *testing.T) {
	_, err := discoverImageFiles([]string{filepath.Join(t.TempDir(), "nope")}, false, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot access")
}

func TestMatchesAnyPattern(t *testing.T) {
	assert.False(t, matchesAnyPattern("/a/b.png", nil))
	assert.True(t, matchesAnyPattern("/a/b.png", []string{"*.jpg", "b.*"}))
	assert.False(t, matchesAnyPattern("/a/b.png", []string{"[invalid"}))
}
