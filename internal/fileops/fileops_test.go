package fileops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCopyAndMove(t *testing.T) {
	tests := []struct {
		name string
		op   func(src, dst string) error
		// dst is relative to the test directory; "out/" names an existing directory.
		dst        string
		want       string
		keepSource bool
	}{
		{"copy to file", Copy, "nested/copy.mkv", "nested/copy.mkv", true},
		{"copy into directory", Copy, "out/", "out/episode.mkv", true},
		{"move to file", Move, "nested/moved.mkv", "nested/moved.mkv", false},
		{"move into directory", Move, "out/", "out/episode.mkv", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := writeFile(t, filepath.Join(dir, "episode.mkv"), "video")
			require.NoError(t, os.Mkdir(filepath.Join(dir, "out"), 0o755))

			require.NoError(t, tt.op(src, filepath.Join(dir, tt.dst)))

			assert.Equal(t, "video", readFile(t, filepath.Join(dir, tt.want)))
			assert.Equal(t, tt.keepSource, Exists(src))
		})
	}
}

func TestCopyAndMoveMissingSource(t *testing.T) {
	for name, op := range map[string]func(src, dst string) error{"copy": Copy, "move": Move} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			dst := filepath.Join(dir, "dst.mkv")
			assert.Error(t, op(filepath.Join(dir, "gone.mkv"), dst))
			assert.False(t, Exists(dst))
		})
	}
}

func TestCopyOverwritesDestination(t *testing.T) {
	dir := t.TempDir()
	src := writeFile(t, filepath.Join(dir, "a.txt"), "new")
	dst := writeFile(t, filepath.Join(dir, "b.txt"), "old contents")

	require.NoError(t, Copy(src, dst))
	assert.Equal(t, "new", readFile(t, dst))
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	present := writeFile(t, filepath.Join(dir, "present.mkv"), "x")
	full := filepath.Join(dir, "full")
	writeFile(t, filepath.Join(full, "child"), "x")

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"existing file", present, false},
		{"already gone", filepath.Join(dir, "gone.mkv"), false},
		{"non-empty directory", full, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Remove(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, Exists(tt.path))
		})
	}
}

func TestPathPredicates(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, filepath.Join(dir, "Sub.ASS"), "x")

	assert.True(t, IsFile(file))
	assert.False(t, IsDir(file))
	assert.True(t, IsDir(dir))
	assert.False(t, IsFile(dir))
	assert.False(t, Exists(filepath.Join(dir, "missing")))

	assert.True(t, HasExtension(file, ".ass", ".ssa"))
	assert.False(t, HasExtension(file, ".srt"))

	assert.NoError(t, EnsureDir(""))
	require.NoError(t, EnsureDir(filepath.Join(dir, "a", "b")))
	assert.True(t, IsDir(filepath.Join(dir, "a", "b")))
}
