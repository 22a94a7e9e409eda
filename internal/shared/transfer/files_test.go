package transfer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a")
	writeFile(t, dir, "b.txt", "b")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	writeFile(t, filepath.Join(dir, "nested"), "c.txt", "c")

	files, err := ListDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 2, "directories and nested files are skipped")
}

func TestListDirEmpty(t *testing.T) {
	files, err := ListDir(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, files)
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a")
	writeFile(t, dir, "b.log", "b")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	writeFile(t, filepath.Join(dir, "sub"), "c.txt", "c")

	files, err := FindFiles([]string{filepath.Join(dir, "**", "*.txt")})
	require.NoError(t, err)
	require.Len(t, files, 2)
}
