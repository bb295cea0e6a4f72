package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func collect(t *testing.T, opts Options) []string {
	t.Helper()
	results, err := Scan(context.Background(), opts)
	require.NoError(t, err)

	var paths []string
	for r := range results {
		require.NoError(t, r.Err)
		paths = append(paths, filepath.ToSlash(r.File.Path))
	}
	sort.Strings(paths)
	return paths
}

func TestScan_RecursiveFindsNestedFiles(t *testing.T) {
	root := buildTree(t, map[string]string{
		"a.txt":        "a",
		"docs/b.md":    "b",
		"docs/sub/c":   "c",
		"data/d.csv":   "d",
	})

	paths := collect(t, Options{Root: root, Recursive: true})
	assert.Equal(t, []string{"a.txt", "data/d.csv", "docs/b.md", "docs/sub/c"}, paths)
}

func TestScan_NonRecursiveStaysAtTopLevel(t *testing.T) {
	root := buildTree(t, map[string]string{
		"a.txt":     "a",
		"docs/b.md": "b",
	})

	paths := collect(t, Options{Root: root, Recursive: false})
	assert.Equal(t, []string{"a.txt"}, paths)
}

func TestScan_IncludeGlobs(t *testing.T) {
	root := buildTree(t, map[string]string{
		"a.txt":      "a",
		"b.csv":      "b",
		"docs/c.txt": "c",
	})

	paths := collect(t, Options{Root: root, Recursive: true, IncludeGlobs: []string{"*.txt"}})
	assert.Equal(t, []string{"a.txt", "docs/c.txt"}, paths)
}

func TestScan_ExcludeGlobsAndDirs(t *testing.T) {
	root := buildTree(t, map[string]string{
		"keep.txt":          "k",
		"skip.log":          "s",
		"build/out.txt":     "o",
		"node_modules/x.js": "x",
	})

	paths := collect(t, Options{
		Root: root, Recursive: true,
		ExcludeGlobs: []string{"*.log", "build"},
	})
	assert.Equal(t, []string{"keep.txt"}, paths)
}

func TestScan_DoubleStarPattern(t *testing.T) {
	root := buildTree(t, map[string]string{
		"src/deep/nested/gen.pb.go": "g",
		"src/main.go":               "m",
	})

	paths := collect(t, Options{
		Root: root, Recursive: true,
		ExcludeGlobs: []string{"**/*.pb.go"},
	})
	assert.Equal(t, []string{"src/main.go"}, paths)
}

func TestScan_SkipsOversizedFiles(t *testing.T) {
	root := buildTree(t, map[string]string{
		"small.txt": "ok",
		"big.txt":   string(make([]byte, 2048)),
	})

	paths := collect(t, Options{Root: root, Recursive: true, MaxFileSize: 1024})
	assert.Equal(t, []string{"small.txt"}, paths)
}

func TestScan_RejectsFileRoot(t *testing.T) {
	root := buildTree(t, map[string]string{"a.txt": "a"})

	_, err := Scan(context.Background(), Options{Root: filepath.Join(root, "a.txt")})
	assert.Error(t, err)
}

func TestScan_CancelledContextStopsStream(t *testing.T) {
	root := buildTree(t, map[string]string{"a.txt": "a", "b.txt": "b"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := Scan(ctx, Options{Root: root, Recursive: true})
	require.NoError(t, err)

	count := 0
	for range results {
		count++
	}
	assert.LessOrEqual(t, count, 2, "stream terminates promptly after cancellation")
}
