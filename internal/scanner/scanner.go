// Package scanner discovers ingestible files under a root directory,
// applying include/exclude glob patterns and size limits. Results are
// streamed over a channel so large trees do not buffer in memory.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultMaxFileSize is the size cutoff when options do not set one.
const DefaultMaxFileSize = 50 * 1024 * 1024

// defaultExcludeDirs are skipped in every scan regardless of patterns.
var defaultExcludeDirs = []string{
	".git", ".hg", ".svn",
	"node_modules", "vendor",
	"__pycache__", ".venv", "venv",
	".idea", ".vscode",
}

// FileInfo describes one discovered file.
type FileInfo struct {
	// Path is relative to the scan root.
	Path string

	// AbsPath is the absolute filesystem path.
	AbsPath string

	Size    int64
	ModTime time.Time
}

// Result is one element of the scan stream.
type Result struct {
	File *FileInfo
	Err  error
}

// Options configures a scan.
type Options struct {
	// Root is the directory to scan.
	Root string

	// Recursive descends into subdirectories. When false only the
	// root's direct children are considered.
	Recursive bool

	// IncludeGlobs keeps only matching files when non-empty. Patterns
	// match against the relative path and the base name.
	IncludeGlobs []string

	// ExcludeGlobs drops matching files and directories.
	ExcludeGlobs []string

	// MaxFileSize skips files larger than this many bytes.
	MaxFileSize int64

	// FollowSymlinks includes symlinked files (default: skip).
	FollowSymlinks bool
}

// Scan walks the root and streams discovered files. The channel closes
// when the walk completes or the context is cancelled.
func Scan(ctx context.Context, opts Options) (<-chan Result, error) {
	root := opts.Root
	if root == "" {
		root = "."
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat scan root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scan root is not a directory: %s", absRoot)
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	results := make(chan Result, 64)
	go func() {
		defer close(results)
		walk(ctx, absRoot, opts, results)
	}()
	return results, nil
}

func walk(ctx context.Context, absRoot string, opts Options, results chan<- Result) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil // unreadable entries are skipped
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil || relPath == "." {
			return nil
		}

		if d.IsDir() {
			if !opts.Recursive {
				return filepath.SkipDir
			}
			if ExcludedDir(relPath, opts.ExcludeGlobs) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if MatchesAny(relPath, opts.ExcludeGlobs) {
			return nil
		}
		if len(opts.IncludeGlobs) > 0 && !MatchesAny(relPath, opts.IncludeGlobs) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > opts.MaxFileSize {
			return nil
		}

		select {
		case results <- Result{File: &FileInfo{
			Path:    relPath,
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}}:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- Result{Err: err}:
		default:
		}
	}
}

// ExcludedDir checks the built-in directory exclusions plus any custom
// patterns against each path segment.
func ExcludedDir(relPath string, patterns []string) bool {
	parts := strings.Split(relPath, string(filepath.Separator))
	name := parts[len(parts)-1]
	for _, d := range defaultExcludeDirs {
		if name == d {
			return true
		}
	}
	return MatchesAny(relPath, patterns)
}

// MatchesAny tests a relative path against glob patterns. A pattern is
// tried against the full relative path, the base name, and, for "**/"
// prefixed patterns, every path suffix.
func MatchesAny(relPath string, patterns []string) bool {
	base := filepath.Base(relPath)
	for _, pattern := range patterns {
		if ok, _ := filepath.Match(pattern, relPath); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
		if rest, found := strings.CutPrefix(pattern, "**/"); found {
			parts := strings.Split(relPath, string(filepath.Separator))
			for i := range parts {
				suffix := filepath.Join(parts[i:]...)
				if ok, _ := filepath.Match(rest, suffix); ok {
					return true
				}
			}
		}
	}
	return false
}
