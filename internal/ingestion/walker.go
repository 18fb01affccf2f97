// Package ingestion discovers source files and builds Prism architecture
// graphs from them.
package ingestion

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/rHedBull/prism/internal/parsers"
)

// SourceFile represents a discovered source file.
type SourceFile struct {
	// Path is the POSIX-separated path relative to the root.
	Path string

	// AbsPath is the file path on disk, empty for files read from git.
	AbsPath string

	// Language is the language id assigned from the extension.
	Language string

	// Content is the file content.
	Content []byte
}

// Supported file extensions and their languages.
var supportedExtensions = map[string]string{
	".py":  parsers.LangPython,
	".ts":  parsers.LangTypeScript,
	".tsx": parsers.LangTypeScriptReact,
	".js":  parsers.LangJavaScript,
	".mjs": parsers.LangJavaScript,
	".cjs": parsers.LangJavaScript,
	".jsx": parsers.LangJavaScriptReact,
}

// DefaultSkipDirs are directory names that are never descended into.
var DefaultSkipDirs = []string{
	"node_modules",
	".git",
	"__pycache__",
	".venv",
	"venv",
	"dist",
	"build",
	".callgraph",
	".tox",
	".mypy_cache",
	".pytest_cache",
}

// LanguageFor returns the language id for a file name, or "" when the
// extension is not supported.
func LanguageFor(name string) string {
	return supportedExtensions[path.Ext(name)]
}

// filter decides which paths discovery keeps.
type filter struct {
	skip    map[string]bool
	matcher gitignore.Matcher
}

func newFilter(patterns []gitignore.Pattern, skipDirs []string) *filter {
	f := &filter{skip: make(map[string]bool, len(DefaultSkipDirs)+len(skipDirs))}
	for _, d := range DefaultSkipDirs {
		f.skip[d] = true
	}
	for _, d := range skipDirs {
		f.skip[d] = true
	}
	if len(patterns) > 0 {
		f.matcher = gitignore.NewMatcher(patterns)
	}
	return f
}

// skipDir reports whether the directory at the POSIX relative path rel
// should be pruned.
func (f *filter) skipDir(rel string) bool {
	if f.skip[path.Base(rel)] {
		return true
	}
	return f.matcher != nil && f.matcher.Match(strings.Split(rel, "/"), true)
}

// keepFile reports whether the file at rel is a supported, non-ignored source.
func (f *filter) keepFile(rel string) bool {
	if LanguageFor(rel) == "" {
		return false
	}
	parts := strings.Split(rel, "/")
	for _, dir := range parts[:len(parts)-1] {
		if f.skip[dir] {
			return false
		}
	}
	return f.matcher == nil || !f.matcher.Match(parts, false)
}

// Discover walks root and returns every supported source file, sorted by
// relative path. Unreadable files abort the walk.
func Discover(root string, skipDirs ...string) ([]SourceFile, error) {
	patterns, err := loadGitignore(root)
	if err != nil {
		return nil, fmt.Errorf("loading .gitignore: %w", err)
	}
	f := newFilter(patterns, skipDirs)

	var files []SourceFile
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if f.skipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || !f.keepFile(rel) {
			return nil
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", rel, err)
		}
		files = append(files, SourceFile{
			Path:     rel,
			AbsPath:  p,
			Language: LanguageFor(rel),
			Content:  content,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sortFiles(files)
	return files, nil
}

func sortFiles(files []SourceFile) {
	slices.SortFunc(files, func(a, b SourceFile) int {
		return strings.Compare(a.Path, b.Path)
	})
}

// loadGitignore loads .gitignore patterns from the repository root. A
// missing file yields no patterns.
func loadGitignore(root string) ([]gitignore.Pattern, error) {
	content, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return parseGitignore(string(content)), nil
}

func parseGitignore(content string) []gitignore.Pattern {
	var patterns []gitignore.Pattern
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	return patterns
}
