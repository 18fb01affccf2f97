package ingestion

import (
	"maps"
	"path"
	"strings"
)

// DefaultLevel is the abstraction level of paths that match no keyword.
const DefaultLevel = 1

// defaultKeywords maps path components to abstraction levels: data shapes
// lowest, entrypoints highest.
var defaultKeywords = map[string]int{
	"models":  0,
	"types":   0,
	"schemas": 0,

	"services": 1,
	"utils":    1,
	"hooks":    1,
	"lib":      1,

	"api":        2,
	"routes":     2,
	"components": 2,
	"views":      2,

	"main":  3,
	"app":   3,
	"index": 3,
}

// Levels classifies repo-relative paths into abstraction levels.
type Levels struct {
	keywords map[string]int
}

// DefaultLevels returns the built-in keyword lexicon.
func DefaultLevels() *Levels {
	return &Levels{keywords: maps.Clone(defaultKeywords)}
}

// NewLevels returns the built-in lexicon with overrides applied on top.
func NewLevels(overrides map[string]int) *Levels {
	l := DefaultLevels()
	maps.Copy(l.keywords, overrides)
	return l
}

// Keywords returns a copy of the lexicon.
func (l *Levels) Keywords() map[string]int {
	return maps.Clone(l.keywords)
}

// Classify returns the level of the first path component that matches a
// keyword. Source extensions are stripped before matching; other dotted
// names such as api.v2 must match whole.
func (l *Levels) Classify(p string) int {
	for _, part := range strings.Split(p, "/") {
		stem := part
		if LanguageFor(part) != "" {
			stem = strings.TrimSuffix(part, path.Ext(part))
		}
		if level, ok := l.keywords[stem]; ok {
			return level
		}
	}
	return DefaultLevel
}
