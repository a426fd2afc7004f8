package watcher

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides which paths under a root are served sources worth reporting
// and which directories are skipped entirely. Patterns are doublestar globs
// matched against the slash-separated path relative to the root.
type Filter struct {
	root     string
	patterns []string
	ignore   []string
}

// NewFilter validates the patterns and returns a Filter for root.
func NewFilter(root string, patterns, ignore []string) (*Filter, error) {
	for _, pattern := range append(append([]string{}, patterns...), ignore...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, &PatternError{Pattern: pattern}
		}
	}
	return &Filter{
		root:     filepath.Clean(root),
		patterns: patterns,
		ignore:   ignore,
	}, nil
}

// PatternError reports a malformed glob.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return "invalid watch pattern: " + e.Pattern
}

func (f *Filter) relative(path string) (string, bool) {
	rel, err := filepath.Rel(f.root, filepath.Clean(path))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Match reports whether path is a source file that should produce events.
func (f *Filter) Match(path string) bool {
	rel, ok := f.relative(path)
	if !ok || rel == "." {
		return false
	}
	if f.ignored(rel) {
		return false
	}
	for _, pattern := range f.patterns {
		if doublestar.MatchUnvalidated(pattern, rel) {
			return true
		}
	}
	return false
}

// Ignored reports whether path, or one of its parent directories below the
// root, matches an ignore pattern.
func (f *Filter) Ignored(path string) bool {
	rel, ok := f.relative(path)
	if !ok {
		return true
	}
	if rel == "." {
		return false
	}
	return f.ignored(rel)
}

func (f *Filter) ignored(rel string) bool {
	if len(f.ignore) == 0 {
		return false
	}
	parts := strings.Split(rel, "/")
	for i := range parts {
		prefix := strings.Join(parts[:i+1], "/")
		for _, pattern := range f.ignore {
			if doublestar.MatchUnvalidated(pattern, prefix) {
				return true
			}
		}
	}
	return false
}
