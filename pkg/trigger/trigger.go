// Package trigger decides whether a workflow run should start.
package trigger

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

type Kind string

const (
	Manual Kind = "manual"
	Push   Kind = "push"
)

// Event describes what asked for a workflow run. ChangedFiles is only set for
// push events.
type Event struct {
	Kind         Kind
	ChangedFiles []string
}

// ShouldRun reports whether an event activates a workflow with the given path
// patterns. Manual events always activate. Push events activate iff at least
// one changed file matches one of the patterns. A non-match is a normal
// negative result; only a malformed pattern is an error.
func ShouldRun(event Event, patterns []string) (bool, error) {
	if event.Kind == Manual {
		return true, nil
	}

	for _, pattern := range patterns {
		for _, file := range event.ChangedFiles {
			match, err := doublestar.Match(pattern, filepath.ToSlash(file))
			if err != nil {
				return false, fmt.Errorf("trigger: invalid path pattern %q: %w", pattern, err)
			}
			if match {
				return true, nil
			}
		}
	}
	return false, nil
}
