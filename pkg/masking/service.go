package masking

import (
	"fmt"
	"log/slog"
)

// Service applies a fixed pattern group to artifact text. Created once at
// startup; safe for concurrent use.
type Service struct {
	group    string
	patterns []*CompiledPattern
}

// NewService creates a masking service for the named pattern group.
func NewService(group string) (*Service, error) {
	names, ok := builtinGroups()[group]
	if !ok {
		return nil, fmt.Errorf("unknown masking pattern group %q", group)
	}

	s := &Service{
		group:    group,
		patterns: compilePatterns(names),
	}

	slog.Info("Masking service initialized",
		"pattern_group", group,
		"compiled_patterns", len(s.patterns))
	return s, nil
}

// Mask applies all patterns in the group to the text. With the "none" group
// the text passes through unchanged.
func (s *Service) Mask(text string) string {
	if text == "" || len(s.patterns) == 0 {
		return text
	}
	masked := text
	for _, p := range s.patterns {
		masked = p.Regex.ReplaceAllString(masked, p.Replacement)
	}
	return masked
}
