// Package masking scrubs credentials and secrets from conversation artifacts
// before they are exported. Patterns are regex-based, compiled once at
// startup, and selected through named pattern groups.
package masking

import (
	"log/slog"
	"regexp"
)

// Pattern is one named masking rule.
type Pattern struct {
	Pattern     string
	Replacement string
	Description string
}

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
	Description string
}

// builtinPatterns returns all built-in masking rules.
func builtinPatterns() map[string]Pattern {
	return map[string]Pattern{
		"api_key": {
			Pattern:     `(?i)(?:api[_-]?key|apikey)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{20,})["']?`,
			Replacement: `"api_key": "__MASKED_API_KEY__"`,
			Description: "API keys",
		},
		"password": {
			Pattern:     `(?i)(?:password|pwd|passwd)["']?\s*[:=]\s*["']?([^"'\s\n]{6,})["']?`,
			Replacement: `"password": "__MASKED_PASSWORD__"`,
			Description: "Passwords",
		},
		"token": {
			Pattern:     `(?i)(?:token|bearer|jwt)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`,
			Replacement: `"token": "__MASKED_TOKEN__"`,
			Description: "Access tokens",
		},
		"private_key": {
			Pattern:     `(?s)-----BEGIN [A-Z ]+-----.*?-----END [A-Z ]+-----`,
			Replacement: `__MASKED_PRIVATE_KEY__`,
			Description: "PEM-encoded keys and certificates",
		},
		"secret_key": {
			Pattern:     `(?i)(?:secret[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-\.]{20,})["']?`,
			Replacement: `"secret_key": "__MASKED_SECRET_KEY__"`,
			Description: "Secret keys",
		},
		"email": {
			Pattern:     `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`,
			Replacement: `__MASKED_EMAIL__`,
			Description: "Email addresses",
		},
		"aws_access_key": {
			Pattern:     `\bAKIA[A-Z0-9]{16}\b`,
			Replacement: `__MASKED_AWS_KEY__`,
			Description: "AWS access key ids",
		},
		"aws_secret_key": {
			Pattern:     `(?i)(?:aws[_-]?secret[_-]?access[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`,
			Replacement: `"aws_secret_access_key": "__MASKED_AWS_SECRET__"`,
			Description: "AWS secret keys",
		},
		"slack_token": {
			Pattern:     `(?i)xox[baprs]-[A-Za-z0-9-]{10,72}`,
			Replacement: `__MASKED_SLACK_TOKEN__`,
			Description: "Slack tokens",
		},
		"slack_signing_secret": {
			Pattern:     `(?i)(?:signing[_-]?secret)["']?\s*[:=]\s*["']?([A-Za-z0-9]{16,})["']?`,
			Replacement: `"signing_secret": "__MASKED_SIGNING_SECRET__"`,
			Description: "Chat signing secrets",
		},
	}
}

// builtinGroups returns the named pattern group definitions. "none" disables
// masking entirely.
func builtinGroups() map[string][]string {
	return map[string][]string{
		"basic":   {"api_key", "password"},
		"secrets": {"api_key", "password", "token", "private_key", "secret_key", "slack_token", "slack_signing_secret"},
		"cloud":   {"aws_access_key", "aws_secret_key", "api_key", "token"},
		"all": {"api_key", "password", "token", "private_key", "secret_key", "email",
			"aws_access_key", "aws_secret_key", "slack_token", "slack_signing_secret"},
		"none": {},
	}
}

// compilePatterns compiles the named patterns, logging and skipping any that
// fail to compile.
func compilePatterns(names []string) []*CompiledPattern {
	builtin := builtinPatterns()
	compiled := make([]*CompiledPattern, 0, len(names))
	for _, name := range names {
		p, ok := builtin[name]
		if !ok {
			slog.Error("Unknown masking pattern, skipping", "pattern", name)
			continue
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			slog.Error("Failed to compile masking pattern, skipping", "pattern", name, "error", err)
			continue
		}
		compiled = append(compiled, &CompiledPattern{
			Name:        name,
			Regex:       re,
			Replacement: p.Replacement,
			Description: p.Description,
		})
	}
	return compiled
}
