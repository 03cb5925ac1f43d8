package delivery

import (
	"regexp"
	"strings"
)

// Markdown constructs removed or unwrapped when producing response_plain.
// The goal is a readable plain-text rendering, not a full CommonMark parse.
var (
	codeFencePattern  = regexp.MustCompile("(?m)^```[a-zA-Z0-9]*$\n?")
	inlineCodePattern = regexp.MustCompile("`([^`]*)`")
	boldPattern       = regexp.MustCompile(`\*\*([^*]+)\*\*|__([^_]+)__`)
	italicPattern     = regexp.MustCompile(`\*([^*]+)\*|_([^_]+)_`)
	linkPattern       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	headingPattern    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	blockquotePattern = regexp.MustCompile(`(?m)^>\s?`)
	bulletPattern     = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	hrPattern         = regexp.MustCompile(`(?m)^\s*(-{3,}|\*{3,}|_{3,})\s*$\n?`)
)

// StripMarkdown converts a markdown response into plain text: emphasis and
// code markers are unwrapped, links keep their text, headings and
// blockquote/bullet prefixes are removed. Line structure is preserved.
func StripMarkdown(s string) string {
	if s == "" {
		return ""
	}
	out := hrPattern.ReplaceAllString(s, "")
	out = codeFencePattern.ReplaceAllString(out, "")
	out = inlineCodePattern.ReplaceAllString(out, "$1")
	out = boldPattern.ReplaceAllString(out, "$1$2")
	out = italicPattern.ReplaceAllString(out, "$1$2")
	out = linkPattern.ReplaceAllString(out, "$1")
	out = headingPattern.ReplaceAllString(out, "")
	out = blockquotePattern.ReplaceAllString(out, "")
	out = bulletPattern.ReplaceAllString(out, "")
	return strings.TrimSpace(out)
}
