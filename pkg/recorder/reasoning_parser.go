package recorder

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/revops-ai/relay/pkg/models"
)

// Section markers found in agent reasoning blocks.
const (
	markerUser        = "[USER]"
	markerKnowledge   = "[KNOWLEDGE BASE SEARCH]"
	markerObservation = "[OBSERVATION]"
	markerAssistant   = "[ASSISTANT]"
)

// maxDecisionPoints bounds decision-point extraction per reasoning block.
const maxDecisionPoints = 5

// fallbackTextLimit bounds the raw text preserved when parsing fails.
const fallbackTextLimit = 1000

var (
	currentDatePattern = regexp.MustCompile(`(?i)today is (\d{4}-\d{2}-\d{2})`)
	quarterPattern     = regexp.MustCompile(`(?i)current quarter:?\s*(Q[1-4]\s*\d{4})`)

	kbIDPattern     = regexp.MustCompile(`(?i)knowledge[ _-]base(?:\s*id)?:?\s*([A-Za-z0-9_-]+)`)
	locationPattern = regexp.MustCompile(`s3://[^\s)]+`)

	toolNamePattern = regexp.MustCompile(`(?im)^tool:\s*(\S+)`)
	paramsPattern   = regexp.MustCompile(`(?im)^parameters:\s*(.+)$`)
	resultPattern   = regexp.MustCompile(`(?im)^(?:result|output):\s*(.+)$`)
	errorPattern    = regexp.MustCompile(`(?im)^error:\s*(.+)$`)
	rowCountPattern = regexp.MustCompile(`(?i)(\d+)\s+rows?`)

	// Bounded set of decision phrasings. Anything outside these shapes is
	// intentionally not treated as a decision point.
	decisionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)based on [^,.\n]+, i (?:will|need to|should) [^.\n]+\.?`),
		regexp.MustCompile(`(?i)\bi will (?:now )?[^.\n]+\.?`),
		regexp.MustCompile(`(?i)\bi need to [^.\n]+\.?`),
		regexp.MustCompile(`(?i)\bnext,? i (?:will|should) [^.\n]+\.?`),
	}

	errorTokenPattern   = regexp.MustCompile(`(?i)\b(error|failed|failure|exception|timeout)\b`)
	successTokenPattern = regexp.MustCompile(`(?i)\b(success|succeeded|completed|retrieved|returned)\b`)
)

// section is one labeled block of reasoning text, in source order.
type section struct {
	marker string
	text   string
}

// ParseReasoning splits a reasoning block on its labeled section markers and
// extracts the structured breakdown. It never fails: unparseable input
// degrades to a fallback carrying the original text head and a parsing
// error note.
func ParseReasoning(text string) (breakdown *models.ReasoningBreakdown) {
	defer func() {
		if r := recover(); r != nil {
			breakdown = fallbackBreakdown(text, fmt.Sprintf("parser panic: %v", r))
		}
	}()

	if strings.TrimSpace(text) == "" {
		return &models.ReasoningBreakdown{}
	}

	sections := splitSections(text)
	if len(sections) == 0 {
		// Unlabeled free text still yields decision points and a synthesis.
		return &models.ReasoningBreakdown{
			DecisionPoints: extractDecisionPoints(text),
			FinalSynthesis: extractSynthesis(text),
		}
	}

	out := &models.ReasoningBreakdown{}
	for _, sec := range sections {
		switch sec.marker {
		case markerUser:
			if out.ContextSetup == nil {
				out.ContextSetup = extractContextSetup(sec.text)
			}
		case markerKnowledge:
			out.KnowledgeSearches = append(out.KnowledgeSearches, extractKnowledgeSearch(sec.text))
		case markerObservation:
			execs, err := extractToolExecutions(sec.text)
			if err != nil {
				// A corrupt observation poisons the whole block: keep the
				// raw head instead of a partial, misleading breakdown.
				return fallbackBreakdown(text, err.Error())
			}
			out.ToolExecutions = append(out.ToolExecutions, execs...)
		case markerAssistant:
			if out.FinalSynthesis == nil {
				out.FinalSynthesis = extractSynthesis(sec.text)
			}
		}
	}
	out.DecisionPoints = extractDecisionPoints(text)
	return out
}

func fallbackBreakdown(text, reason string) *models.ReasoningBreakdown {
	head := text
	if len(head) > fallbackTextLimit {
		head = head[:fallbackTextLimit]
	}
	return &models.ReasoningBreakdown{
		ParsingError: reason,
		OriginalText: head,
	}
}

// splitSections walks the text line by line, starting a new section at each
// marker line. Text before the first marker is ignored.
func splitSections(text string) []section {
	var sections []section
	var current *section

	flush := func() {
		if current != nil {
			current.text = strings.TrimSpace(current.text)
			sections = append(sections, *current)
			current = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if marker := matchMarker(trimmed); marker != "" {
			flush()
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, marker))
			current = &section{marker: marker, text: rest}
			if rest != "" {
				current.text += "\n"
			}
			continue
		}
		if current != nil {
			current.text += line + "\n"
		}
	}
	flush()
	return sections
}

func matchMarker(line string) string {
	for _, m := range []string{markerUser, markerKnowledge, markerObservation, markerAssistant} {
		if strings.HasPrefix(line, m) {
			return m
		}
	}
	return ""
}

func extractContextSetup(text string) *models.ContextSetup {
	setup := &models.ContextSetup{}
	if m := currentDatePattern.FindStringSubmatch(text); m != nil {
		setup.CurrentDate = m[1]
	}
	if m := quarterPattern.FindStringSubmatch(text); m != nil {
		setup.Quarter = m[1]
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Current context") ||
			strings.HasPrefix(line, "Current quarter") ||
			strings.HasPrefix(line, "Current month") ||
			strings.HasPrefix(line, "Current year") {
			continue
		}
		setup.UserRequest = line
		break
	}
	return setup
}

func extractKnowledgeSearch(text string) models.KnowledgeSearch {
	search := models.KnowledgeSearch{}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if q, ok := strings.CutPrefix(line, "Query:"); ok {
			search.Query = strings.TrimSpace(q)
			continue
		}
		if c, ok := strings.CutPrefix(line, "Reference:"); ok {
			ref := models.KnowledgeReference{Content: strings.TrimSpace(c)}
			if loc := locationPattern.FindString(ref.Content); loc != "" {
				ref.Location = loc
				ref.Content = strings.TrimSpace(strings.Replace(ref.Content, loc, "", 1))
				ref.Content = strings.TrimSpace(strings.Trim(ref.Content, "()"))
			}
			if len(ref.Content) > 500 {
				ref.Content = ref.Content[:500]
			}
			search.References = append(search.References, ref)
		}
	}

	if m := kbIDPattern.FindStringSubmatch(text); m != nil {
		search.KnowledgeBaseID = m[1]
	}
	if search.Query == "" {
		for _, line := range strings.Split(text, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				search.Query = line
				break
			}
		}
	}
	return search
}

// extractToolExecutions parses one observation section. A non-empty section
// that is not valid UTF-8 or carries no tool line is corrupt; the error makes
// ParseReasoning degrade to the raw-head fallback.
func extractToolExecutions(text string) ([]models.ToolExecution, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if !utf8.ValidString(text) {
		return nil, errors.New("observation section is not valid UTF-8")
	}
	names := toolNamePattern.FindAllStringSubmatch(text, -1)
	if len(names) == 0 {
		return nil, errors.New("observation section has no recognizable tool invocation")
	}

	params := paramsPattern.FindAllStringSubmatch(text, -1)
	results := resultPattern.FindAllStringSubmatch(text, -1)
	errs := errorPattern.FindAllStringSubmatch(text, -1)

	execs := make([]models.ToolExecution, 0, len(names))
	for i, m := range names {
		exec := models.ToolExecution{ToolName: m[1], Success: true}
		if i < len(params) {
			exec.ParametersSummary = strings.TrimSpace(params[i][1])
		}
		if i < len(results) {
			exec.ResultSummary = strings.TrimSpace(results[i][1])
		}
		if i < len(errs) {
			exec.ResultSummary = strings.TrimSpace(errs[i][1])
			exec.Success = false
		}
		if exec.ResultSummary == "" {
			if m := rowCountPattern.FindStringSubmatch(text); m != nil {
				exec.ResultSummary = m[1] + " rows"
			}
		}
		execs = append(execs, exec)
	}
	return execs, nil
}

func extractDecisionPoints(text string) []string {
	var points []string
	seen := make(map[string]bool)
	for _, pattern := range decisionPatterns {
		for _, m := range pattern.FindAllString(text, -1) {
			m = strings.TrimSpace(m)
			if seen[m] {
				continue
			}
			seen[m] = true
			points = append(points, m)
			if len(points) >= maxDecisionPoints {
				return points
			}
		}
	}
	return points
}

func extractSynthesis(text string) *models.FinalSynthesis {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	synth := &models.FinalSynthesis{
		Approach:   firstSentence(text),
		Confidence: confidenceBucket(text),
	}

	seen := make(map[string]bool)
	for _, m := range kbIDPattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			synth.DataSources = append(synth.DataSources, m[1])
		}
	}
	for _, m := range toolNamePattern.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			synth.DataSources = append(synth.DataSources, m[1])
		}
	}
	return synth
}

// confidenceBucket derives a coarse confidence from outcome tokens: error
// tokens push low, success tokens push high, neither is medium.
func confidenceBucket(text string) string {
	switch {
	case errorTokenPattern.MatchString(text):
		return "low"
	case successTokenPattern.MatchString(text):
		return "high"
	default:
		return "medium"
	}
}

func firstSentence(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if idx := strings.IndexAny(line, ".!?"); idx != -1 {
			return line[:idx+1]
		}
		return line
	}
	return ""
}
