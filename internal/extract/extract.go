// Package extract pulls memory candidates and entity mentions out of
// free-form conversation text using pattern heuristics.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

// Candidate is a span of text worth remembering, with the type and scores
// the heuristics assigned it.
type Candidate struct {
	Content    string
	Type       string
	Salience   float64
	Confidence float64
}

// Extractor turns raw text into memory candidates.
type Extractor interface {
	Extract(text string, minConfidence float64) []Candidate
}

// HeuristicExtractor matches sentence-like chunks against per-type pattern
// tables. No model calls, deterministic output.
type HeuristicExtractor struct {
	decision   *regexp.Regexp
	preference *regexp.Regexp
	insight    *regexp.Regexp
	goal       *regexp.Regexp
}

var decisionPatterns = []string{
	`we (?:decided|agreed|chose|will|should|going to|need to)\b`,
	`let'?s\b`,
	`the plan is\b`,
	`(?:i|we) (?:want|need) to\b`,
	`pivot(?:ed|ing)?\b`,
}

var preferencePatterns = []string{
	`(?:i|you|we) (?:prefer|like|love|want|don'?t like|hate)\b`,
	`(?:better|best|favorite|rather)\b`,
}

var insightPatterns = []string{
	`(?:the key|important|insight|learned|realized|discovered)\b`,
	`turns out\b`,
	`the (?:problem|issue|challenge|opportunity) is\b`,
}

var goalPatterns = []string{
	`(?:goal|objective|target|aim) is\b`,
	`we'?re (?:building|creating|making|trying to)\b`,
	`the vision is\b`,
}

const minChunkLen = 20

// NewHeuristicExtractor compiles the pattern tables once.
func NewHeuristicExtractor() *HeuristicExtractor {
	compile := func(patterns []string) *regexp.Regexp {
		return regexp.MustCompile(`(?i)` + strings.Join(patterns, "|"))
	}
	return &HeuristicExtractor{
		decision:   compile(decisionPatterns),
		preference: compile(preferencePatterns),
		insight:    compile(insightPatterns),
		goal:       compile(goalPatterns),
	}
}

// Extract splits text into sentence-like chunks and classifies each one.
// Chunks shorter than 20 characters are skipped; near-duplicates collapse to
// the first occurrence. Decisions win over preferences win over insights
// win over goals when a chunk matches several tables.
func (e *HeuristicExtractor) Extract(text string, minConfidence float64) []Candidate {
	var out []Candidate
	for _, chunk := range Split(text) {
		if len(chunk) < minChunkLen {
			continue
		}
		var c Candidate
		switch {
		case e.decision.MatchString(chunk):
			c = Candidate{Content: chunk, Type: model.TypeDecision, Salience: 0.8, Confidence: 0.7}
		case e.preference.MatchString(chunk):
			c = Candidate{Content: chunk, Type: model.TypePreference, Salience: 0.7, Confidence: 0.6}
		case e.insight.MatchString(chunk):
			c = Candidate{Content: chunk, Type: model.TypeInsight, Salience: 0.75, Confidence: 0.6}
		case e.goal.MatchString(chunk):
			c = Candidate{Content: chunk, Type: model.TypeGoal, Salience: 0.85, Confidence: 0.7}
		default:
			continue
		}
		if c.Confidence >= minConfidence {
			out = append(out, c)
		}
	}
	return dedupe(out)
}

var chunkBoundary = regexp.MustCompile(`[\n.!?]+`)
var thoughtBoundary = regexp.MustCompile(`\s*[—–]\s*|\s+-\s+`)

// Split breaks text into sentence-like chunks on sentence punctuation,
// newlines, and dash separators.
func Split(text string) []string {
	var out []string
	for _, chunk := range chunkBoundary.Split(text, -1) {
		for _, sub := range thoughtBoundary.Split(chunk, -1) {
			sub = strings.TrimSpace(sub)
			if sub != "" {
				out = append(out, sub)
			}
		}
	}
	return out
}

// dedupe drops candidates whose normalized 50-char prefix was already seen.
func dedupe(candidates []Candidate) []Candidate {
	if len(candidates) <= 1 {
		return candidates
	}
	seen := map[string]bool{}
	var unique []Candidate
	for _, c := range candidates {
		key := strings.ToLower(c.Content)
		if len(key) > 50 {
			key = key[:50]
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, c)
	}
	return unique
}

// Entity is a mention found in text.
type Entity struct {
	Text string
	Kind string // person, project, task, quoted
}

var personPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:with|from|to|by)\s+([A-Z][a-z]+)(?:\s|,|$|\.)`),
	regexp.MustCompile(`\b([A-Z][a-z]+)\s+(?:said|wants|asks|asked|mentioned|prefers|did)`),
	regexp.MustCompile(`@([a-zA-Z0-9_]+)`),
	regexp.MustCompile(`\b([A-Z][a-z]+)\b\s+(?:is|are|was|were|and)`),
}

var projectPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:project|building|working on|developing)\s+["']?([A-Za-z\-_0-9]+)`),
	regexp.MustCompile(`[~#]([a-z][a-z-]+)`),
}

var taskPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:need to|should|let's|can you)\s+([a-z][a-zA-Z\s]+?)(?:\?|\.)`),
	regexp.MustCompile(`(?i)(?:task|goal|objective):\s+([^.]+)`),
}

var quotedPattern = regexp.MustCompile(`"([^"]+)"`)

// Entities extracts people, projects, tasks, and quoted terms from text, in
// deterministic order.
func Entities(text string) []Entity {
	seen := map[string]bool{}
	var out []Entity
	add := func(match, kind string, minLen int) {
		match = strings.TrimSpace(match)
		if len(match) < minLen {
			return
		}
		key := kind + ":" + strings.ToLower(match)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Entity{Text: match, Kind: kind})
	}

	for _, p := range personPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			add(m[1], "person", 2)
		}
	}
	for _, p := range projectPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			add(m[1], "project", 2)
		}
	}
	for _, p := range taskPatterns {
		for _, m := range p.FindAllStringSubmatch(text, -1) {
			add(m[1], "task", 4)
		}
	}
	for _, m := range quotedPattern.FindAllStringSubmatch(text, -1) {
		add(m[1], "quoted", 3)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Text < out[j].Text
	})
	return out
}
