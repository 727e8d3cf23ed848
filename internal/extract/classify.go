package extract

import (
	"regexp"
	"strings"

	"github.com/g1itchbot8888-del/agent-memory/internal/model"
)

var identityTierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bmy name\b`),
	regexp.MustCompile(`\bi am\b`),
	regexp.MustCompile(`\bwho i am\b`),
	regexp.MustCompile(`\bborn\b.*\d{4}`),
	regexp.MustCompile(`\bcreated\b.*\d{4}`),
	regexp.MustCompile(`\bowner[:\s]`),
	regexp.MustCompile(`\bidentity\b`),
	regexp.MustCompile(`\bpersonality\b`),
	regexp.MustCompile(`\bcore (?:values?|traits?|beliefs?)\b`),
	regexp.MustCompile(`\bi (?:prefer|believe|value|always)\b`),
	regexp.MustCompile(`\bmy (?:human|creator|partner)\b`),
}

var activeTierPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bcurrent(?:ly)?\b`),
	regexp.MustCompile(`\bworking on\b`),
	regexp.MustCompile(`\bright now\b`),
	regexp.MustCompile(`\btoday\b`),
	regexp.MustCompile(`\bthis (?:week|session|sprint)\b`),
	regexp.MustCompile(`\bnext step\b`),
	regexp.MustCompile(`\btodo\b`),
	regexp.MustCompile(`\bin progress\b`),
	regexp.MustCompile(`\bblocked\b`),
	regexp.MustCompile(`\bwaiting (?:on|for)\b`),
	regexp.MustCompile(`\bjust (?:shipped|pushed|deployed|built|created)\b`),
}

var highSalienceKeywords = []string{
	"decision", "decided", "important", "critical", "never", "always",
	"lesson", "learned", "mistake", "breakthrough", "preference",
	"correction", "directive", "rule", "principle",
}

var salienceTypeBoost = map[string]float64{
	model.TypeDecision:   0.2,
	model.TypePreference: 0.15,
	model.TypeCorrection: 0.2,
	model.TypeInsight:    0.15,
	model.TypeError:      0.1,
}

// ClassifyTier routes content to a storage tier by scoring identity and
// active pattern hits. Two or more hits in one table wins outright; a
// single uncontested hit still wins; everything else lands in the archive.
func ClassifyTier(content, recordType string) model.Tier {
	lower := strings.ToLower(content)

	identityScore := 0
	for _, p := range identityTierPatterns {
		if p.MatchString(lower) {
			identityScore++
		}
	}
	activeScore := 0
	for _, p := range activeTierPatterns {
		if p.MatchString(lower) {
			activeScore++
		}
	}

	switch recordType {
	case model.TypePreference:
		identityScore++
	case model.TypeDecision:
		activeScore++
	}

	switch {
	case identityScore >= 2:
		return model.TierIdentity
	case activeScore >= 2:
		return model.TierActive
	case identityScore == 1 && activeScore == 0:
		return model.TierIdentity
	case activeScore == 1 && identityScore == 0:
		return model.TierActive
	}
	return model.TierArchive
}

// EstimateSalience scores content importance from a base value, boosted by
// key terms, record type, and length. Clamped to [0, 1].
func EstimateSalience(content, recordType string, base float64) float64 {
	lower := strings.ToLower(content)
	salience := base

	for _, kw := range highSalienceKeywords {
		if strings.Contains(lower, kw) {
			salience += 0.1
		}
	}
	salience += salienceTypeBoost[recordType]

	words := len(strings.Fields(content))
	if words > 30 {
		salience += 0.05
	}
	if words > 60 {
		salience += 0.05
	}

	if salience > 1 {
		return 1
	}
	if salience < 0 {
		return 0
	}
	return salience
}
