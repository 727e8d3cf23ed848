package surface

import (
	"strings"
	"time"
)

// TimeRange is a temporal cue found in context text, resolved against a
// reference clock.
type TimeRange struct {
	From   time.Time
	To     time.Time
	Phrase string
}

type temporalCue struct {
	phrase string
	span   time.Duration
}

// Ordered longest-phrase first so "last week" is not shadowed by a shorter
// cue appearing earlier in the text.
var temporalCues = []temporalCue{
	{"an hour ago", time.Hour},
	{"a few hours", 3 * time.Hour},
	{"last month", 30 * 24 * time.Hour},
	{"yesterday", 48 * time.Hour},
	{"last week", 7 * 24 * time.Hour},
	{"recently", 3 * 24 * time.Hour},
	{"earlier", 6 * time.Hour},
	{"today", 24 * time.Hour},
}

// ExtractTemporal returns the time range implied by the first temporal cue
// in text, or nil when none is present.
func ExtractTemporal(text string, now time.Time) *TimeRange {
	lower := strings.ToLower(text)
	for _, cue := range temporalCues {
		if strings.Contains(lower, cue.phrase) {
			return &TimeRange{
				From:   now.Add(-cue.span),
				To:     now,
				Phrase: cue.phrase,
			}
		}
	}
	return nil
}
