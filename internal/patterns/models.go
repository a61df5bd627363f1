package patterns

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// TrendThreshold is the report count at which a pattern is promoted to a
// community-visible alert
const TrendThreshold = 3

// ScamPattern is an aggregated description of a recurring scam technique.
// ID is the normalized pattern key.
type ScamPattern struct {
	ID                 string    `json:"id" firestore:"id"`
	PatternType        string    `json:"pattern_type" firestore:"patternType"`
	Description        string    `json:"description" firestore:"description"`
	CommonPhrases      []string  `json:"common_phrases" firestore:"commonPhrases"`
	ReportCount        int       `json:"report_count" firestore:"reportCount"`
	LastSeen           time.Time `json:"last_seen" firestore:"lastSeen"`
	EffectivenessScore float64   `json:"effectiveness_score" firestore:"effectivenessScore"`
	Countermeasures    []string  `json:"countermeasures" firestore:"countermeasures"`
	TrendAlerted       bool      `json:"trend_alerted" firestore:"trendAlerted"`
}

// IsTrending reports whether the pattern has reached the trend threshold
func (p *ScamPattern) IsTrending() bool {
	return p.ReportCount >= TrendThreshold
}

// TrendEmission decides when a trending pattern emits a synthetic alert
type TrendEmission string

const (
	// EmitOnCrossing emits once, on the report that reaches the threshold
	EmitOnCrossing TrendEmission = "crossing"
	// EmitEveryReport emits on every report at or above the threshold
	EmitEveryReport TrendEmission = "every"
)

// ParseTrendEmission parses a configured emission policy
func ParseTrendEmission(s string) (TrendEmission, error) {
	switch TrendEmission(strings.ToLower(strings.TrimSpace(s))) {
	case "", EmitOnCrossing:
		return EmitOnCrossing, nil
	case EmitEveryReport:
		return EmitEveryReport, nil
	}
	return "", fmt.Errorf("unknown trend emission %q", s)
}

// ShouldEmit reports whether a pattern at count fires a trend alert under the
// policy. alerted is true once a trend alert for the pattern went out.
func (e TrendEmission) ShouldEmit(count int, alerted bool) bool {
	if count < TrendThreshold {
		return false
	}
	if e == EmitEveryReport {
		return true
	}
	return !alerted
}

// SubmitPatternRequest is a single scam pattern report
type SubmitPatternRequest struct {
	PatternType string   `json:"pattern_type" binding:"required,max=100"`
	Description string   `json:"description" binding:"required,max=2000"`
	Phrases     []string `json:"phrases" binding:"omitempty,max=50,dive,max=200"`
}

var keySeparators = regexp.MustCompile(`[\s\-]+`)

// PatternKey normalizes a free-form pattern type into its stable key
func PatternKey(patternType string) string {
	key := strings.ToLower(strings.TrimSpace(patternType))
	return keySeparators.ReplaceAllString(key, "_")
}

// MergePhrases returns the deduplicated union of both phrase sets, trimmed
// and sorted. Empty phrases are dropped.
func MergePhrases(existing, incoming []string) []string {
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))

	for _, list := range [][]string{existing, incoming} {
		for _, phrase := range list {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			if _, ok := seen[phrase]; ok {
				continue
			}
			seen[phrase] = struct{}{}
			merged = append(merged, phrase)
		}
	}

	sort.Strings(merged)
	return merged
}

var countermeasureCatalog = []struct {
	keywords []string
	measures []string
}{
	{
		keywords: []string{"mpesa", "m_pesa", "reversal"},
		measures: []string{
			"Check your M-Pesa balance before acting on any reversal request",
			"Never share your M-Pesa PIN",
			"Report the sender number to 333",
		},
	},
	{
		keywords: []string{"prize", "lottery", "promotion", "winner"},
		measures: []string{
			"Genuine promotions never ask for a fee to release a prize",
			"Verify the promotion on the company's official channels",
		},
	},
	{
		keywords: []string{"loan", "credit"},
		measures: []string{
			"Use only lenders licensed by the Central Bank",
			"Never pay an upfront processing fee",
		},
	},
	{
		keywords: []string{"job", "recruit", "employment"},
		measures: []string{
			"Legitimate employers do not charge application fees",
			"Confirm the vacancy with the employer directly",
		},
	},
	{
		keywords: []string{"phish", "link", "login"},
		measures: []string{
			"Do not open links from unknown senders",
			"Type the bank address yourself instead of following links",
		},
	},
	{
		keywords: []string{"sim", "swap"},
		measures: []string{
			"Contact your provider immediately if your line loses service",
			"Set a SIM PIN with your network provider",
		},
	},
	{
		keywords: []string{"customer_care", "agent", "impersonat"},
		measures: []string{
			"Call back using the number printed on your card or official website",
			"Support staff will never ask for your PIN or OTP",
		},
	},
}

var defaultCountermeasures = []string{
	"Do not share PINs, passwords or one-time codes",
	"Verify unexpected requests through an official channel",
	"Report suspicious contacts to the community",
}

// Countermeasures returns the fixed countermeasure list for a pattern key
func Countermeasures(key string) []string {
	var out []string
	for _, entry := range countermeasureCatalog {
		for _, kw := range entry.keywords {
			if strings.Contains(key, kw) {
				out = append(out, entry.measures...)
				break
			}
		}
	}
	if len(out) == 0 {
		out = append(out, defaultCountermeasures...)
	}
	return out
}
