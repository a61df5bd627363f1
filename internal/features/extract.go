// Package features turns structured input into the fixed-length vectors
// consumed by the classifiers. Every function here is pure and must stay
// reproducible bit-for-bit: slot order is part of the model contract.
package features

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// Threat vector slots
const (
	slotHour = iota
	slotDayOfWeek
	slotLatitude
	slotLongitude
	slotRecentActivity
	slotCommunication
	slotFinancial
	slotSocial
	slotCommunityAlerts
)

// Scam vector slots
const (
	slotLength = iota
	slotWords
	slotScamKeywords
	slotMpesaKeywords
	slotURL
	slotDigitRun
)

// Behavioral vector slots
const (
	slotAppShare = iota
	slotCommunicationTotal
	slotDistinctLocations
	slotHourVariance
)

const (
	threatFiller = 0.5

	recentActivityScale  = 10.0
	communicationScale   = 10.0
	financialScale       = 5.0
	socialScale          = 10.0
	communityAlertsScale = 5.0

	messageLengthScale = 1000.0
	wordCountScale     = 50.0

	communicationTotalScale = 100.0
	locationScale           = 10.0
	hourVarianceScale       = 144.0
)

// ScamKeywords are the generic scam markers counted in messages
var ScamKeywords = []string{
	"urgent",
	"winner",
	"congratulations",
	"prize",
	"claim",
	"verify",
	"suspended",
	"click",
	"free",
	"offer",
	"password",
	"pin",
	"loan",
	"guaranteed",
}

// MpesaKeywords are M-Pesa specific markers counted in messages
var MpesaKeywords = []string{
	"mpesa",
	"m-pesa",
	"safaricom",
	"paybill",
	"till",
	"reversal",
	"reverse",
	"ksh",
	"confirmed",
	"fuliza",
	"send money",
}

var (
	urlPattern      = regexp.MustCompile(`(?i)(https?://|www\.|bit\.ly/)`)
	digitRunPattern = regexp.MustCompile(`\d{10,}`)
)

// ThreatFeatures encodes a threat context into ThreatVectorSize slots
func ThreatFeatures(ctx ThreatContext) []float64 {
	v := make([]float64, ThreatVectorSize)
	for i := range v {
		v[i] = threatFiller
	}

	v[slotHour] = float64(ctx.TimeOfDay) / 24.0
	v[slotDayOfWeek] = float64(ctx.DayOfWeek) / 7.0

	if ctx.Location != nil {
		v[slotLatitude] = (ctx.Location.Latitude + 90) / 180
		v[slotLongitude] = (ctx.Location.Longitude + 180) / 360
	}

	v[slotRecentActivity] = float64(ctx.RecentActivity) / recentActivityScale
	v[slotCommunication] = float64(ctx.CommunicationCount) / communicationScale
	v[slotFinancial] = float64(ctx.FinancialActivity) / financialScale
	v[slotSocial] = float64(ctx.SocialActivity) / socialScale
	v[slotCommunityAlerts] = float64(len(ctx.CommunityAlerts)) / communityAlertsScale

	return v
}

// ScamFeatures encodes a message into ScamVectorSize slots. Transactions are
// accepted for interface stability but no slot is derived from them yet.
func ScamFeatures(message string, _ []Transaction) []float64 {
	v := make([]float64, ScamVectorSize)

	lower := strings.ToLower(message)

	v[slotLength] = float64(utf8.RuneCountInString(message)) / messageLengthScale
	v[slotWords] = float64(len(strings.Fields(message))) / wordCountScale
	v[slotScamKeywords] = keywordFraction(lower, ScamKeywords)
	v[slotMpesaKeywords] = keywordFraction(lower, MpesaKeywords)

	if urlPattern.MatchString(message) {
		v[slotURL] = 1
	}
	if digitRunPattern.MatchString(message) {
		v[slotDigitRun] = 1
	}

	return v
}

// BehavioralFeatures encodes user activity into BehavioralVectorSize slots
func BehavioralFeatures(activity UserActivity) []float64 {
	v := make([]float64, BehavioralVectorSize)

	v[slotAppShare] = maxShare(activity.AppUsage)
	v[slotCommunicationTotal] = float64(sumCounts(activity.CommunicationCount)) / communicationTotalScale
	v[slotDistinctLocations] = float64(distinctLocations(activity)) / locationScale
	v[slotHourVariance] = variance(activity.ActiveHours) / hourVarianceScale

	return v
}

// Diversity returns the fraction of slots whose value exceeds 0.1
func Diversity(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	n := 0
	for _, x := range v {
		if x > 0.1 {
			n++
		}
	}
	return float64(n) / float64(len(v))
}

func keywordFraction(lower string, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return float64(hits) / float64(len(keywords))
}

func maxShare(usage map[string]float64) float64 {
	keys := sortedKeys(usage)

	var total, top float64
	for _, k := range keys {
		u := usage[k]
		if u < 0 {
			continue
		}
		total += u
		if u > top {
			top = u
		}
	}
	if total == 0 {
		return 0
	}
	return top / total
}

func sumCounts(counts map[string]int) int {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	total := 0
	for _, k := range keys {
		total += counts[k]
	}
	return total
}

func distinctLocations(activity UserActivity) int {
	seen := make(map[[2]float64]struct{}, len(activity.Locations))
	for _, p := range activity.Locations {
		seen[[2]float64{p.Latitude, p.Longitude}] = struct{}{}
	}
	return len(seen)
}

// variance is the population variance of the samples
func variance(samples []int) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s)
	}
	mean := sum / float64(len(samples))

	var sq float64
	for _, s := range samples {
		d := float64(s) - mean
		sq += d * d
	}
	return sq / float64(len(samples))
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
