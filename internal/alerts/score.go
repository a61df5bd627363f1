package alerts

var recommendations = map[SafetyLevel]string{
	SafetyVerySafe:  "Area is very safe. Continue normal activities.",
	SafetySafe:      "Area is generally safe. Stay alert to your surroundings.",
	SafetyModerate:  "Exercise caution. Verify callers and avoid sharing M-Pesa PINs or OTPs.",
	SafetyRisky:     "Multiple serious incidents reported. Avoid unknown agents and double-check every transaction.",
	SafetyDangerous: "High scam activity in this area. Do not transact with strangers and report suspicious contacts immediately.",
}

const noIncidentsRecommendation = "No recent incidents reported in this area."

// SafetyScore maps the alerts of an area onto the fixed score table.
func SafetyScore(alerts []*SafetyAlert) AreaSafetyScore {
	// An empty area reports SAFE even though 0.8 would bucket as VERY_SAFE.
	if len(alerts) == 0 {
		return AreaSafetyScore{
			Score:          0.8,
			Level:          SafetySafe,
			MajorConcerns:  []AlertType{},
			Recommendation: noIncidentsRecommendation,
		}
	}

	total := len(alerts)
	highSeverityCount := 0
	concerns := make([]AlertType, 0)
	seen := make(map[AlertType]bool)

	for _, a := range alerts {
		if !a.Severity.IsHigh() {
			continue
		}
		highSeverityCount++
		if !seen[a.Type] {
			seen[a.Type] = true
			concerns = append(concerns, a.Type)
		}
	}

	var score float64
	switch {
	case highSeverityCount == 0 && total <= 2:
		score = 0.9
	case highSeverityCount == 0 && total <= 5:
		score = 0.7
	case highSeverityCount <= 1:
		score = 0.5
	case highSeverityCount <= 3:
		score = 0.3
	default:
		score = 0.1
	}

	level := LevelForScore(score)
	return AreaSafetyScore{
		Score:           score,
		Level:           level,
		RecentIncidents: total,
		MajorConcerns:   concerns,
		Recommendation:  recommendations[level],
	}
}

// LevelForScore maps a score in [0,1] to its safety level
func LevelForScore(score float64) SafetyLevel {
	switch {
	case score >= 0.8:
		return SafetyVerySafe
	case score >= 0.6:
		return SafetySafe
	case score >= 0.4:
		return SafetyModerate
	case score >= 0.2:
		return SafetyRisky
	default:
		return SafetyDangerous
	}
}
