package alerts

import (
	"time"

	"github.com/richxcame/threatwatch/internal/geo"
)

// AlertType is the closed set of community alert categories
type AlertType string

const (
	AlertScamHotspot        AlertType = "SCAM_HOTSPOT"
	AlertPhishingCampaign   AlertType = "PHISHING_CAMPAIGN"
	AlertMpesaScamWave      AlertType = "MPESA_SCAM_WAVE"
	AlertFakeAgent          AlertType = "FAKE_AGENT"
	AlertSimSwapActivity    AlertType = "SIM_SWAP_ACTIVITY"
	AlertIdentityTheft      AlertType = "IDENTITY_THEFT"
	AlertCyberAttack        AlertType = "CYBER_ATTACK"
	AlertRobberyIncident    AlertType = "ROBBERY_INCIDENT"
	AlertSuspiciousActivity AlertType = "SUSPICIOUS_ACTIVITY"
)

// AllAlertTypes lists every alert category in declaration order
var AllAlertTypes = []AlertType{
	AlertScamHotspot,
	AlertPhishingCampaign,
	AlertMpesaScamWave,
	AlertFakeAgent,
	AlertSimSwapActivity,
	AlertIdentityTheft,
	AlertCyberAttack,
	AlertRobberyIncident,
	AlertSuspiciousActivity,
}

// Valid reports whether t is a known category
func (t AlertType) Valid() bool {
	for _, known := range AllAlertTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Severity of a reported alert
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is a known severity
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// IsHigh reports whether s is HIGH or CRITICAL
func (s Severity) IsHigh() bool {
	return s == SeverityHigh || s == SeverityCritical
}

const (
	// VerificationThreshold is the vote count at which an alert becomes verified
	VerificationThreshold = 3

	// DefaultAlertTTL is how long an alert stays active after creation
	DefaultAlertTTL = 24 * time.Hour

	// SafetyWindow is the trailing window used for area safety scores
	SafetyWindow = 7 * 24 * time.Hour

	// SystemReporter is the fingerprint of alerts generated by the service itself
	SystemReporter = "SYSTEM"

	// AnonymousReporter is used when a submission carries no fingerprint
	AnonymousReporter = "ANONYMOUS"
)

// SafetyAlert is a time-bounded community report
type SafetyAlert struct {
	ID                  string     `json:"id" firestore:"id"`
	Type                AlertType  `json:"type" firestore:"type"`
	Title               string     `json:"title" firestore:"title"`
	Description         string     `json:"description" firestore:"description"`
	Location            *geo.Point `json:"location,omitempty" firestore:"location,omitempty"`
	Cell                string     `json:"-" firestore:"cell,omitempty"`
	CreatedAt           time.Time  `json:"created_at" firestore:"createdAt"`
	ReporterFingerprint string     `json:"reporter_fingerprint" firestore:"reporterFingerprint"`
	Severity            Severity   `json:"severity" firestore:"severity"`
	VerificationCount   int        `json:"verification_count" firestore:"verificationCount"`
	IsVerified          bool       `json:"is_verified" firestore:"isVerified"`
	ExpiresAt           time.Time  `json:"expires_at" firestore:"expiresAt"`
	Tags                []string   `json:"tags" firestore:"tags"`
}

// IsActive reports whether the alert has not yet expired at now
func (a *SafetyAlert) IsActive(now time.Time) bool {
	return !now.After(a.ExpiresAt)
}

// Query selects alerts from a Store. Results are always ordered newest first.
type Query struct {
	ActiveAt time.Time // when set, only alerts with ExpiresAt >= ActiveAt
	Since    time.Time // when set, only alerts with CreatedAt >= Since
	Cells    []string  // when set, only alerts indexed in one of these cells
	Limit    int       // 0 means no limit
}

// SafetyLevel is the discrete bucket of an area safety score
type SafetyLevel string

const (
	SafetyVerySafe  SafetyLevel = "VERY_SAFE"
	SafetySafe      SafetyLevel = "SAFE"
	SafetyModerate  SafetyLevel = "MODERATE"
	SafetyRisky     SafetyLevel = "RISKY"
	SafetyDangerous SafetyLevel = "DANGEROUS"
)

// AreaSafetyScore is a derived, non-persisted view of recent alerts in an area
type AreaSafetyScore struct {
	Score           float64     `json:"score"`
	Level           SafetyLevel `json:"level"`
	RecentIncidents int         `json:"recent_incidents"`
	MajorConcerns   []AlertType `json:"major_concerns"`
	Recommendation  string      `json:"recommendation"`
}

// SubmitAlertRequest is the input for a new community alert
type SubmitAlertRequest struct {
	Type                AlertType  `json:"type" binding:"required"`
	Title               string     `json:"title" binding:"required,max=200"`
	Description         string     `json:"description" binding:"required,max=2000"`
	Location            *geo.Point `json:"location,omitempty"`
	Severity            Severity   `json:"severity"`
	ReporterFingerprint string     `json:"-"`
	TTLHours            int        `json:"ttl_hours,omitempty" binding:"omitempty,min=1,max=168"`
}

// VerifyAlertRequest carries a single verification vote
type VerifyAlertRequest struct {
	Legitimate *bool `json:"legitimate" binding:"required"`
}

// WindowQuery selects alerts created at or after Since (RFC 3339)
type WindowQuery struct {
	Since time.Time `form:"since" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

// AreaQuery is the query string for nearby and safety lookups
type AreaQuery struct {
	Latitude  float64 `form:"lat" binding:"gte=-90,lte=90"`
	Longitude float64 `form:"lng" binding:"gte=-180,lte=180"`
	RadiusKm  float64 `form:"radius_km" binding:"omitempty,gt=0,lte=100"`
}
