package prediction

import (
	"fmt"

	"github.com/richxcame/threatwatch/internal/features"
)

// ThreatType is the closed set of threat categories. The order of
// AllThreatTypes is the output order of the threat classifier.
type ThreatType string

const (
	ThreatMpesaScam         ThreatType = "MPESA_SCAM"
	ThreatPhishing          ThreatType = "PHISHING"
	ThreatSimSwap           ThreatType = "SIM_SWAP"
	ThreatRomanceScam       ThreatType = "ROMANCE_SCAM"
	ThreatInvestmentFraud   ThreatType = "INVESTMENT_FRAUD"
	ThreatFakeJobOffer      ThreatType = "FAKE_JOB_OFFER"
	ThreatIdentityTheft     ThreatType = "IDENTITY_THEFT"
	ThreatSocialEngineering ThreatType = "SOCIAL_ENGINEERING"
)

// AllThreatTypes lists threat categories in classifier output order
var AllThreatTypes = []ThreatType{
	ThreatMpesaScam,
	ThreatPhishing,
	ThreatSimSwap,
	ThreatRomanceScam,
	ThreatInvestmentFraud,
	ThreatFakeJobOffer,
	ThreatIdentityTheft,
	ThreatSocialEngineering,
}

// ScamType is the closed set of message scam categories
type ScamType string

const (
	ScamMpesaReversal    ScamType = "MPESA_REVERSAL"
	ScamFakePrize        ScamType = "FAKE_PRIZE"
	ScamLoan             ScamType = "LOAN_SCAM"
	ScamFakeCustomerCare ScamType = "FAKE_CUSTOMER_CARE"
	ScamPhishingLink     ScamType = "PHISHING_LINK"
	ScamInvestment       ScamType = "INVESTMENT_SCHEME"
	ScamJob              ScamType = "JOB_SCAM"
)

// AllScamTypes lists scam categories in classifier output order
var AllScamTypes = []ScamType{
	ScamMpesaReversal,
	ScamFakePrize,
	ScamLoan,
	ScamFakeCustomerCare,
	ScamPhishingLink,
	ScamInvestment,
	ScamJob,
}

// RiskLevel is an ordered severity bucket derived from a probability
type RiskLevel int

const (
	RiskVeryLow RiskLevel = iota
	RiskLow
	RiskModerate
	RiskHigh
	RiskCritical
	RiskExtreme
)

var riskLevelNames = [...]string{"VERY_LOW", "LOW", "MODERATE", "HIGH", "CRITICAL", "EXTREME"}

func (r RiskLevel) String() string {
	if r < RiskVeryLow || r > RiskExtreme {
		return fmt.Sprintf("RiskLevel(%d)", int(r))
	}
	return riskLevelNames[r]
}

// MarshalText encodes the level by name
func (r RiskLevel) MarshalText() ([]byte, error) {
	if r < RiskVeryLow || r > RiskExtreme {
		return nil, fmt.Errorf("invalid risk level %d", int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a level name
func (r *RiskLevel) UnmarshalText(text []byte) error {
	for i, name := range riskLevelNames {
		if name == string(text) {
			*r = RiskLevel(i)
			return nil
		}
	}
	return fmt.Errorf("unknown risk level %q", text)
}

// RiskLevelFor maps a probability onto the risk ladder
func RiskLevelFor(p float64) RiskLevel {
	switch {
	case p >= 0.9:
		return RiskExtreme
	case p >= 0.75:
		return RiskCritical
	case p >= 0.6:
		return RiskHigh
	case p >= 0.4:
		return RiskModerate
	case p >= 0.2:
		return RiskLow
	default:
		return RiskVeryLow
	}
}

// TimeWindow estimates when a threat is likely to materialize
type TimeWindow string

const (
	WindowNextHour    TimeWindow = "NEXT_HOUR"
	WindowNext6Hours  TimeWindow = "NEXT_6_HOURS"
	WindowNext24Hours TimeWindow = "NEXT_24_HOURS"
	WindowNextWeek    TimeWindow = "NEXT_WEEK"
)

// GeographicScope estimates how widely a threat applies
type GeographicScope string

const (
	ScopeLocalArea GeographicScope = "LOCAL_AREA"
	ScopeRegional  GeographicScope = "REGIONAL"
	ScopeNational  GeographicScope = "NATIONAL"
)

// RiskProfile classifies a user's behaviour. Values are indexed by the first
// element of the behaviour classifier output.
type RiskProfile string

const (
	ProfileConservative RiskProfile = "CONSERVATIVE"
	ProfileBalanced     RiskProfile = "BALANCED"
	ProfileAdventurous  RiskProfile = "ADVENTUROUS"
	ProfileVulnerable   RiskProfile = "VULNERABLE"
	ProfileHighRisk     RiskProfile = "HIGH_RISK"
)

// AllRiskProfiles lists profiles by classifier index
var AllRiskProfiles = []RiskProfile{
	ProfileConservative,
	ProfileBalanced,
	ProfileAdventurous,
	ProfileVulnerable,
	ProfileHighRisk,
}

// VulnerabilityType names the vulnerability scores of the behaviour classifier
type VulnerabilityType string

const (
	VulnerabilityFinancial         VulnerabilityType = "FINANCIAL"
	VulnerabilitySocialEngineering VulnerabilityType = "SOCIAL_ENGINEERING"
	VulnerabilityPrivacy           VulnerabilityType = "PRIVACY"
)

// AllVulnerabilityTypes lists vulnerabilities in classifier output order,
// starting at output index 2
var AllVulnerabilityTypes = []VulnerabilityType{
	VulnerabilityFinancial,
	VulnerabilitySocialEngineering,
	VulnerabilityPrivacy,
}

// Impact is the qualitative weight of a contributing factor
type Impact string

const (
	ImpactHigh   Impact = "HIGH"
	ImpactMedium Impact = "MEDIUM"
	ImpactLow    Impact = "LOW"
)

// Factor explains part of a prediction
type Factor struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
	Impact Impact  `json:"impact"`
}

// ThreatPrediction is one ranked threat for a context
type ThreatPrediction struct {
	ThreatType          ThreatType      `json:"threat_type"`
	Probability         float64         `json:"probability"`
	Confidence          float64         `json:"confidence"`
	RiskLevel           RiskLevel       `json:"risk_level"`
	TimeWindow          TimeWindow      `json:"time_window"`
	GeographicScope     GeographicScope `json:"geographic_scope"`
	ContributingFactors []Factor        `json:"contributing_factors"`
	RecommendedActions  []string        `json:"recommended_actions"`
}

// ScamPrediction is one scam category detected in a batch of messages
type ScamPrediction struct {
	ScamType            ScamType  `json:"scam_type"`
	Likelihood          float64   `json:"likelihood"`
	Confidence          float64   `json:"confidence"`
	RiskLevel           RiskLevel `json:"risk_level"`
	MessageIndex        int       `json:"message_index"`
	TargetDemographics  []string  `json:"target_demographics"`
	CommonChannels      []string  `json:"common_channels"`
	Indicators          []string  `json:"indicators"`
	ContributingFactors []Factor  `json:"contributing_factors"`
	RecommendedActions  []string  `json:"recommended_actions"`
}

// Vulnerability is one scored weakness of a user
type Vulnerability struct {
	Type        VulnerabilityType `json:"type"`
	Score       float64           `json:"score"`
	Level       RiskLevel         `json:"level"`
	Description string            `json:"description"`
}

// BehavioralAnalysis is the result of AnalyzeBehavior
type BehavioralAnalysis struct {
	RiskProfile         RiskProfile     `json:"risk_profile"`
	AnomalyScore        float64         `json:"anomaly_score"`
	AnomalyLevel        RiskLevel       `json:"anomaly_level"`
	Confidence          float64         `json:"confidence"`
	BehaviorPatterns    []string        `json:"behavior_patterns"`
	Vulnerabilities     []Vulnerability `json:"vulnerabilities"`
	Warnings            []string        `json:"warnings"`
	ContributingFactors []Factor        `json:"contributing_factors"`
}

// ScamScanRequest is the body of a scam detection request
type ScamScanRequest struct {
	Messages     []string               `json:"messages" binding:"required,min=1,max=100"`
	Transactions []features.Transaction `json:"transactions"`
}
