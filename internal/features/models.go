package features

import (
	"time"

	"github.com/richxcame/threatwatch/internal/geo"
)

// Vector lengths expected by the classifiers
const (
	ThreatVectorSize     = 50
	ScamVectorSize       = 100
	BehavioralVectorSize = 30
)

// ThreatContext is the situational input of a threat prediction.
// Missing counters are zero; a nil Location is encoded as the map center.
type ThreatContext struct {
	TimeOfDay          int        `json:"time_of_day" binding:"gte=0,lte=23"`
	DayOfWeek          int        `json:"day_of_week" binding:"gte=0,lte=6"`
	Location           *geo.Point `json:"location,omitempty"`
	RecentActivity     int        `json:"recent_activity" binding:"gte=0"`
	CommunicationCount int        `json:"communication_count" binding:"gte=0"`
	FinancialActivity  int        `json:"financial_activity" binding:"gte=0"`
	SocialActivity     int        `json:"social_activity" binding:"gte=0"`
	CommunityAlerts    []string   `json:"community_alerts"`
}

// ContextAt returns a ThreatContext for t with every counter at zero
func ContextAt(t time.Time) ThreatContext {
	return ThreatContext{
		TimeOfDay: t.Hour(),
		DayOfWeek: int(t.Weekday()),
	}
}

// Transaction is a mobile money transaction accompanying scanned messages
type Transaction struct {
	Amount    float64   `json:"amount"`
	Recipient string    `json:"recipient"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// UserActivity summarizes a user's recent device behaviour
type UserActivity struct {
	AppUsage           map[string]float64 `json:"app_usage"`           // minutes per app
	CommunicationCount map[string]int     `json:"communication_count"` // messages/calls per channel
	Locations          []geo.Point        `json:"locations"`
	ActiveHours        []int              `json:"active_hours"` // hour-of-day samples
}
