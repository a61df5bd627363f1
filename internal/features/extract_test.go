package features

import (
	"strings"
	"testing"

	"github.com/richxcame/threatwatch/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThreatFeatures_LengthAndDefaults(t *testing.T) {
	tests := []struct {
		name string
		ctx  ThreatContext
	}{
		{"zero context", ThreatContext{}},
		{"full context", ThreatContext{
			TimeOfDay:          23,
			DayOfWeek:          6,
			Location:           &geo.Point{Latitude: -1.29, Longitude: 36.82},
			RecentActivity:     40,
			CommunicationCount: 3,
			FinancialActivity:  2,
			SocialActivity:     7,
			CommunityAlerts:    []string{"a", "b"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ThreatFeatures(tt.ctx)
			require.Len(t, v, ThreatVectorSize)
			for i := slotCommunityAlerts + 1; i < ThreatVectorSize; i++ {
				assert.Equal(t, 0.5, v[i], "slot %d", i)
			}
		})
	}
}

func TestThreatFeatures_Encoding(t *testing.T) {
	v := ThreatFeatures(ThreatContext{
		TimeOfDay:          14,
		DayOfWeek:          3,
		RecentActivity:     5,
		CommunicationCount: 20,
		FinancialActivity:  1,
		SocialActivity:     4,
		CommunityAlerts:    []string{"a"},
	})

	assert.Equal(t, 14.0/24.0, v[slotHour])
	assert.Equal(t, 3.0/7.0, v[slotDayOfWeek])
	assert.Equal(t, []float64{0.5, 0.5}, v[slotLatitude:slotLongitude+1])
	assert.Equal(t, 0.5, v[slotRecentActivity])
	assert.Equal(t, 2.0, v[slotCommunication])
	assert.Equal(t, 0.2, v[slotFinancial])
	assert.Equal(t, 0.4, v[slotSocial])
	assert.Equal(t, 0.2, v[slotCommunityAlerts])
}

func TestThreatFeatures_Location(t *testing.T) {
	v := ThreatFeatures(ThreatContext{Location: &geo.Point{Latitude: 0, Longitude: 90}})

	assert.Equal(t, 0.5, v[slotLatitude])
	assert.Equal(t, 0.75, v[slotLongitude])
}

func TestScamFeatures(t *testing.T) {
	msg := "URGENT: M-Pesa reversal of Ksh 5,000. Click www.example.com or call 0712345678901"

	v := ScamFeatures(msg, nil)

	require.Len(t, v, ScamVectorSize)
	assert.Equal(t, float64(len([]rune(msg)))/1000, v[slotLength])
	assert.Equal(t, float64(len(strings.Fields(msg)))/50, v[slotWords])
	assert.Equal(t, 2.0/float64(len(ScamKeywords)), v[slotScamKeywords])
	// m-pesa, reversal, ksh
	assert.Equal(t, 3.0/float64(len(MpesaKeywords)), v[slotMpesaKeywords])
	assert.Equal(t, 1.0, v[slotURL])
	assert.Equal(t, 1.0, v[slotDigitRun])
	for i := slotDigitRun + 1; i < ScamVectorSize; i++ {
		assert.Zero(t, v[i], "slot %d", i)
	}
}

func TestScamFeatures_Flags(t *testing.T) {
	tests := []struct {
		msg     string
		wantURL float64
		wantRun float64
	}{
		{"hello there", 0, 0},
		{"see HTTPS://bank.example", 1, 0},
		{"short link bit.ly/abc", 1, 0},
		{"call 123456789", 0, 0},
		{"call 1234567890", 0, 1},
	}

	for _, tt := range tests {
		v := ScamFeatures(tt.msg, nil)
		assert.Equal(t, tt.wantURL, v[slotURL], tt.msg)
		assert.Equal(t, tt.wantRun, v[slotDigitRun], tt.msg)
	}
}

func TestScamFeatures_TransactionsDoNotChangeVector(t *testing.T) {
	msg := "Confirmed. You have received Ksh 100"

	assert.Equal(t, ScamFeatures(msg, nil), ScamFeatures(msg, []Transaction{{Amount: 100, Recipient: "x"}}))
}

func TestBehavioralFeatures(t *testing.T) {
	activity := UserActivity{
		AppUsage:           map[string]float64{"whatsapp": 60, "mpesa": 20, "browser": 20},
		CommunicationCount: map[string]int{"sms": 30, "calls": 20},
		Locations: []geo.Point{
			{Latitude: 1, Longitude: 1},
			{Latitude: 1, Longitude: 1},
			{Latitude: 2, Longitude: 2},
		},
		ActiveHours: []int{8, 20},
	}

	v := BehavioralFeatures(activity)

	require.Len(t, v, BehavioralVectorSize)
	assert.Equal(t, 0.6, v[slotAppShare])
	assert.Equal(t, 0.5, v[slotCommunicationTotal])
	assert.Equal(t, 0.2, v[slotDistinctLocations])
	assert.Equal(t, 36.0/144.0, v[slotHourVariance])
	for i := slotHourVariance + 1; i < BehavioralVectorSize; i++ {
		assert.Zero(t, v[i])
	}
}

func TestBehavioralFeatures_Empty(t *testing.T) {
	v := BehavioralFeatures(UserActivity{})

	require.Len(t, v, BehavioralVectorSize)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestFeatures_Deterministic(t *testing.T) {
	activity := UserActivity{
		AppUsage:    map[string]float64{"a": 0.1, "b": 0.2, "c": 0.3, "d": 0.4, "e": 0.5},
		ActiveHours: []int{1, 5, 9, 13, 22},
	}
	ctx := ThreatContext{TimeOfDay: 7, CommunityAlerts: []string{"x"}}

	for i := 0; i < 20; i++ {
		assert.Equal(t, BehavioralFeatures(activity), BehavioralFeatures(activity))
		assert.Equal(t, ThreatFeatures(ctx), ThreatFeatures(ctx))
		assert.Equal(t, ScamFeatures("win a prize", nil), ScamFeatures("win a prize", nil))
	}
}

func TestDiversity(t *testing.T) {
	assert.Zero(t, Diversity(nil))
	assert.Equal(t, 0.5, Diversity([]float64{0.1, 0.2, 0, 0.9}))
	assert.Equal(t, 1.0, Diversity([]float64{0.5, 0.5}))
}
