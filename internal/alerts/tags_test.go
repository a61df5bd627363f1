package alerts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeBucket(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, BucketNight},
		{4, BucketNight},
		{5, BucketMorning},
		{11, BucketMorning},
		{12, BucketAfternoon},
		{16, BucketAfternoon},
		{17, BucketEvening},
		{20, BucketEvening},
		{21, BucketNight},
		{23, BucketNight},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TimeBucket(tt.hour), "hour %d", tt.hour)
	}
}

func TestDeriveTags_Deterministic(t *testing.T) {
	at := time.Date(2026, 3, 4, 14, 30, 0, 0, time.UTC)

	first := DeriveTags(AlertMpesaScamWave, at)
	second := DeriveTags(AlertMpesaScamWave, at)

	assert.Equal(t, []string{"mpesa_scam_wave", BucketAfternoon}, first)
	assert.Equal(t, first, second)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("device-123", "salt")
	b := Fingerprint("device-123", "salt")
	c := Fingerprint("device-123", "other-salt")

	assert.Len(t, a, 64)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotContains(t, a, "device-123")
	assert.Equal(t, AnonymousReporter, Fingerprint("  ", "salt"))
}
