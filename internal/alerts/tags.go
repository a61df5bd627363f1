package alerts

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Hour-of-day buckets used in alert tags
const (
	BucketMorning   = "morning"
	BucketAfternoon = "afternoon"
	BucketEvening   = "evening"
	BucketNight     = "night"
)

// TimeBucket maps an hour of day (0-23) to its tag bucket
func TimeBucket(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return BucketMorning
	case hour >= 12 && hour < 17:
		return BucketAfternoon
	case hour >= 17 && hour < 21:
		return BucketEvening
	default:
		return BucketNight
	}
}

// DeriveTags computes the tag set of an alert. Tags are never user supplied.
func DeriveTags(t AlertType, createdAt time.Time) []string {
	return []string{strings.ToLower(string(t)), TimeBucket(createdAt.Hour())}
}

// Fingerprint derives the anonymous reporter fingerprint from an opaque
// reporter id. The salt keeps fingerprints from being joined across deployments.
func Fingerprint(reporterID, salt string) string {
	if strings.TrimSpace(reporterID) == "" {
		return AnonymousReporter
	}
	sum := sha256.Sum256([]byte(salt + ":" + reporterID))
	return hex.EncodeToString(sum[:])
}
