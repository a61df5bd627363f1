// Package storetest holds the behaviour every alert and pattern store adapter
// must share. Adapter packages call RunAlertStore and RunPatternStore from
// their own tests.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/threatwatch/internal/alerts"
	"github.com/richxcame/threatwatch/internal/geo"
	"github.com/richxcame/threatwatch/internal/patterns"
	"github.com/richxcame/threatwatch/pkg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const concurrentWriters = 20

var (
	base    = time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC)
	nairobi = geo.Point{Latitude: -1.2921, Longitude: 36.8219}
)

func newAlert(t *testing.T, createdAt time.Time, cell string) *alerts.SafetyAlert {
	t.Helper()
	loc := nairobi
	return &alerts.SafetyAlert{
		ID:                  uuid.NewString(),
		Type:                alerts.AlertMpesaScamWave,
		Title:               "Fake reversal SMS",
		Description:         "Messages asking agents to reverse payments",
		Location:            &loc,
		Cell:                cell,
		CreatedAt:           createdAt,
		ReporterFingerprint: "fp",
		Severity:            alerts.SeverityHigh,
		ExpiresAt:           createdAt.Add(alerts.DefaultAlertTTL),
		Tags:                []string{"mpesa_scam_wave", "morning"},
	}
}

func ids(list []*alerts.SafetyAlert) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

// RunAlertStore exercises an alerts.Store. newStore must return an empty store.
func RunAlertStore(t *testing.T, newStore func(t *testing.T) alerts.Store) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		a := newAlert(t, base, "8766b2d1bffffff")
		require.NoError(t, s.CreateAlert(ctx, a))

		got, err := s.GetAlert(ctx, a.ID)

		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)
		assert.Equal(t, a.Type, got.Type)
		assert.Equal(t, a.Title, got.Title)
		assert.Equal(t, a.Cell, got.Cell)
		assert.Equal(t, a.Severity, got.Severity)
		assert.Equal(t, a.Tags, got.Tags)
		assert.True(t, a.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, a.ExpiresAt.Equal(got.ExpiresAt))
		require.NotNil(t, got.Location)
		assert.InDelta(t, nairobi.Latitude, got.Location.Latitude, 1e-9)
		assert.InDelta(t, nairobi.Longitude, got.Location.Longitude, 1e-9)
	})

	t.Run("alert without location", func(t *testing.T) {
		s := newStore(t)
		a := newAlert(t, base, "")
		a.Location = nil
		require.NoError(t, s.CreateAlert(ctx, a))

		got, err := s.GetAlert(ctx, a.ID)

		require.NoError(t, err)
		assert.Nil(t, got.Location)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := newStore(t).GetAlert(ctx, uuid.NewString())

		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("update applies mutation", func(t *testing.T) {
		s := newStore(t)
		a := newAlert(t, base, "")
		require.NoError(t, s.CreateAlert(ctx, a))

		updated, err := s.UpdateAlert(ctx, a.ID, func(a *alerts.SafetyAlert) error {
			a.VerificationCount = 3
			a.IsVerified = true
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 3, updated.VerificationCount)
		got, err := s.GetAlert(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.VerificationCount)
		assert.True(t, got.IsVerified)
	})

	t.Run("update missing", func(t *testing.T) {
		_, err := newStore(t).UpdateAlert(ctx, uuid.NewString(), func(*alerts.SafetyAlert) error { return nil })

		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("failed mutation is not persisted", func(t *testing.T) {
		s := newStore(t)
		a := newAlert(t, base, "")
		require.NoError(t, s.CreateAlert(ctx, a))
		boom := errors.New("boom")

		_, err := s.UpdateAlert(ctx, a.ID, func(a *alerts.SafetyAlert) error {
			a.VerificationCount = 99
			return boom
		})

		assert.ErrorIs(t, err, boom)
		got, err := s.GetAlert(ctx, a.ID)
		require.NoError(t, err)
		assert.Zero(t, got.VerificationCount)
	})

	t.Run("concurrent updates are serialized", func(t *testing.T) {
		s := newStore(t)
		a := newAlert(t, base, "")
		require.NoError(t, s.CreateAlert(ctx, a))

		var wg sync.WaitGroup
		for i := 0; i < concurrentWriters; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.UpdateAlert(ctx, a.ID, func(a *alerts.SafetyAlert) error {
					a.VerificationCount++
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := s.GetAlert(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, concurrentWriters, got.VerificationCount)
	})

	t.Run("query filters and orders", func(t *testing.T) {
		s := newStore(t)
		old := newAlert(t, base.Add(-48*time.Hour), "cell-a")
		mid := newAlert(t, base.Add(-2*time.Hour), "cell-b")
		recent := newAlert(t, base.Add(-time.Hour), "cell-a")
		other := newAlert(t, base.Add(-30*time.Minute), "cell-c")
		for _, a := range []*alerts.SafetyAlert{old, mid, recent, other} {
			require.NoError(t, s.CreateAlert(ctx, a))
		}

		all, err := s.QueryAlerts(ctx, alerts.Query{})
		require.NoError(t, err)
		assert.Equal(t, []string{other.ID, recent.ID, mid.ID, old.ID}, ids(all))

		active, err := s.QueryAlerts(ctx, alerts.Query{ActiveAt: base})
		require.NoError(t, err)
		assert.Equal(t, []string{other.ID, recent.ID, mid.ID}, ids(active))

		since, err := s.QueryAlerts(ctx, alerts.Query{Since: base.Add(-90 * time.Minute)})
		require.NoError(t, err)
		assert.Equal(t, []string{other.ID, recent.ID}, ids(since))

		inCells, err := s.QueryAlerts(ctx, alerts.Query{Cells: []string{"cell-a", "cell-b"}})
		require.NoError(t, err)
		assert.Equal(t, []string{recent.ID, mid.ID, old.ID}, ids(inCells))

		combined, err := s.QueryAlerts(ctx, alerts.Query{ActiveAt: base, Cells: []string{"cell-a"}, Limit: 5})
		require.NoError(t, err)
		assert.Equal(t, []string{recent.ID}, ids(combined))

		limited, err := s.QueryAlerts(ctx, alerts.Query{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{other.ID, recent.ID}, ids(limited))

		none, err := s.QueryAlerts(ctx, alerts.Query{Cells: []string{}})
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func newPattern(id string, count int) *patterns.ScamPattern {
	return &patterns.ScamPattern{
		ID:              id,
		PatternType:     id,
		Description:     "reported pattern",
		CommonPhrases:   []string{"send back"},
		ReportCount:     count,
		LastSeen:        base,
		Countermeasures: []string{"verify"},
	}
}

// RunPatternStore exercises a patterns.Store. newStore must return an empty store.
func RunPatternStore(t *testing.T, newStore func(t *testing.T) patterns.Store) {
	ctx := context.Background()

	t.Run("upsert creates then merges", func(t *testing.T) {
		s := newStore(t)
		id := "mpesa_reversal_" + uuid.NewString()

		created, err := s.UpsertPattern(ctx, id, func(existing *patterns.ScamPattern) (*patterns.ScamPattern, error) {
			assert.Nil(t, existing)
			return newPattern(id, 1), nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, created.ReportCount)

		merged, err := s.UpsertPattern(ctx, id, func(existing *patterns.ScamPattern) (*patterns.ScamPattern, error) {
			require.NotNil(t, existing)
			existing.ReportCount++
			existing.CommonPhrases = append(existing.CommonPhrases, "wrong number")
			existing.TrendAlerted = true
			return existing, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, merged.ReportCount)

		got, err := s.GetPattern(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, 2, got.ReportCount)
		assert.Equal(t, []string{"send back", "wrong number"}, got.CommonPhrases)
		assert.Equal(t, []string{"verify"}, got.Countermeasures)
		assert.True(t, got.TrendAlerted)
		assert.True(t, base.Equal(got.LastSeen))
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := newStore(t).GetPattern(ctx, "missing_"+uuid.NewString())

		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("failed apply is not persisted", func(t *testing.T) {
		s := newStore(t)
		id := "job_scam_" + uuid.NewString()
		boom := errors.New("boom")

		_, err := s.UpsertPattern(ctx, id, func(*patterns.ScamPattern) (*patterns.ScamPattern, error) {
			return nil, boom
		})

		assert.ErrorIs(t, err, boom)
		_, err = s.GetPattern(ctx, id)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("list by minimum count", func(t *testing.T) {
		s := newStore(t)
		for id, count := range map[string]int{"a": 1, "b": 3, "c": 7} {
			id, count := id, count
			_, err := s.UpsertPattern(ctx, id, func(*patterns.ScamPattern) (*patterns.ScamPattern, error) {
				return newPattern(id, count), nil
			})
			require.NoError(t, err)
		}

		list, err := s.ListPatterns(ctx, patterns.TrendThreshold)

		require.NoError(t, err)
		got := make(map[string]int)
		for _, p := range list {
			got[p.ID] = p.ReportCount
		}
		assert.Equal(t, map[string]int{"b": 3, "c": 7}, got)
	})

	t.Run("concurrent upserts are serialized", func(t *testing.T) {
		s := newStore(t)
		id := "loan_scam_" + uuid.NewString()

		var wg sync.WaitGroup
		for i := 0; i < concurrentWriters; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.UpsertPattern(ctx, id, func(existing *patterns.ScamPattern) (*patterns.ScamPattern, error) {
					if existing == nil {
						return newPattern(id, 1), nil
					}
					existing.ReportCount++
					return existing, nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := s.GetPattern(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, concurrentWriters, got.ReportCount)
	})
}
