// Package memory keeps alerts and patterns in process memory. It backs local
// development and tests; every operation holds a single lock, so UpdateAlert
// and UpsertPattern are trivially transactional.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/richxcame/threatwatch/internal/alerts"
	"github.com/richxcame/threatwatch/internal/patterns"
	"github.com/richxcame/threatwatch/pkg/common"
)

var (
	_ alerts.Store   = (*Store)(nil)
	_ patterns.Store = (*Store)(nil)
)

// Store is an in-memory alert and pattern store
type Store struct {
	mu       sync.RWMutex
	alerts   map[string]*alerts.SafetyAlert
	patterns map[string]*patterns.ScamPattern
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		alerts:   make(map[string]*alerts.SafetyAlert),
		patterns: make(map[string]*patterns.ScamPattern),
	}
}

// CreateAlert stores a new alert
func (s *Store) CreateAlert(ctx context.Context, alert *alerts.SafetyAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.alerts[alert.ID]; exists {
		return fmt.Errorf("alert %s already exists", alert.ID)
	}
	s.alerts[alert.ID] = cloneAlert(alert)
	return nil
}

// GetAlert returns a copy of the alert
func (s *Store) GetAlert(ctx context.Context, id string) (*alerts.SafetyAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, common.ErrNotFound)
	}
	return cloneAlert(a), nil
}

// UpdateAlert applies mutate to the stored alert under the store lock
func (s *Store) UpdateAlert(ctx context.Context, id string, mutate func(*alerts.SafetyAlert) error) (*alerts.SafetyAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, common.ErrNotFound)
	}

	updated := cloneAlert(current)
	if err := mutate(updated); err != nil {
		return nil, err
	}
	updated.ID = id
	s.alerts[id] = updated
	return cloneAlert(updated), nil
}

// QueryAlerts returns matching alerts, newest first
func (s *Store) QueryAlerts(ctx context.Context, q alerts.Query) ([]*alerts.SafetyAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cells map[string]struct{}
	if q.Cells != nil {
		cells = make(map[string]struct{}, len(q.Cells))
		for _, c := range q.Cells {
			cells[c] = struct{}{}
		}
	}

	result := make([]*alerts.SafetyAlert, 0)
	for _, a := range s.alerts {
		if !q.ActiveAt.IsZero() && a.ExpiresAt.Before(q.ActiveAt) {
			continue
		}
		if !q.Since.IsZero() && a.CreatedAt.Before(q.Since) {
			continue
		}
		if cells != nil {
			if _, ok := cells[a.Cell]; !ok {
				continue
			}
		}
		result = append(result, cloneAlert(a))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// UpsertPattern runs apply on the stored pattern under the store lock
func (s *Store) UpsertPattern(ctx context.Context, id string, apply func(existing *patterns.ScamPattern) (*patterns.ScamPattern, error)) (*patterns.ScamPattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *patterns.ScamPattern
	if p, ok := s.patterns[id]; ok {
		existing = clonePattern(p)
	}

	updated, err := apply(existing)
	if err != nil {
		return nil, err
	}
	updated = clonePattern(updated)
	updated.ID = id
	s.patterns[id] = updated
	return clonePattern(updated), nil
}

// GetPattern returns a copy of the pattern
func (s *Store) GetPattern(ctx context.Context, id string) (*patterns.ScamPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.patterns[id]
	if !ok {
		return nil, fmt.Errorf("pattern %s: %w", id, common.ErrNotFound)
	}
	return clonePattern(p), nil
}

// ListPatterns returns patterns with at least minReportCount reports
func (s *Store) ListPatterns(ctx context.Context, minReportCount int) ([]*patterns.ScamPattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*patterns.ScamPattern, 0)
	for _, p := range s.patterns {
		if p.ReportCount >= minReportCount {
			result = append(result, clonePattern(p))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func cloneAlert(a *alerts.SafetyAlert) *alerts.SafetyAlert {
	cp := *a
	if a.Location != nil {
		loc := *a.Location
		cp.Location = &loc
	}
	cp.Tags = append([]string(nil), a.Tags...)
	return &cp
}

func clonePattern(p *patterns.ScamPattern) *patterns.ScamPattern {
	cp := *p
	cp.CommonPhrases = append([]string(nil), p.CommonPhrases...)
	cp.Countermeasures = append([]string(nil), p.Countermeasures...)
	return &cp
}
