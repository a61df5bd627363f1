// Package firestore stores alerts and scam patterns in Cloud Firestore.
// Alert votes and pattern reports run inside Firestore transactions so
// concurrent writers never lose an update.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"

	fs "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/richxcame/threatwatch/internal/alerts"
	"github.com/richxcame/threatwatch/internal/patterns"
	"github.com/richxcame/threatwatch/pkg/common"
	"github.com/richxcame/threatwatch/pkg/config"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// maxInValues is the largest value list Firestore accepts for an "in" filter
const maxInValues = 30

var (
	_ alerts.Store   = (*Store)(nil)
	_ patterns.Store = (*Store)(nil)
)

// NewClient opens a Firestore client through the Firebase Admin SDK. When
// FIRESTORE_EMULATOR_HOST is set the client talks to the emulator.
func NewClient(ctx context.Context, cfg config.FirebaseConfig) (*fs.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsPath))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return client, nil
}

// Store is a Firestore-backed alert and pattern store
type Store struct {
	client   *fs.Client
	alerts   *fs.CollectionRef
	patterns *fs.CollectionRef
}

// NewStore creates a store over the given collections
func NewStore(client *fs.Client, alertsPath, patternsPath string) *Store {
	return &Store{
		client:   client,
		alerts:   client.Collection(alertsPath),
		patterns: client.Collection(patternsPath),
	}
}

// docID maps a key onto a valid document ID
func docID(id string) string {
	return url.PathEscape(id)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// CreateAlert stores a new alert and fails if the ID is taken
func (s *Store) CreateAlert(ctx context.Context, alert *alerts.SafetyAlert) error {
	if _, err := s.alerts.Doc(docID(alert.ID)).Create(ctx, alert); err != nil {
		return fmt.Errorf("failed to create alert %s: %w", alert.ID, err)
	}
	return nil
}

// GetAlert loads an alert by ID
func (s *Store) GetAlert(ctx context.Context, id string) (*alerts.SafetyAlert, error) {
	snap, err := s.alerts.Doc(docID(id)).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("alert %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return decodeAlert(snap)
}

// UpdateAlert applies mutate to the alert inside a transaction. Firestore may
// run mutate more than once when the transaction is retried.
func (s *Store) UpdateAlert(ctx context.Context, id string, mutate func(*alerts.SafetyAlert) error) (*alerts.SafetyAlert, error) {
	ref := s.alerts.Doc(docID(id))
	var updated *alerts.SafetyAlert

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if isNotFound(err) {
				return fmt.Errorf("alert %s: %w", id, common.ErrNotFound)
			}
			return err
		}

		alert, err := decodeAlert(snap)
		if err != nil {
			return err
		}
		if err := mutate(alert); err != nil {
			return err
		}
		alert.ID = id
		updated = alert
		return tx.Set(ref, alert)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// QueryAlerts runs q against the alerts collection, newest first. Firestore
// allows a single range filter per query, so only one of ActiveAt and Since
// is pushed to the server and the rest is filtered here.
func (s *Store) QueryAlerts(ctx context.Context, q alerts.Query) ([]*alerts.SafetyAlert, error) {
	if q.Cells != nil && len(q.Cells) == 0 {
		return []*alerts.SafetyAlert{}, nil
	}

	query := s.alerts.Query
	serverOrdered := true
	switch {
	case !q.ActiveAt.IsZero():
		query = query.Where("expiresAt", ">=", q.ActiveAt)
		serverOrdered = false
	case !q.Since.IsZero():
		query = query.Where("createdAt", ">=", q.Since)
		serverOrdered = false
	}
	if len(q.Cells) > 0 && len(q.Cells) <= maxInValues {
		query = query.Where("cell", "in", q.Cells)
	} else if len(q.Cells) > maxInValues {
		serverOrdered = false
	}
	if serverOrdered {
		query = query.OrderBy("createdAt", fs.Desc).OrderBy(fs.DocumentID, fs.Asc)
		if q.Limit > 0 {
			query = query.Limit(q.Limit)
		}
	}

	var cells map[string]struct{}
	if q.Cells != nil {
		cells = make(map[string]struct{}, len(q.Cells))
		for _, c := range q.Cells {
			cells[c] = struct{}{}
		}
	}

	result := make([]*alerts.SafetyAlert, 0)
	iter := query.Documents(ctx)
	defer iter.Stop()
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query alerts: %w", err)
		}

		alert, err := decodeAlert(snap)
		if err != nil {
			return nil, err
		}
		if !q.ActiveAt.IsZero() && alert.ExpiresAt.Before(q.ActiveAt) {
			continue
		}
		if !q.Since.IsZero() && alert.CreatedAt.Before(q.Since) {
			continue
		}
		if cells != nil {
			if _, ok := cells[alert.Cell]; !ok {
				continue
			}
		}
		result = append(result, alert)
	}

	sort.SliceStable(result, func(i, j int) bool {
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

// UpsertPattern reads, merges and writes a pattern inside a transaction
func (s *Store) UpsertPattern(ctx context.Context, id string, apply func(existing *patterns.ScamPattern) (*patterns.ScamPattern, error)) (*patterns.ScamPattern, error) {
	ref := s.patterns.Doc(docID(id))
	var result *patterns.ScamPattern

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *fs.Transaction) error {
		var existing *patterns.ScamPattern
		snap, err := tx.Get(ref)
		switch {
		case isNotFound(err):
		case err != nil:
			return err
		default:
			if existing, err = decodePattern(snap); err != nil {
				return err
			}
		}

		updated, err := apply(existing)
		if err != nil {
			return err
		}
		stored := *updated
		stored.ID = id
		result = &stored
		return tx.Set(ref, &stored)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetPattern loads a pattern by key
func (s *Store) GetPattern(ctx context.Context, id string) (*patterns.ScamPattern, error) {
	snap, err := s.patterns.Doc(docID(id)).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("pattern %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get pattern %s: %w", id, err)
	}
	return decodePattern(snap)
}

// ListPatterns returns patterns with at least minReportCount reports
func (s *Store) ListPatterns(ctx context.Context, minReportCount int) ([]*patterns.ScamPattern, error) {
	iter := s.patterns.Where("reportCount", ">=", minReportCount).Documents(ctx)
	defer iter.Stop()

	result := make([]*patterns.ScamPattern, 0)
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list patterns: %w", err)
		}
		p, err := decodePattern(snap)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func decodeAlert(snap *fs.DocumentSnapshot) (*alerts.SafetyAlert, error) {
	var alert alerts.SafetyAlert
	if err := snap.DataTo(&alert); err != nil {
		return nil, fmt.Errorf("failed to decode alert %s: %w", snap.Ref.ID, err)
	}
	return &alert, nil
}

func decodePattern(snap *fs.DocumentSnapshot) (*patterns.ScamPattern, error) {
	var p patterns.ScamPattern
	if err := snap.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode pattern %s: %w", snap.Ref.ID, err)
	}
	return &p, nil
}
