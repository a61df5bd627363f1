// Package postgres stores alerts and scam patterns in PostgreSQL through a
// pgx connection pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/richxcame/threatwatch/internal/alerts"
	"github.com/richxcame/threatwatch/internal/geo"
	"github.com/richxcame/threatwatch/internal/patterns"
	"github.com/richxcame/threatwatch/pkg/common"
)

// Migrations holds the schema, applied with database.RunMigrations
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations
const MigrationsDir = "migrations"

var (
	_ alerts.Store   = (*Store)(nil)
	_ patterns.Store = (*Store)(nil)
)

const alertColumns = `id, type, title, description, latitude, longitude, cell,
	created_at, reporter_fingerprint, severity, verification_count,
	is_verified, expires_at, tags`

const patternColumns = `id, pattern_type, description, common_phrases,
	report_count, last_seen, effectiveness_score, countermeasures, trend_alerted`

// Store is a PostgreSQL alert and pattern store
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a new store
func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// CreateAlert inserts a new alert
func (s *Store) CreateAlert(ctx context.Context, alert *alerts.SafetyAlert) error {
	lat, lng := coordinates(alert.Location)
	query := `
		INSERT INTO safety_alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	_, err := s.db.Exec(ctx, query,
		alert.ID, alert.Type, alert.Title, alert.Description, lat, lng, alert.Cell,
		alert.CreatedAt, alert.ReporterFingerprint, alert.Severity, alert.VerificationCount,
		alert.IsVerified, alert.ExpiresAt, nonNil(alert.Tags),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert %s: %w", alert.ID, err)
	}
	return nil
}

// GetAlert loads an alert by ID
func (s *Store) GetAlert(ctx context.Context, id string) (*alerts.SafetyAlert, error) {
	row := s.db.QueryRow(ctx, `SELECT `+alertColumns+` FROM safety_alerts WHERE id = $1`, id)
	alert, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert %s: %w", id, err)
	}
	return alert, nil
}

// UpdateAlert locks the alert row, applies mutate and writes it back
func (s *Store) UpdateAlert(ctx context.Context, id string, mutate func(*alerts.SafetyAlert) error) (*alerts.SafetyAlert, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+alertColumns+` FROM safety_alerts WHERE id = $1 FOR UPDATE`, id)
	alert, err := scanAlert(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("alert %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock alert %s: %w", id, err)
	}

	if err := mutate(alert); err != nil {
		return nil, err
	}
	alert.ID = id

	lat, lng := coordinates(alert.Location)
	query := `
		UPDATE safety_alerts
		SET type = $2, title = $3, description = $4, latitude = $5, longitude = $6,
			cell = $7, created_at = $8, reporter_fingerprint = $9, severity = $10,
			verification_count = $11, is_verified = $12, expires_at = $13, tags = $14
		WHERE id = $1
	`
	_, err = tx.Exec(ctx, query,
		alert.ID, alert.Type, alert.Title, alert.Description, lat, lng,
		alert.Cell, alert.CreatedAt, alert.ReporterFingerprint, alert.Severity,
		alert.VerificationCount, alert.IsVerified, alert.ExpiresAt, nonNil(alert.Tags),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update alert %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit alert %s: %w", id, err)
	}
	return alert, nil
}

// QueryAlerts returns matching alerts, newest first
func (s *Store) QueryAlerts(ctx context.Context, q alerts.Query) ([]*alerts.SafetyAlert, error) {
	var (
		conditions []string
		args       []interface{}
	)
	where := func(format string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}

	if !q.ActiveAt.IsZero() {
		where("expires_at >= $%d", q.ActiveAt)
	}
	if !q.Since.IsZero() {
		where("created_at >= $%d", q.Since)
	}
	if q.Cells != nil {
		where("cell = ANY($%d)", q.Cells)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + alertColumns + ` FROM safety_alerts`)
	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}
	sb.WriteString(` ORDER BY created_at DESC, id COLLATE "C" ASC`)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	result := make([]*alerts.SafetyAlert, 0)
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		result = append(result, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read alerts: %w", err)
	}
	return result, nil
}

// UpsertPattern serializes writers on the pattern key with an advisory lock
// so a first report cannot race another first report
func (s *Store) UpsertPattern(ctx context.Context, id string, apply func(existing *patterns.ScamPattern) (*patterns.ScamPattern, error)) (*patterns.ScamPattern, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, id); err != nil {
		return nil, fmt.Errorf("failed to lock pattern %s: %w", id, err)
	}

	var existing *patterns.ScamPattern
	row := tx.QueryRow(ctx, `SELECT `+patternColumns+` FROM scam_patterns WHERE id = $1`, id)
	p, err := scanPattern(row)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("failed to load pattern %s: %w", id, err)
	default:
		existing = p
	}

	updated, err := apply(existing)
	if err != nil {
		return nil, err
	}
	stored := *updated
	stored.ID = id

	query := `
		INSERT INTO scam_patterns (` + patternColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			pattern_type = EXCLUDED.pattern_type,
			description = EXCLUDED.description,
			common_phrases = EXCLUDED.common_phrases,
			report_count = EXCLUDED.report_count,
			last_seen = EXCLUDED.last_seen,
			effectiveness_score = EXCLUDED.effectiveness_score,
			countermeasures = EXCLUDED.countermeasures,
			trend_alerted = EXCLUDED.trend_alerted
	`
	_, err = tx.Exec(ctx, query,
		stored.ID, stored.PatternType, stored.Description, nonNil(stored.CommonPhrases),
		stored.ReportCount, stored.LastSeen, stored.EffectivenessScore, nonNil(stored.Countermeasures),
		stored.TrendAlerted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save pattern %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit pattern %s: %w", id, err)
	}
	return &stored, nil
}

// GetPattern loads a pattern by key
func (s *Store) GetPattern(ctx context.Context, id string) (*patterns.ScamPattern, error) {
	row := s.db.QueryRow(ctx, `SELECT `+patternColumns+` FROM scam_patterns WHERE id = $1`, id)
	p, err := scanPattern(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("pattern %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern %s: %w", id, err)
	}
	return p, nil
}

// ListPatterns returns patterns with at least minReportCount reports
func (s *Store) ListPatterns(ctx context.Context, minReportCount int) ([]*patterns.ScamPattern, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+patternColumns+` FROM scam_patterns WHERE report_count >= $1 ORDER BY id COLLATE "C"`,
		minReportCount,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	result := make([]*patterns.ScamPattern, 0)
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read patterns: %w", err)
	}
	return result, nil
}

func scanAlert(row pgx.Row) (*alerts.SafetyAlert, error) {
	var (
		alert    alerts.SafetyAlert
		lat, lng *float64
	)
	err := row.Scan(
		&alert.ID, &alert.Type, &alert.Title, &alert.Description, &lat, &lng, &alert.Cell,
		&alert.CreatedAt, &alert.ReporterFingerprint, &alert.Severity, &alert.VerificationCount,
		&alert.IsVerified, &alert.ExpiresAt, &alert.Tags,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		alert.Location = &geo.Point{Latitude: *lat, Longitude: *lng}
	}
	return &alert, nil
}

func scanPattern(row pgx.Row) (*patterns.ScamPattern, error) {
	var p patterns.ScamPattern
	err := row.Scan(
		&p.ID, &p.PatternType, &p.Description, &p.CommonPhrases,
		&p.ReportCount, &p.LastSeen, &p.EffectivenessScore, &p.Countermeasures,
		&p.TrendAlerted,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func coordinates(p *geo.Point) (lat, lng *float64) {
	if p == nil {
		return nil, nil
	}
	return &p.Latitude, &p.Longitude
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
