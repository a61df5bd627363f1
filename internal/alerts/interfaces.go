package alerts

import "context"

// Store is the persistence boundary for alerts. UpdateAlert must apply
// mutate inside a single transaction so concurrent votes are not lost.
// Missing alerts are reported with an error wrapping common.ErrNotFound.
type Store interface {
	CreateAlert(ctx context.Context, alert *SafetyAlert) error
	GetAlert(ctx context.Context, id string) (*SafetyAlert, error)
	UpdateAlert(ctx context.Context, id string, mutate func(*SafetyAlert) error) (*SafetyAlert, error)
	QueryAlerts(ctx context.Context, q Query) ([]*SafetyAlert, error)
}
