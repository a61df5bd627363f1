package patterns

import (
	"context"

	"github.com/richxcame/threatwatch/internal/alerts"
)

// Store is the persistence boundary for scam patterns.
//
// UpsertPattern reads the pattern stored under id (nil when absent), passes it
// to apply and writes the returned pattern back, all inside one transaction.
// apply may be invoked more than once when the transaction is retried.
type Store interface {
	UpsertPattern(ctx context.Context, id string, apply func(existing *ScamPattern) (*ScamPattern, error)) (*ScamPattern, error)
	GetPattern(ctx context.Context, id string) (*ScamPattern, error)
	ListPatterns(ctx context.Context, minReportCount int) ([]*ScamPattern, error)
}

// AlertSubmitter ingests synthetic trend alerts through the regular alert path
type AlertSubmitter interface {
	SubmitAlert(ctx context.Context, req *alerts.SubmitAlertRequest) (*alerts.SafetyAlert, error)
}
