package store

import (
	"context"
	"errors"
	"fmt"

	"honeypot-service/internal/model"
)

var (
	// ErrNotFound is returned by point lookups for absent ids.
	ErrNotFound = errors.New("store: not found")
	// ErrInvalidFilter is returned when a filter key is outside the allow-list.
	ErrInvalidFilter = errors.New("store: invalid filter")
)

// Filters restricts attack queries by column equality. Only the keys in
// allowedFilterColumns are accepted; anything else fails validation before a
// query runs.
type Filters map[string]string

var allowedFilterColumns = map[string]bool{
	"protocol":     true,
	"attack_type":  true,
	"source_ip":    true,
	"threat_level": true,
}

// Validate rejects unknown filter keys.
func (f Filters) Validate() error {
	for col := range f {
		if !allowedFilterColumns[col] {
			return fmt.Errorf("%w: column %q is not allowed", ErrInvalidFilter, col)
		}
	}
	return nil
}

// Store is the append-only log of captured attack events and derived alerts.
// Writers are serialized so assigned ids are unique and strictly increasing;
// persisted rows are immutable.
type Store interface {
	RecordAttack(ctx context.Context, event *model.AttackEvent) (int64, error)
	GetAttacks(ctx context.Context, limit, offset int, filters Filters) ([]model.AttackEvent, error)
	GetAttackByID(ctx context.Context, id int64) (*model.AttackEvent, error)
	GetAttackStatistics(ctx context.Context) (*model.StoreStats, error)

	RecordAlert(ctx context.Context, alert *model.Alert) (int64, error)
	GetAlerts(ctx context.Context, limit, offset int) ([]model.Alert, error)

	HealthCheck(ctx context.Context) error
	Close() error
}
