package health

import (
	"context"

	"github.com/precis-labs/precis/internal/domain"
)

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// ProviderChecker checks embedding/completion provider availability.
type ProviderChecker = domain.HealthChecker
