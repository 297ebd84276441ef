package channel

import (
	"context"

	"watchtower/pkg/models"
)

// Channel is a notification sink for dispatched alerts. Implementations
// must be safe for concurrent Send calls and must honor ctx cancellation;
// the dispatcher bounds every send with a per-channel timeout.
type Channel interface {
	Name() string
	Send(ctx context.Context, alert *models.SecurityAlert) error
	Close() error
}
