package app

import (
	"context"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
)

// outboxBacklog адаптирует OutboxRepository к health.BacklogSource.
type outboxBacklog struct {
	repo domain.OutboxRepository
}

func (b outboxBacklog) Pending(ctx context.Context) (int, error) {
	stats, err := b.repo.Stats(ctx)
	if err != nil {
		return 0, err
	}
	return stats.PendingCount, nil
}
