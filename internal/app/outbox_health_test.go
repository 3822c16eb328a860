package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeltadeu/pact-shopping-api/internal/domain"
	healthcheck "github.com/joeltadeu/pact-shopping-api/internal/health"
	"github.com/joeltadeu/pact-shopping-api/internal/storage/memory"
)

func TestOutboxBacklogChecker(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewOutboxRepository()
	checker := healthcheck.NewBacklogChecker("outbox", outboxBacklog{repo: repo}, 1)

	require.Equal(t, healthcheck.StatusHealthy, checker.Check(ctx).Status)

	for _, id := range []string{"1", "2"} {
		_, err := repo.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   id,
			EventType:     "OrderCreated",
			Payload:       []byte(`{}`),
		})
		require.NoError(t, err)
	}

	check := checker.Check(ctx)
	require.Equal(t, healthcheck.StatusDegraded, check.Status)
	require.Contains(t, check.Message, "2 pending events")
}
