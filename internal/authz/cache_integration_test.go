package authz_test

import (
	"context"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"ms-checkin/internal/authz"
	"ms-checkin/internal/models"
)

// countingGate wraps a Gate and counts claim evaluations so the test can
// observe cache hits.
type countingGate struct {
	inner authz.Gate
	calls int
}

func (g *countingGate) CanScan(operator models.Operator, eventID string) bool {
	g.calls++
	return g.inner.CanScan(operator, eventID)
}

func (g *countingGate) CanView(operator models.Operator, eventID string) bool {
	g.calls++
	return g.inner.CanView(operator, eventID)
}

// TestCachedGateIntegration exercises the decision cache against a real
// Redis container.
func TestCachedGateIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:latest",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}
	defer redisContainer.Terminate(ctx)

	host, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	port, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})
	defer client.Close()

	counting := &countingGate{inner: authz.NewRoleGate()}
	gate := authz.NewCachedGate(counting, client)

	staff := models.Operator{
		ID:         "op1",
		EventRoles: map[string][]string{"E1": {"staff"}},
	}

	// First call decides from claims and fills the cache.
	assert.True(t, gate.CanScan(staff, "E1"))
	assert.Equal(t, 1, counting.calls)

	// Repeated calls for the same operator/event hit the cache.
	assert.True(t, gate.CanScan(staff, "E1"))
	assert.True(t, gate.CanScan(staff, "E1"))
	assert.Equal(t, 1, counting.calls)

	// Negative decisions are cached too.
	attendee := models.Operator{ID: "op2"}
	assert.False(t, gate.CanScan(attendee, "E1"))
	assert.False(t, gate.CanScan(attendee, "E1"))
	assert.Equal(t, 2, counting.calls)

	// Different capability is a distinct cache entry.
	assert.True(t, gate.CanView(staff, "E1"))
	assert.Equal(t, 3, counting.calls)
}
