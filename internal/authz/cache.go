package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-checkin/internal/models"
)

// SessionTTL bounds how long a cached decision may live. A scan session at a
// gate rarely outlasts this; role revocations take effect on the next session.
const SessionTTL = 5 * time.Minute

// CachedGate wraps a Gate with a Redis decision cache so a busy entrance
// doesn't re-resolve the same operator's roles on every scan.
type CachedGate struct {
	Inner  Gate
	Client *redis.Client
}

func NewCachedGate(inner Gate, client *redis.Client) *CachedGate {
	return &CachedGate{Inner: inner, Client: client}
}

func (g *CachedGate) CanScan(operator models.Operator, eventID string) bool {
	return g.cached("scan", operator, eventID, g.Inner.CanScan)
}

func (g *CachedGate) CanView(operator models.Operator, eventID string) bool {
	return g.cached("view", operator, eventID, g.Inner.CanView)
}

func (g *CachedGate) cached(capability string, operator models.Operator, eventID string, decide func(models.Operator, string) bool) bool {
	if g.Client == nil {
		return decide(operator, eventID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	key := fmt.Sprintf("authz:%s:%s:%s", capability, operator.ID, eventID)
	val, err := g.Client.Get(ctx, key).Result()
	if err == nil {
		return val == "1"
	}
	// redis.Nil means a miss; anything else means Redis is unwell. Either
	// way the claims decision is authoritative.
	allowed := decide(operator, eventID)
	if err == redis.Nil {
		stored := "0"
		if allowed {
			stored = "1"
		}
		g.Client.Set(ctx, key, stored, SessionTTL)
	}
	return allowed
}
