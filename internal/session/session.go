package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNoActiveOrder is returned when a user has no bound order.
var ErrNoActiveOrder = errors.New("no active order bound to session")

// TTL after which a stale binding expires on its own. Bindings are a
// convenience pointer for clients, never an input to lifecycle commands,
// so expiry is harmless.
const bindingTTL = 12 * time.Hour

// Binder remembers which order each user is currently working on.
type Binder struct {
	client redis.Cmdable
}

func NewBinder(client redis.Cmdable) *Binder {
	return &Binder{client: client}
}

func key(userID uuid.UUID) string {
	return fmt.Sprintf("session:order:%s", userID)
}

// Bind points the user's session at an order, replacing any previous
// binding.
func (b *Binder) Bind(ctx context.Context, userID, orderID uuid.UUID) error {
	if err := b.client.Set(ctx, key(userID), orderID.String(), bindingTTL).Err(); err != nil {
		return fmt.Errorf("bind order: %w", err)
	}
	return nil
}

// Active returns the order currently bound to the user's session.
func (b *Binder) Active(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	val, err := b.client.Get(ctx, key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrNoActiveOrder
		}
		return uuid.Nil, fmt.Errorf("get active order: %w", err)
	}
	orderID, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, fmt.Errorf("corrupt binding %q: %w", val, err)
	}
	return orderID, nil
}

// Clear removes the user's binding. Clearing an absent binding is a
// no-op.
func (b *Binder) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := b.client.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("clear binding: %w", err)
	}
	return nil
}
