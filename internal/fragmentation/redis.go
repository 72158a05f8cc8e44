package fragmentation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/redis"
)

// Redis keeps the count under fragmentation:<name> in the client's namespace.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(client *redis.Client, name string) *Redis {
	return &Redis{client: client, key: "fragmentation:" + name}
}

func (r *Redis) Store(ctx context.Context, count int) error {
	if err := r.client.Set(ctx, r.key, count, 0); err != nil {
		return fmt.Errorf("storing %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Retrieve(ctx context.Context) (int, bool, error) {
	v, err := r.client.Get(ctx, r.key)
	if redis.IsNilError(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("loading %s: %w", r.key, err)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, fmt.Errorf("parsing %s: %w", r.key, err)
	}
	return n, true, nil
}
