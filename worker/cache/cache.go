package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix = "conversion:status:"
	statusTTL       = 30 * time.Minute
)

// StatusEntry must stay wire-compatible with the API's cached status,
// since both sides read and write the same keys.
type StatusEntry struct {
	Status       string `json:"status"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type StatusCache struct {
	client *redis.Client
}

func NewStatusCache(client *redis.Client) *StatusCache {
	return &StatusCache{client: client}
}

func (c *StatusCache) Set(ctx context.Context, taskID string, entry StatusEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, statusKeyPrefix+taskID, data, statusTTL).Err()
}
