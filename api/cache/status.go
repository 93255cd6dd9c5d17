package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cadconverter/api/database"
	"cadconverter/api/models"
)

const (
	statusKeyPrefix = "conversion:status:"
	statusTTL       = 30 * time.Minute
)

// StatusEntry is the cached slice of a task: enough to answer a status
// poll without touching Postgres.
type StatusEntry struct {
	Status       models.TaskStatus `json:"status"`
	ErrorKind    string            `json:"error_kind,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
}

type StatusCache struct {
	cache *database.Cache
}

func NewStatusCache(cache *database.Cache) *StatusCache {
	return &StatusCache{cache: cache}
}

func (sc *StatusCache) Get(ctx context.Context, taskID string) (*StatusEntry, error) {
	data, err := sc.cache.Get(ctx, statusKeyPrefix+taskID)
	if err != nil {
		return nil, err
	}

	var entry StatusEntry
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("decode cached status: %w", err)
	}
	return &entry, nil
}

func (sc *StatusCache) Set(ctx context.Context, taskID string, entry StatusEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return sc.cache.Set(ctx, statusKeyPrefix+taskID, data, statusTTL)
}

func (sc *StatusCache) Delete(ctx context.Context, taskID string) error {
	return sc.cache.Del(ctx, statusKeyPrefix+taskID)
}
