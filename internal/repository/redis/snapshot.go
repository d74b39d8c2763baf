package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Key patterns for Redis snapshots.
func snapshotKey(gameID string) string { return "game:" + gameID + ":snapshot" }
func codeKey(code string) string       { return "code:" + code }

// SaveSnapshot stores the public snapshot and refreshes the code index.
// Every write renews the TTL, so only idle games expire.
func (c *Client) SaveSnapshot(ctx context.Context, gameID, code string, snapshot json.RawMessage) error {
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, snapshotKey(gameID), []byte(snapshot), c.ttl)
	pipe.Set(ctx, codeKey(code), gameID, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// GetSnapshot retrieves the public snapshot JSON, nil when absent.
func (c *Client) GetSnapshot(ctx context.Context, gameID string) (json.RawMessage, error) {
	data, err := c.rdb.Get(ctx, snapshotKey(gameID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return json.RawMessage(data), nil
}

// GetSnapshotByCode resolves a room code to its snapshot, nil when absent.
func (c *Client) GetSnapshotByCode(ctx context.Context, code string) (json.RawMessage, error) {
	gameID, err := c.rdb.Get(ctx, codeKey(code)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve code: %w", err)
	}
	return c.GetSnapshot(ctx, gameID)
}

// DeleteSnapshot removes a game's snapshot and code index entry.
func (c *Client) DeleteSnapshot(ctx context.Context, gameID, code string) error {
	if err := c.rdb.Del(ctx, snapshotKey(gameID), codeKey(code)).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}
