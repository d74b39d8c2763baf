// Package repository declares the persistence contracts the server wires
// at startup. Live games are authoritative in memory; Redis holds
// observer snapshots and Postgres archives finished games.
package repository

import (
	"context"
	"encoding/json"
)

// SnapshotStore defines the write-through public snapshot operations
// (Redis). The in-memory game remains the source of truth; snapshots
// exist for observers and post-restart inspection.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, gameID, code string, snapshot json.RawMessage) error
	GetSnapshot(ctx context.Context, gameID string) (json.RawMessage, error)
	GetSnapshotByCode(ctx context.Context, code string) (json.RawMessage, error)
	DeleteSnapshot(ctx context.Context, gameID, code string) error
}
