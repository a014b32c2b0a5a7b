package store

import (
	"context"
	"errors"
	"time"

	"github.com/voyagen/castvault/internal/models"
)

// ErrNotFound is returned when no snapshot exists for a ref.
var ErrNotFound = errors.New("snapshot not found")

// Store persists the last good catalog build per source ref.
type Store interface {
	// SaveSnapshot replaces the channels stored for ref, keeping their order.
	SaveSnapshot(ctx context.Context, ref string, channels []models.Channel) (SnapshotInfo, error)
	// GetSnapshot returns the stored snapshot for ref, or ErrNotFound.
	GetSnapshot(ctx context.Context, ref string) (*Snapshot, error)
	// ListSnapshots returns metadata of all stored snapshots, newest first.
	ListSnapshots(ctx context.Context) ([]SnapshotInfo, error)
	// DeleteSnapshot removes ref and its channels. Deleting a missing ref returns ErrNotFound.
	DeleteSnapshot(ctx context.Context, ref string) error
}

// SnapshotInfo describes a stored snapshot without its channels.
type SnapshotInfo struct {
	ID           int64     `json:"id"`
	Ref          string    `json:"ref"`
	ChannelCount int       `json:"channel_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot is a stored catalog build.
type Snapshot struct {
	SnapshotInfo
	Channels []models.Channel `json:"channels"`
}
