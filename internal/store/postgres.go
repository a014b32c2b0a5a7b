package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyagen/castvault/internal/models"
)

// snapshotColumns lists the snapshots columns in SnapshotInfo field order, as
// required by pgx.RowToStructByPos.
const snapshotColumns = "id, ref, channel_count, updated_at"

// Postgres implements Store using PostgreSQL. Channels are stored as JSONB
// documents, one row per channel.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping checks the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// SaveSnapshot upserts the snapshot row for ref and replaces its channels in
// one transaction.
func (p *Postgres) SaveSnapshot(ctx context.Context, ref string, channels []models.Channel) (SnapshotInfo, error) {
	info := SnapshotInfo{Ref: ref, ChannelCount: len(channels)}
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO snapshots (ref, channel_count, updated_at)
			 VALUES ($1, $2, NOW())
			 ON CONFLICT (ref) DO UPDATE SET
			   channel_count = EXCLUDED.channel_count, updated_at = EXCLUDED.updated_at
			 RETURNING id, updated_at`,
			ref, len(channels),
		).Scan(&info.ID, &info.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert snapshot: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM snapshot_channels WHERE snapshot_id = $1`, info.ID); err != nil {
			return fmt.Errorf("delete snapshot_channels: %w", err)
		}

		batch := &pgx.Batch{}
		for i, ch := range channels {
			doc, err := json.Marshal(ch)
			if err != nil {
				return fmt.Errorf("marshal channel %s: %w", ch.ID, err)
			}
			batch.Queue(
				`INSERT INTO snapshot_channels (snapshot_id, position, channel_id, name, primary_url, document)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				info.ID, i, ch.ID, ch.Name, ch.PrimaryURL(), doc,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert snapshot_channels: %w", err)
		}
		return nil
	})
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("SaveSnapshot: %w", err)
	}
	return info, nil
}

// GetSnapshot returns the snapshot for ref with channels in stored order.
func (p *Postgres) GetSnapshot(ctx context.Context, ref string) (*Snapshot, error) {
	var snap Snapshot
	err := p.pool.QueryRow(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots WHERE ref = $1`, ref,
	).Scan(&snap.ID, &snap.Ref, &snap.ChannelCount, &snap.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetSnapshot: %w", err)
	}

	rows, err := p.pool.Query(ctx,
		`SELECT document FROM snapshot_channels WHERE snapshot_id = $1 ORDER BY position`, snap.ID)
	if err != nil {
		return nil, fmt.Errorf("GetSnapshot channels: %w", err)
	}
	snap.Channels, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Channel, error) {
		var doc []byte
		if err := row.Scan(&doc); err != nil {
			return models.Channel{}, err
		}
		var ch models.Channel
		err := json.Unmarshal(doc, &ch)
		return ch, err
	})
	if err != nil {
		return nil, fmt.Errorf("GetSnapshot channels: %w", err)
	}
	return &snap, nil
}

// ListSnapshots returns all snapshot rows, most recently updated first.
func (p *Postgres) ListSnapshots(ctx context.Context) ([]SnapshotInfo, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+snapshotColumns+` FROM snapshots ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("ListSnapshots: %w", err)
	}
	infos, err := pgx.CollectRows(rows, pgx.RowToStructByPos[SnapshotInfo])
	if err != nil {
		return nil, fmt.Errorf("ListSnapshots: %w", err)
	}
	return infos, nil
}

// DeleteSnapshot deletes the snapshot for ref; channels cascade.
func (p *Postgres) DeleteSnapshot(ctx context.Context, ref string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM snapshots WHERE ref = $1`, ref)
	if err != nil {
		return fmt.Errorf("DeleteSnapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
