package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anbuneel/zenote-sub002/internal/dbx"
	"github.com/anbuneel/zenote-sub002/internal/models"
	"github.com/anbuneel/zenote-sub002/internal/shared"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Append(ctx context.Context, e *models.QueueEntry) error {
	query := `INSERT INTO sync_queue (token, op, entity, entity_id, payload, enqueued_at, retries)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		e.Token, string(e.Op), string(e.Entity), e.EntityID,
		string(e.Payload), dbx.UnixNano(e.EnqueuedAt), e.Retries)
	if err != nil {
		return fmt.Errorf("failed to append queue entry: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get queue sequence: %w", err)
	}
	e.Seq = seq
	return nil
}

func (r *SQLiteRepository) All(ctx context.Context) ([]*models.QueueEntry, error) {
	query := `SELECT seq, token, op, entity, entity_id, payload, enqueued_at, retries
		FROM sync_queue ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select queue: %w", err)
	}
	defer rows.Close()

	var result []*models.QueueEntry
	for rows.Next() {
		var (
			e          models.QueueEntry
			op, entity string
			payload    string
			enqueuedAt int64
		)
		if err := rows.Scan(&e.Seq, &e.Token, &op, &entity, &e.EntityID,
			&payload, &enqueuedAt, &e.Retries); err != nil {
			return nil, err
		}
		e.Op = models.Op(op)
		e.Entity = models.Entity(entity)
		e.Payload = json.RawMessage(payload)
		e.EnqueuedAt = dbx.TimeFromUnixNano(enqueuedAt)

		if err := e.ValidatePayload(); err != nil {
			return nil, fmt.Errorf("corrupted queue entry %d: %w", e.Seq, err)
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) CompactUpdates(ctx context.Context, entity models.Entity, entityID string) error {
	query := `DELETE FROM sync_queue WHERE entity=? AND entity_id=? AND op=?`
	_, err := r.db.ExecContext(ctx, query, string(entity), entityID, string(models.OpUpdate))
	if err != nil {
		return fmt.Errorf("failed to compact queue: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, seq int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE seq=?`, seq)
	if err != nil {
		return fmt.Errorf("failed to remove queue entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) IncrementRetries(ctx context.Context, seq int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sync_queue SET retries = retries + 1 WHERE seq=?`, seq)
	if err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) RemoveLinkOpsFor(ctx context.Context, entityID string) error {
	// Link entries use the composite "noteID/tagID" as entity_id.
	query := `DELETE FROM sync_queue WHERE entity=? AND (entity_id LIKE ? OR entity_id LIKE ?)`
	_, err := r.db.ExecContext(ctx, query, string(models.EntityLink),
		entityID+"/%", "%/"+entityID)
	if err != nil {
		return fmt.Errorf("failed to remove link entries: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Len(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM sync_queue`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return count, nil
}
