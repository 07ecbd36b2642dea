package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/anbuneel/zenote-sub002/internal/dbx"
	"github.com/anbuneel/zenote-sub002/internal/models"
	"github.com/anbuneel/zenote-sub002/internal/shared"
)

const noteColumns = `id, title, content, pinned, deleted_at, created_at, updated_at,
	sync_status, last_synced_at, server_updated_at, local_updated_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, n *models.Note) error {
	query := `INSERT INTO notes (` + noteColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.Title, n.Content, n.Pinned,
		dbx.NullUnixNano(n.DeletedAt), dbx.UnixNano(n.CreatedAt), dbx.UnixNano(n.UpdatedAt),
		string(n.SyncStatus), dbx.NullUnixNano(n.LastSyncedAt), dbx.NullUnixNano(n.ServerUpdatedAt),
		dbx.UnixNano(n.LocalUpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, n *models.Note) error {
	query := `UPDATE notes SET title=?, content=?, pinned=?, deleted_at=?, updated_at=?,
		sync_status=?, last_synced_at=?, server_updated_at=?, local_updated_at=?
		WHERE id=?`
	res, err := r.db.ExecContext(ctx, query,
		n.Title, n.Content, n.Pinned,
		dbx.NullUnixNano(n.DeletedAt), dbx.UnixNano(n.UpdatedAt),
		string(n.SyncStatus), dbx.NullUnixNano(n.LastSyncedAt), dbx.NullUnixNano(n.ServerUpdatedAt),
		dbx.UnixNano(n.LocalUpdatedAt), n.ID)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
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

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes WHERE id=?`
	n, err := scanNote(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select note: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) ListActive(ctx context.Context) ([]*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes
		WHERE deleted_at IS NULL
		ORDER BY pinned DESC, updated_at DESC`
	return r.list(ctx, query)
}

func (r *SQLiteRepository) ListDeleted(ctx context.Context) ([]*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes
		WHERE deleted_at IS NOT NULL
		ORDER BY deleted_at DESC`
	return r.list(ctx, query)
}

func (r *SQLiteRepository) ListConflicted(ctx context.Context) ([]*models.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes
		WHERE sync_status=?
		ORDER BY updated_at DESC`
	return r.list(ctx, query, string(models.StatusConflict))
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.Note, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select notes: %w", err)
	}
	defer rows.Close()

	var result []*models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
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

func (r *SQLiteRepository) MaxLastSyncedAt(ctx context.Context) (*time.Time, error) {
	var v sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT max(last_synced_at) FROM notes`).Scan(&v)
	if err != nil {
		return nil, fmt.Errorf("failed to select watermark: %w", err)
	}
	return dbx.TimePtrFromNull(v), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*models.Note, error) {
	var (
		n                              models.Note
		status                         string
		deletedAt, lastSynced, srvUpd  sql.NullInt64
		createdAt, updatedAt, localUpd int64
	)
	err := row.Scan(&n.ID, &n.Title, &n.Content, &n.Pinned,
		&deletedAt, &createdAt, &updatedAt,
		&status, &lastSynced, &srvUpd, &localUpd)
	if err != nil {
		return nil, err
	}
	n.DeletedAt = dbx.TimePtrFromNull(deletedAt)
	n.CreatedAt = dbx.TimeFromUnixNano(createdAt)
	n.UpdatedAt = dbx.TimeFromUnixNano(updatedAt)
	n.SyncStatus = models.SyncStatus(status)
	n.LastSyncedAt = dbx.TimePtrFromNull(lastSynced)
	n.ServerUpdatedAt = dbx.TimePtrFromNull(srvUpd)
	n.LocalUpdatedAt = dbx.TimeFromUnixNano(localUpd)
	return &n, nil
}
