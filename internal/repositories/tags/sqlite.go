package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/anbuneel/zenote-sub002/internal/dbx"
	"github.com/anbuneel/zenote-sub002/internal/models"
	"github.com/anbuneel/zenote-sub002/internal/shared"
)

const tagColumns = `id, name, color, created_at,
	sync_status, last_synced_at, server_updated_at, local_updated_at`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, t *models.Tag) error {
	query := `INSERT INTO tags (` + tagColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		t.ID, t.Name, string(t.Color), dbx.UnixNano(t.CreatedAt),
		string(t.SyncStatus), dbx.NullUnixNano(t.LastSyncedAt), dbx.NullUnixNano(t.ServerUpdatedAt),
		dbx.UnixNano(t.LocalUpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert tag: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, t *models.Tag) error {
	query := `UPDATE tags SET name=?, color=?,
		sync_status=?, last_synced_at=?, server_updated_at=?, local_updated_at=?
		WHERE id=?`
	res, err := r.db.ExecContext(ctx, query,
		t.Name, string(t.Color),
		string(t.SyncStatus), dbx.NullUnixNano(t.LastSyncedAt), dbx.NullUnixNano(t.ServerUpdatedAt),
		dbx.UnixNano(t.LocalUpdatedAt), t.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to update tag: %w", err)
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

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Tag, error) {
	return r.get(ctx, `SELECT `+tagColumns+` FROM tags WHERE id=?`, id)
}

func (r *SQLiteRepository) GetByName(ctx context.Context, name string) (*models.Tag, error) {
	return r.get(ctx, `SELECT `+tagColumns+` FROM tags WHERE name=?`, name)
}

func (r *SQLiteRepository) get(ctx context.Context, query string, arg any) (*models.Tag, error) {
	t, err := scanTag(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select tag: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tagColumns+` FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to select tags: %w", err)
	}
	defer rows.Close()

	var result []*models.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTag(row rowScanner) (*models.Tag, error) {
	var (
		t                  models.Tag
		color, status      string
		lastSynced, srvUpd sql.NullInt64
		createdAt, local   int64
	)
	err := row.Scan(&t.ID, &t.Name, &color, &createdAt,
		&status, &lastSynced, &srvUpd, &local)
	if err != nil {
		return nil, err
	}
	t.Color = models.TagColor(color)
	t.CreatedAt = dbx.TimeFromUnixNano(createdAt)
	t.SyncStatus = models.SyncStatus(status)
	t.LastSyncedAt = dbx.TimePtrFromNull(lastSynced)
	t.ServerUpdatedAt = dbx.TimePtrFromNull(srvUpd)
	t.LocalUpdatedAt = dbx.TimeFromUnixNano(local)
	return &t, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
