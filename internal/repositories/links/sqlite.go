package links

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

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, l *models.NoteTag) error {
	query := `INSERT INTO note_tags (note_id, tag_id, created_at, sync_status)
		VALUES (?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		l.NoteID, l.TagID, dbx.UnixNano(l.CreatedAt), string(l.SyncStatus))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return shared.ErrAlreadyExists
		}
		return fmt.Errorf("failed to insert link: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, noteID, tagID string) (*models.NoteTag, error) {
	query := `SELECT note_id, tag_id, created_at, sync_status
		FROM note_tags WHERE note_id=? AND tag_id=?`
	l, err := scanLink(r.db.QueryRowContext(ctx, query, noteID, tagID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to select link: %w", err)
	}
	return l, nil
}

func (r *SQLiteRepository) ListByNote(ctx context.Context, noteID string) ([]*models.NoteTag, error) {
	query := `SELECT note_id, tag_id, created_at, sync_status
		FROM note_tags WHERE note_id=? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, query, noteID)
	if err != nil {
		return nil, fmt.Errorf("failed to select links: %w", err)
	}
	defer rows.Close()

	var result []*models.NoteTag
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) SetStatus(ctx context.Context, noteID, tagID string, status models.SyncStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE note_tags SET sync_status=? WHERE note_id=? AND tag_id=?`,
		string(status), noteID, tagID)
	if err != nil {
		return fmt.Errorf("failed to update link status: %w", err)
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

func (r *SQLiteRepository) Delete(ctx context.Context, noteID, tagID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM note_tags WHERE note_id=? AND tag_id=?`, noteID, tagID)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
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

func scanLink(row rowScanner) (*models.NoteTag, error) {
	var (
		l         models.NoteTag
		status    string
		createdAt int64
	)
	if err := row.Scan(&l.NoteID, &l.TagID, &createdAt, &status); err != nil {
		return nil, err
	}
	l.CreatedAt = dbx.TimeFromUnixNano(createdAt)
	l.SyncStatus = models.SyncStatus(status)
	return &l, nil
}
