package remote

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/anbuneel/zenote-sub002/internal/dbx"
	"github.com/anbuneel/zenote-sub002/internal/shared"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ChangeChannel is the NOTIFY channel every write announces on.
const ChangeChannel = "zenote_changes"

// ChangeEvent is the JSON payload published on ChangeChannel. Token is the
// idempotency token of the originating queue entry; devices drop events
// carrying a token they marked as pending-echo.
type ChangeEvent struct {
	Op      string `json:"op"`
	Entity  string `json:"entity"`
	ID      string `json:"id"`
	Token   string `json:"token"`
	OwnerID string `json:"owner_id"`
}

// PostgresStore implements Store over database/sql with the pgx driver.
// Every query filters by the owner the store was built for.
type PostgresStore struct {
	db    *sql.DB
	owner string

	mu       sync.Mutex
	migrated bool
}

// NewPostgresStore opens a connection for the given owner and runs pending
// schema migrations. An unreachable remote is not an error: the store is
// returned anyway and connects lazily, so login keeps working offline.
// Schema errors with the remote reachable are fatal.
func NewPostgresStore(ctx context.Context, dsn, ownerID string) (*PostgresStore, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("remote: empty owner id")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open remote database: %w", err)
	}

	s := &PostgresStore{db: db, owner: ownerID}
	if err := runMigrations(ctx, db); err != nil {
		if !IsRetryable(classify(err)) {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run remote migrations: %w", err)
		}
		// offline at login; Ping retries the schema once connectivity
		// returns
	} else {
		s.migrated = true
	}

	return s, nil
}

// runMigrations re-sets goose's global state every time because the local
// SQLite store shares it with a different dialect.
func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.migrated {
		if err := runMigrations(ctx, s.db); err != nil {
			return classify(err)
		}
		s.migrated = true
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// notify publishes a change event inside the current transaction so the
// event and the row change commit or roll back together.
func (s *PostgresStore) notify(ctx context.Context, tx dbx.DBTX, op, entity, id, token string) error {
	payload, err := json.Marshal(ChangeEvent{
		Op: op, Entity: entity, ID: id, Token: token, OwnerID: s.owner,
	})
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, ChangeChannel, string(payload))
	return err
}

const noteColumns = `id, title, content, pinned, deleted_at, created_at, updated_at`

func (s *PostgresStore) NoteExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM notes WHERE id = $1 AND owner_id = $2)`,
		id, s.owner).Scan(&exists)
	if err != nil {
		return false, classify(err)
	}
	return exists, nil
}

func (s *PostgresStore) GetNote(ctx context.Context, id string) (*Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1 AND owner_id = $2`,
		id, s.owner)

	var n Note
	var deletedAt sql.NullTime
	err := row.Scan(&n.ID, &n.Title, &n.Content, &n.Pinned, &deletedAt, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		n.DeletedAt = &t
	}
	return &n, nil
}

func (s *PostgresStore) NoteUpdatedAt(ctx context.Context, id string) (time.Time, error) {
	var updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT updated_at FROM notes WHERE id = $1 AND owner_id = $2`,
		id, s.owner).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, shared.ErrNotFound
	}
	if err != nil {
		return time.Time{}, classify(err)
	}
	return updatedAt, nil
}

func (s *PostgresStore) CreateNote(ctx context.Context, n *Note, token string) (time.Time, error) {
	var updatedAt time.Time
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO notes (id, owner_id, title, content, pinned, deleted_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			RETURNING updated_at`,
			n.ID, s.owner, n.Title, n.Content, n.Pinned, n.DeletedAt, n.CreatedAt,
		).Scan(&updatedAt)
		if err != nil {
			return err
		}
		return s.notify(ctx, tx, "insert", "note", n.ID, token)
	})
	if err != nil {
		return time.Time{}, classify(err)
	}
	return updatedAt, nil
}

func (s *PostgresStore) UpdateNote(ctx context.Context, n *Note, token string) (time.Time, error) {
	var updatedAt time.Time
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE notes SET title = $1, content = $2, pinned = $3, updated_at = now()
			WHERE id = $4 AND owner_id = $5
			RETURNING updated_at`,
			n.Title, n.Content, n.Pinned, n.ID, s.owner,
		).Scan(&updatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return shared.ErrNotFound
		}
		if err != nil {
			return err
		}
		return s.notify(ctx, tx, "update", "note", n.ID, token)
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return time.Time{}, err
		}
		return time.Time{}, classify(err)
	}
	return updatedAt, nil
}

func (s *PostgresStore) SetNoteDeleted(ctx context.Context, id string, deletedAt *time.Time, token string) (time.Time, error) {
	var updatedAt time.Time
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE notes SET deleted_at = $1, updated_at = now()
			WHERE id = $2 AND owner_id = $3
			RETURNING updated_at`,
			deletedAt, id, s.owner,
		).Scan(&updatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return shared.ErrNotFound
		}
		if err != nil {
			return err
		}
		return s.notify(ctx, tx, "update", "note", id, token)
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return time.Time{}, err
		}
		return time.Time{}, classify(err)
	}
	return updatedAt, nil
}

func (s *PostgresStore) SetNotePinned(ctx context.Context, id string, pinned bool, token string) (time.Time, error) {
	var updatedAt time.Time
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE notes SET pinned = $1, updated_at = now()
			WHERE id = $2 AND owner_id = $3
			RETURNING updated_at`,
			pinned, id, s.owner,
		).Scan(&updatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return shared.ErrNotFound
		}
		if err != nil {
			return err
		}
		return s.notify(ctx, tx, "update", "note", id, token)
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return time.Time{}, err
		}
		return time.Time{}, classify(err)
	}
	return updatedAt, nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, id, token string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM notes WHERE id = $1 AND owner_id = $2`, id, s.owner); err != nil {
			return err
		}
		return s.notify(ctx, tx, "delete", "note", id, token)
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *PostgresStore) NotesUpdatedAfter(ctx context.Context, after time.Time) ([]*Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE owner_id = $1 AND updated_at > $2 ORDER BY updated_at`,
		s.owner, after)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []*Note
	for rows.Next() {
		var n Note
		var deletedAt sql.NullTime
		if err := rows.Scan(&n.ID, &n.Title, &n.Content, &n.Pinned, &deletedAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, classify(err)
		}
		if deletedAt.Valid {
			t := deletedAt.Time
			n.DeletedAt = &t
		}
		result = append(result, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return result, nil
}

func (s *PostgresStore) TagExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tags WHERE id = $1 AND owner_id = $2)`,
		id, s.owner).Scan(&exists)
	if err != nil {
		return false, classify(err)
	}
	return exists, nil
}

func (s *PostgresStore) GetTag(ctx context.Context, id string) (*Tag, error) {
	var t Tag
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, color, updated_at FROM tags WHERE id = $1 AND owner_id = $2`,
		id, s.owner).Scan(&t.ID, &t.Name, &t.Color, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return &t, nil
}

func (s *PostgresStore) CreateTag(ctx context.Context, t *Tag, token string) (time.Time, error) {
	var updatedAt time.Time
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := tx.QueryRowContext(ctx, `
			INSERT INTO tags (id, owner_id, name, color, updated_at)
			VALUES ($1, $2, $3, $4, now())
			RETURNING updated_at`,
			t.ID, s.owner, t.Name, t.Color,
		).Scan(&updatedAt)
		if err != nil {
			return err
		}
		return s.notify(ctx, tx, "insert", "tag", t.ID, token)
	})
	if err != nil {
		return time.Time{}, classify(err)
	}
	return updatedAt, nil
}

func (s *PostgresStore) UpdateTag(ctx context.Context, t *Tag, token string) (time.Time, error) {
	var updatedAt time.Time
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE tags SET name = $1, color = $2, updated_at = now()
			WHERE id = $3 AND owner_id = $4
			RETURNING updated_at`,
			t.Name, t.Color, t.ID, s.owner,
		).Scan(&updatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return shared.ErrNotFound
		}
		if err != nil {
			return err
		}
		return s.notify(ctx, tx, "update", "tag", t.ID, token)
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return time.Time{}, err
		}
		return time.Time{}, classify(err)
	}
	return updatedAt, nil
}

func (s *PostgresStore) DeleteTag(ctx context.Context, id, token string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM tags WHERE id = $1 AND owner_id = $2`, id, s.owner); err != nil {
			return err
		}
		return s.notify(ctx, tx, "delete", "tag", id, token)
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *PostgresStore) TagsUpdatedAfter(ctx context.Context, after time.Time) ([]*Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, color, updated_at FROM tags WHERE owner_id = $1 AND updated_at > $2 ORDER BY updated_at`,
		s.owner, after)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var result []*Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.UpdatedAt); err != nil {
			return nil, classify(err)
		}
		result = append(result, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return result, nil
}

func (s *PostgresStore) AllTagIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM tags WHERE owner_id = $1`, s.owner)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return ids, nil
}

func (s *PostgresStore) AddLink(ctx context.Context, noteID, tagID, token string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO note_tags (note_id, tag_id, owner_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (note_id, tag_id) DO NOTHING`,
			noteID, tagID, s.owner); err != nil {
			return err
		}
		return s.notify(ctx, tx, "insert", "link", noteID+"/"+tagID, token)
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *PostgresStore) RemoveLink(ctx context.Context, noteID, tagID, token string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM note_tags WHERE note_id = $1 AND tag_id = $2 AND owner_id = $3`,
			noteID, tagID, s.owner); err != nil {
			return err
		}
		return s.notify(ctx, tx, "delete", "link", noteID+"/"+tagID, token)
	})
	if err != nil {
		return classify(err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
