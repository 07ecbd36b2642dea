package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/anbuneel/zenote-sub002/internal/dbx"
	"github.com/anbuneel/zenote-sub002/internal/models"
	"github.com/anbuneel/zenote-sub002/internal/repositories/notes"
)

// importChunkSize bounds memory per transaction during bulk import.
// Tuning constant, not a correctness constraint.
const importChunkSize = 100

// ImportRecord is one note to create during bulk import.
type ImportRecord struct {
	Title   string `json:"title"`
	Content []byte `json:"content"`
	Pinned  bool   `json:"pinned"`
}

// Import bulk-creates notes in fixed-size chunks. Each record gets its own
// queue entry so a failed push retries per note, not per batch. The
// progress callback, if non-nil, is invoked after every chunk.
func (s *noteService) Import(ctx context.Context, records []ImportRecord, progress func(done, total int)) ([]*models.Note, error) {
	total := len(records)
	created := make([]*models.Note, 0, total)

	for start := 0; start < total; start += importChunkSize {
		end := start + importChunkSize
		if end > total {
			end = total
		}
		chunk := records[start:end]

		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			nr := notes.NewSQLiteRepository(tx)
			for _, rec := range chunk {
				n := s.newImportedNote(rec)
				if err := nr.Insert(ctx, n); err != nil {
					return err
				}
				if err := s.enqueue(ctx, tx, models.OpCreate, models.EntityNote, n.ID, &models.NotePayload{
					Title:     n.Title,
					Content:   n.Content,
					Pinned:    n.Pinned,
					UpdatedAt: n.LocalUpdatedAt,
				}, false); err != nil {
					return err
				}
				created = append(created, n)
			}
			return nil
		})
		if err != nil {
			return created, fmt.Errorf("import failed at record %d: %w", start, err)
		}

		if progress != nil {
			progress(end, total)
		}
	}

	return created, nil
}

func (s *noteService) newImportedNote(rec ImportRecord) *models.Note {
	now := s.now().UTC()
	return &models.Note{
		ID:             uuid.NewString(),
		Title:          rec.Title,
		Content:        rec.Content,
		Pinned:         rec.Pinned,
		CreatedAt:      now,
		UpdatedAt:      now,
		SyncStatus:     models.StatusPending,
		LocalUpdatedAt: now,
	}
}
