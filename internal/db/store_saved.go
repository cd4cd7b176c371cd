package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/david/tender-matcher/internal/models"
)

// Saved tenders

func (s *Store) SaveTender(ctx context.Context, userID, tenderID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO saved_tenders (user_id, tender_id)
		SELECT $1, id FROM tenders WHERE id = $2
		ON CONFLICT (user_id, tender_id) DO NOTHING`, userID, tenderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either already saved or the tender does not exist.
		var exists bool
		if err := s.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM tenders WHERE id = $1)", tenderID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("tender %s: %w", tenderID, ErrNotFound)
		}
	}
	return nil
}

func (s *Store) UnsaveTender(ctx context.Context, userID, tenderID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM saved_tenders
		WHERE user_id = $1 AND tender_id = $2`, userID, tenderID)
	return err
}

func (s *Store) ListSavedTenders(ctx context.Context, userID uuid.UUID) ([]models.Tender, error) {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM tenders
		JOIN saved_tenders st ON tenders.id = st.tender_id
		WHERE st.user_id = $1
		ORDER BY st.created_at DESC`, qualified("tenders", tenderCols)), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenders := []models.Tender{}
	for rows.Next() {
		t, err := scanTender(rows.Scan)
		if err != nil {
			return nil, err
		}
		tenders = append(tenders, t)
	}
	return tenders, rows.Err()
}
