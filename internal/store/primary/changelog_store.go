package primary

import (
	"context"
	"fmt"
	"time"

	"optimus/internal/models"
	"optimus/internal/store"
)

// --- Change Log Implementation ---

// AppendChange inserts one change-log row for a product field rewrite.
func (s *StoreImpl) AppendChange(ctx context.Context, params store.ChangeLogParams) error {
	query := `
		INSERT INTO changes_log (product_id, field, old, new, source, used_fallback, reviewed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, false, $7)`
	_, err := s.db.Exec(ctx, query,
		params.ProductID, params.Field, params.Old, params.New,
		params.Source, params.UsedFallback, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to append change log for product %d: %w", params.ProductID, err)
	}
	return nil
}

// ListChanges returns recent change-log entries for one product, newest first.
func (s *StoreImpl) ListChanges(ctx context.Context, productID int64, limit int) ([]*models.ChangeLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, product_id, field, old, new, source, used_fallback, reviewed, created_at
		FROM changes_log WHERE product_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := s.db.Query(ctx, query, productID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query change log for product %d: %w", productID, err)
	}
	defer rows.Close()

	var entries []*models.ChangeLogEntry
	for rows.Next() {
		e := &models.ChangeLogEntry{}
		err := rows.Scan(&e.ID, &e.ProductID, &e.Field, &e.Old, &e.New, &e.Source, &e.UsedFallback, &e.Reviewed, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change log row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating change log rows: %w", err)
	}
	return entries, nil
}

// MarkReviewed flags every change-log entry for a product as reviewed.
func (s *StoreImpl) MarkReviewed(ctx context.Context, productID int64) error {
	query := `UPDATE changes_log SET reviewed = true WHERE product_id = $1`
	if _, err := s.db.Exec(ctx, query, productID); err != nil {
		return fmt.Errorf("failed to mark changes reviewed for product %d: %w", productID, err)
	}
	return nil
}

// Ensure StoreImpl satisfies the ChangeLogStore interface
var _ store.ChangeLogStore = (*StoreImpl)(nil)
