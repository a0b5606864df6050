package primary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"optimus/internal/models"
	"optimus/internal/store"
)

const productColumns = `id, title, body_html, tags, category,
	normalized_title, normalized_body_html, normalized_tags, normalized_category,
	category_confidence, meta_title, meta_description, llm_model,
	last_processed_at, created_at, updated_at`

// updatableProductFields whitelists the columns the pipeline may touch.
var updatableProductFields = map[string]bool{
	"title":                true,
	"body_html":            true,
	"tags":                 true,
	"normalized_title":     true,
	"normalized_body_html": true,
	"normalized_tags":      true,
	"normalized_category":  true,
	"category_confidence":  true,
	"meta_title":           true,
	"meta_description":     true,
	"llm_model":            true,
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(
		&p.ID, &p.Title, &p.BodyHTML, &p.Tags, &p.Category,
		&p.NormalizedTitle, &p.NormalizedBodyHTML, &p.NormalizedTags, &p.NormalizedCategory,
		&p.CategoryConfidence, &p.MetaTitle, &p.MetaDescription, &p.LLMModel,
		&p.LastProcessedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

// GetProduct retrieves a single product by ID.
func (s *StoreImpl) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns)
	p, err := scanProduct(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return p, nil
}

// GetProductsByIDs fetches multiple products in one round trip. Missing IDs
// are silently skipped; callers compare lengths when they care.
func (s *StoreImpl) GetProductsByIDs(ctx context.Context, ids []int64) ([]*models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = ANY($1) ORDER BY id`, productColumns)
	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query products by ids: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	return products, nil
}

// ListProductIDs returns every product ID in the catalog, ordered.
func (s *StoreImpl) ListProductIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list product ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product id rows: %w", err)
	}
	return ids, nil
}

// UpdateProductFields applies the given column/value pairs to one product.
// Unknown columns are rejected so a malformed model result can never write
// outside the whitelisted enrichment fields.
func (s *StoreImpl) UpdateProductFields(ctx context.Context, id int64, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields)+2)
	args := make([]any, 0, len(fields)+2)
	i := 1
	for col, val := range fields {
		if !updatableProductFields[col] {
			return fmt.Errorf("refusing to update non-whitelisted product column %q", col)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, i))
		args = append(args, val)
		i++
	}
	setClauses = append(setClauses, fmt.Sprintf("last_processed_at = $%d", i))
	args = append(args, time.Now())
	i++
	setClauses = append(setClauses, fmt.Sprintf("updated_at = $%d", i))
	args = append(args, time.Now())
	i++
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE products SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), i)
	cmdTag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update product %d: %w", id, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("product %d not found to update: %w", id, store.ErrNotFound)
	}
	return nil
}

// Ensure StoreImpl satisfies the ProductStore interface
var _ store.ProductStore = (*StoreImpl)(nil)
