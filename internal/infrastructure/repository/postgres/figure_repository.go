package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

type FigureRepository struct {
	db      *sql.DB
	timeout time.Duration
}

func NewFigureRepository(db *sql.DB, timeout time.Duration) *FigureRepository {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &FigureRepository{db: db, timeout: timeout}
}

// FiguresOnPages returns figures with a storage url on exactly the given pages.
func (r *FigureRepository) FiguresOnPages(ctx context.Context, manualID string, pages []int) ([]domain.Figure, error) {
	if manualID == "" || len(pages) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
SELECT id, manual_id, page_number, storage_url, kind, figure_type, caption_text, ocr_text,
	semantic_tags, keywords, detected_components
FROM manual_figures
WHERE manual_id = $1
  AND page_number = ANY($2::int[])
  AND storage_url <> ''
ORDER BY page_number, id
`, manualID, intArrayLiteral(pages))
	if err != nil {
		return nil, fmt.Errorf("query figures: %w", err)
	}
	defer rows.Close()

	var out []domain.Figure
	for rows.Next() {
		var f domain.Figure
		var tagsRaw, keywordsRaw, componentsRaw []byte
		if err := rows.Scan(
			&f.ID, &f.ManualID, &f.PageNumber, &f.StorageURL, &f.Kind, &f.FigureType, &f.CaptionText, &f.OCRText,
			&tagsRaw, &keywordsRaw, &componentsRaw,
		); err != nil {
			return nil, fmt.Errorf("scan figure: %w", err)
		}
		for _, field := range []struct {
			raw []byte
			dst *[]string
		}{
			{tagsRaw, &f.SemanticTags},
			{keywordsRaw, &f.Keywords},
			{componentsRaw, &f.DetectedComponents},
		} {
			if len(field.raw) == 0 {
				continue
			}
			if err := json.Unmarshal(field.raw, field.dst); err != nil {
				return nil, fmt.Errorf("unmarshal figure %s metadata: %w", f.ID, err)
			}
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate figures: %w", err)
	}
	return out, nil
}
