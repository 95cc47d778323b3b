package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

const chunkColumns = `id, manual_id, tenant_id, version, page_start, page_end, section_path, content, features`

// ChunkRepository is the pgvector-backed chunk index.
type ChunkRepository struct {
	db      *sql.DB
	timeout time.Duration
}

func NewChunkRepository(db *sql.DB, timeout time.Duration) *ChunkRepository {
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &ChunkRepository{db: db, timeout: timeout}
}

// Search ranks by cosine distance and keeps rows with similarity >= filter.MinScore.
func (r *ChunkRepository) Search(ctx context.Context, queryVector []float32, limit int, filter ports.ChunkSearchFilter) ([]domain.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
SELECT `+chunkColumns+`, 1 - (embedding <=> $1) AS score
FROM manual_chunks
WHERE 1 - (embedding <=> $1) >= $2
  AND ($3 = '' OR manual_id = $3)
  AND ($4 = '' OR tenant_id = $4)
ORDER BY embedding <=> $1
LIMIT $5
`, pgvector.NewVector(queryVector), filter.MinScore, filter.ManualID, filter.TenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Candidate, 0, limit)
	for rows.Next() {
		var cand domain.Candidate
		var sectionRaw, featuresRaw []byte
		if err := rows.Scan(
			&cand.ID, &cand.ManualID, &cand.TenantID, &cand.Version, &cand.PageStart, &cand.PageEnd,
			&sectionRaw, &cand.Content, &featuresRaw, &cand.Score,
		); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if err := decodeChunkJSON(&cand.Chunk, sectionRaw, featuresRaw); err != nil {
			return nil, err
		}
		cand.OriginalScore = cand.Score
		out = append(out, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

// GetByIDs returns chunks in the order of ids. Unknown ids are omitted.
func (r *ChunkRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
SELECT `+chunkColumns+`
FROM manual_chunks
WHERE id = ANY($1::text[])
`, textArrayLiteral(ids))
	if err != nil {
		return nil, fmt.Errorf("get chunks by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Chunk, len(ids))
	for rows.Next() {
		var ch domain.Chunk
		var sectionRaw, featuresRaw []byte
		if err := rows.Scan(
			&ch.ID, &ch.ManualID, &ch.TenantID, &ch.Version, &ch.PageStart, &ch.PageEnd,
			&sectionRaw, &ch.Content, &featuresRaw,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if err := decodeChunkJSON(&ch, sectionRaw, featuresRaw); err != nil {
			return nil, err
		}
		byID[ch.ID] = ch
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	out := make([]domain.Chunk, 0, len(byID))
	for _, id := range ids {
		if ch, ok := byID[id]; ok {
			out = append(out, ch)
			delete(byID, id)
		}
	}
	return out, nil
}

// ReplaceManualChunks swaps a manual's chunk set atomically.
func (r *ChunkRepository) ReplaceManualChunks(ctx context.Context, manualID, tenantID string, chunks []domain.Chunk) error {
	if manualID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "replace manual chunks", fmt.Errorf("empty manual id"))
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM manual_chunks WHERE manual_id = $1 AND tenant_id = $2`, manualID, tenantID); err != nil {
		return fmt.Errorf("delete manual chunks: %w", err)
	}

	for _, ch := range chunks {
		if err := ch.Validate(); err != nil {
			return err
		}
		if len(ch.Embedding) == 0 {
			return domain.WrapError(domain.ErrInvalidInput, "replace manual chunks", fmt.Errorf("chunk %s has no embedding", ch.ID))
		}
		sectionJSON, err := json.Marshal(nonNilStrings(ch.SectionPath))
		if err != nil {
			return fmt.Errorf("marshal section path: %w", err)
		}
		features := ch.Features
		if features == nil {
			features = map[string]any{}
		}
		featuresJSON, err := json.Marshal(features)
		if err != nil {
			return fmt.Errorf("marshal features: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO manual_chunks (`+chunkColumns+`, embedding)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`,
			ch.ID, manualID, tenantID, ch.Version, ch.PageStart, ch.PageEnd,
			sectionJSON, ch.Content, featuresJSON, pgvector.NewVector(ch.Embedding),
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", ch.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func decodeChunkJSON(ch *domain.Chunk, sectionRaw, featuresRaw []byte) error {
	if len(sectionRaw) > 0 {
		if err := json.Unmarshal(sectionRaw, &ch.SectionPath); err != nil {
			return fmt.Errorf("unmarshal section path: %w", err)
		}
	}
	if len(featuresRaw) > 0 {
		if err := json.Unmarshal(featuresRaw, &ch.Features); err != nil {
			return fmt.Errorf("unmarshal features: %w", err)
		}
	}
	return nil
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
