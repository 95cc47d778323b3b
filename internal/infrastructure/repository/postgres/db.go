package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const defaultQueryTimeout = 5 * time.Second

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the pgvector extension, chunk and figure tables.
func EnsureSchema(ctx context.Context, db *sql.DB, embeddingDims int) error {
	if embeddingDims <= 0 {
		return fmt.Errorf("embedding dimensions must be positive, got %d", embeddingDims)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026101601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	query := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS manual_chunks (
	id TEXT PRIMARY KEY,
	manual_id TEXT NOT NULL,
	tenant_id TEXT NOT NULL DEFAULT '',
	version TEXT NOT NULL DEFAULT '',
	page_start INTEGER NOT NULL,
	page_end INTEGER NOT NULL,
	section_path JSONB NOT NULL DEFAULT '[]'::jsonb,
	content TEXT NOT NULL,
	features JSONB NOT NULL DEFAULT '{}'::jsonb,
	embedding vector(%d) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT manual_chunks_page_range CHECK (page_start > 0 AND page_end < 1000 AND page_start <= page_end)
);

CREATE INDEX IF NOT EXISTS idx_manual_chunks_scope ON manual_chunks(manual_id, tenant_id);
CREATE INDEX IF NOT EXISTS idx_manual_chunks_embedding ON manual_chunks USING hnsw (embedding vector_cosine_ops);

CREATE TABLE IF NOT EXISTS manual_figures (
	id TEXT PRIMARY KEY,
	manual_id TEXT NOT NULL,
	page_number INTEGER NOT NULL,
	storage_url TEXT NOT NULL DEFAULT '',
	kind TEXT NOT NULL DEFAULT '',
	figure_type TEXT NOT NULL DEFAULT '',
	caption_text TEXT NOT NULL DEFAULT '',
	ocr_text TEXT NOT NULL DEFAULT '',
	semantic_tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	keywords JSONB NOT NULL DEFAULT '[]'::jsonb,
	detected_components JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_manual_figures_page ON manual_figures(manual_id, page_number);
`, embeddingDims)
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// textArrayLiteral renders ids as a Postgres text[] literal for ANY($n::text[]).
func textArrayLiteral(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ReplaceAll(v, `\`, `\\`)
		v = strings.ReplaceAll(v, `"`, `\"`)
		quoted = append(quoted, `"`+v+`"`)
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

func intArrayLiteral(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
