package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

// DefaultMaxBytes caps a single manual source.
const DefaultMaxBytes = 64 << 20

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Extractor loads page-tagged markdown produced by the upstream conversion step
// and normalizes it for the chunker: no BOM, LF line endings, trimmed edges.
type Extractor struct {
	storage  ports.ObjectStorage
	maxBytes int64
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage, maxBytes: DefaultMaxBytes}
}

// WithMaxBytes returns a copy that rejects sources larger than n bytes.
func (e *Extractor) WithMaxBytes(n int64) *Extractor {
	out := *e
	if n > 0 {
		out.maxBytes = n
	}
	return &out
}

func (e *Extractor) Extract(ctx context.Context, storageKey string) (string, error) {
	reader, err := e.storage.Open(ctx, storageKey)
	if err != nil {
		return "", fmt.Errorf("open manual source %s: %w", storageKey, err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, e.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read manual source %s: %w", storageKey, err)
	}
	if int64(len(raw)) > e.maxBytes {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract manual", fmt.Errorf("source %s exceeds %d bytes", storageKey, e.maxBytes))
	}
	if !utf8.Valid(raw) {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract manual", fmt.Errorf("source %s is not utf-8 markdown", storageKey))
	}

	text := strings.TrimPrefix(string(raw), "\ufeff")
	return strings.TrimSpace(lineEndings.Replace(text)), nil
}
