package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

var knownFigureKinds = map[string]struct{}{
	"diagram":       {},
	"schematic":     {},
	"photo":         {},
	"table":         {},
	"chart":         {},
	"illustration":  {},
	"wiring":        {},
	"exploded_view": {},
	"flowchart":     {},
}

type CitationConfig struct {
	MinCaptionChars int
	MinOCRChars     int
	MaxConcurrency  int
}

func DefaultCitationConfig() CitationConfig {
	return CitationConfig{MinCaptionChars: 10, MinOCRChars: 5, MaxConcurrency: 4}
}

// CitationBuilder maps used chunks back to manual pages and page-aligned figures.
type CitationBuilder struct {
	chunks   ports.ChunkStore
	figures  ports.FigureStore
	observer ports.QueryObserver
	cfg      CitationConfig
}

func NewCitationBuilder(chunks ports.ChunkStore, figures ports.FigureStore, observer ports.QueryObserver, cfg CitationConfig) *CitationBuilder {
	def := DefaultCitationConfig()
	if cfg.MinCaptionChars <= 0 {
		cfg.MinCaptionChars = def.MinCaptionChars
	}
	if cfg.MinOCRChars <= 0 {
		cfg.MinOCRChars = def.MinOCRChars
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = def.MaxConcurrency
	}
	if observer == nil {
		observer = NoopObserver{}
	}
	return &CitationBuilder{chunks: chunks, figures: figures, observer: observer, cfg: cfg}
}

func (b *CitationBuilder) Build(ctx context.Context, usedChunkIDs []string) (domain.CitationSet, error) {
	ids := make([]string, 0, len(usedChunkIDs))
	for _, id := range usedChunkIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return domain.EmptyCitationSet(), nil
	}

	chunks, err := b.chunks.GetByIDs(ctx, ids)
	if err != nil {
		return domain.EmptyCitationSet(), fmt.Errorf("load cited chunks: %w", err)
	}
	return b.BuildFromChunks(ctx, chunks), nil
}

type manualPages struct {
	manualID string
	pages    []int
}

// BuildFromChunks never fails: a manual whose figure lookup errors keeps its
// citations and loses only its thumbnails.
func (b *CitationBuilder) BuildFromChunks(ctx context.Context, chunks []domain.Chunk) domain.CitationSet {
	groups := touchedPages(chunks)
	set := domain.EmptyCitationSet()
	if len(groups) == 0 {
		return set
	}

	for _, g := range groups {
		for _, p := range g.pages {
			set.Citations = append(set.Citations, domain.CitationFor(g.manualID, p))
		}
	}
	if b.figures == nil {
		return set
	}

	results := make([][]domain.Figure, len(groups))
	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.cfg.MaxConcurrency)
	for i, g := range groups {
		eg.Go(func() error {
			figures, err := b.figures.FiguresOnPages(egCtx, g.manualID, g.pages)
			if err != nil {
				slog.WarnContext(ctx, "figure_lookup_failed", "manual_id", g.manualID, "pages", len(g.pages), "error", err)
				b.observer.ObserveFigureLookupFailure(g.manualID)
				return nil
			}
			mu.Lock()
			results[i] = figures
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()

	seen := make(map[string]struct{})
	for i, g := range groups {
		pageSet := make(map[int]struct{}, len(g.pages))
		for _, p := range g.pages {
			pageSet[p] = struct{}{}
		}
		for _, f := range results[i] {
			if f.ManualID != g.manualID || strings.TrimSpace(f.StorageURL) == "" {
				continue
			}
			if _, ok := pageSet[f.PageNumber]; !ok {
				continue
			}
			if !b.relevantFigure(f) {
				continue
			}
			if _, dup := seen[f.ID]; dup {
				continue
			}
			seen[f.ID] = struct{}{}
			set.Thumbnails = append(set.Thumbnails, domain.Thumbnail{
				PageID:   domain.CitationFor(f.ManualID, f.PageNumber),
				URL:      f.StorageURL,
				Title:    thumbnailTitle(f),
				ManualID: f.ManualID,
			})
		}
	}
	return set
}

// touchedPages groups valid pages per manual, manuals in first-seen order, pages ascending.
func touchedPages(chunks []domain.Chunk) []manualPages {
	order := make([]string, 0)
	byManual := make(map[string]map[int]struct{})
	for _, ch := range chunks {
		if ch.ManualID == "" {
			continue
		}
		start, end := ch.PageStart, ch.PageEnd
		if start < 1 {
			start = 1
		}
		if end >= domain.MaxValidPage {
			end = domain.MaxValidPage - 1
		}
		for p := start; p <= end; p++ {
			if !domain.ValidPage(p) {
				continue
			}
			pages, ok := byManual[ch.ManualID]
			if !ok {
				pages = make(map[int]struct{})
				byManual[ch.ManualID] = pages
				order = append(order, ch.ManualID)
			}
			pages[p] = struct{}{}
		}
	}

	out := make([]manualPages, 0, len(order))
	for _, manualID := range order {
		pages := make([]int, 0, len(byManual[manualID]))
		for p := range byManual[manualID] {
			pages = append(pages, p)
		}
		sort.Ints(pages)
		out = append(out, manualPages{manualID: manualID, pages: pages})
	}
	return out
}

func (b *CitationBuilder) relevantFigure(f domain.Figure) bool {
	if len([]rune(strings.TrimSpace(f.CaptionText))) > b.cfg.MinCaptionChars {
		return true
	}
	if len([]rune(strings.TrimSpace(f.OCRText))) > b.cfg.MinOCRChars {
		return true
	}
	if hasNonBlank(f.SemanticTags) || hasNonBlank(f.Keywords) || hasNonBlank(f.DetectedComponents) {
		return true
	}
	return isKnownKind(f.Kind) || isKnownKind(f.FigureType)
}

func hasNonBlank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

func isKnownKind(kind string) bool {
	_, ok := knownFigureKinds[strings.ToLower(strings.TrimSpace(kind))]
	return ok
}

func thumbnailTitle(f domain.Figure) string {
	label := strings.TrimSpace(f.FigureType)
	if label == "" {
		label = strings.TrimSpace(f.Kind)
	}
	if label == "" {
		label = "figure"
	}
	label = strings.ReplaceAll(label, "_", " ")
	runes := []rune(label)
	label = strings.ToUpper(string(runes[0])) + string(runes[1:])
	return fmt.Sprintf("%s (page %d)", label, f.PageNumber)
}
