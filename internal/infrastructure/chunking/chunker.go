package chunking

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

var (
	pageHeaderPattern = regexp.MustCompile(`(?i)^<!--\s*page\b\s*(.*?)\s*-->$`)
	blankLinePattern  = regexp.MustCompile(`\n[ \t]*\n`)
)

type Options struct {
	SoftLimit int
	HardLimit int
	Counter   TokenCounter
}

// Chunker turns page-tagged markdown into single-page chunks.
type Chunker struct {
	softLimit int
	hardLimit int
	counter   TokenCounter
	newID     func() string
}

func New(opts Options) *Chunker {
	soft := opts.SoftLimit
	if soft <= 0 {
		soft = 500
	}
	hard := opts.HardLimit
	if hard < soft {
		hard = soft + soft/5
	}
	counter := opts.Counter
	if counter == nil {
		counter = WordHeuristic{TokensPerWord: 1.3}
	}
	return &Chunker{
		softLimit: soft,
		hardLimit: hard,
		counter:   counter,
		newID:     uuid.NewString,
	}
}

type page struct {
	number int
	body   string
}

func (c *Chunker) Split(doc domain.ManualDocument) []domain.Chunk {
	var out []domain.Chunk
	for _, p := range splitPages(doc.ManualID, doc.Body) {
		for _, content := range c.splitPage(p.body) {
			out = append(out, domain.Chunk{
				ID:        c.newID(),
				ManualID:  doc.ManualID,
				TenantID:  doc.TenantID,
				Version:   doc.Version,
				PageStart: p.number,
				PageEnd:   p.number,
				Content:   content,
			})
		}
	}
	return out
}

// splitPages drops text before the first header and under malformed headers.
func splitPages(manualID, body string) []page {
	var (
		pages   []page
		current = -1
		buf     strings.Builder
	)
	flush := func() {
		if current > 0 {
			pages = append(pages, page{number: current, body: buf.String()})
		}
		buf.Reset()
	}

	for _, line := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		m := pageHeaderPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			if current > 0 {
				buf.WriteString(line)
				buf.WriteByte('\n')
			}
			continue
		}
		flush()
		n, err := strconv.Atoi(m[1])
		if err != nil || !domain.ValidPage(n) {
			slog.Warn("malformed_page_header", "manual_id", manualID, "header", strings.TrimSpace(line))
			current = 0
			continue
		}
		current = n
	}
	flush()
	return pages
}

func (c *Chunker) splitPage(body string) []string {
	var (
		out       []string
		buffer    []string
		bufTokens int
	)
	flush := func() {
		if len(buffer) > 0 {
			out = append(out, strings.Join(buffer, "\n\n"))
		}
		buffer = buffer[:0]
		bufTokens = 0
	}

	for _, para := range splitParagraphs(body) {
		tokens := c.counter.Count(para)
		if tokens > c.hardLimit {
			flush()
			out = append(out, c.splitOversized(para, tokens)...)
			continue
		}
		if len(buffer) > 0 && bufTokens+tokens > c.softLimit {
			flush()
		}
		buffer = append(buffer, para)
		bufTokens += tokens
		if bufTokens >= c.hardLimit {
			flush()
		}
	}
	flush()
	return out
}

// splitOversized cuts one paragraph into word windows of roughly softLimit tokens.
func (c *Chunker) splitOversized(para string, tokens int) []string {
	words := strings.Fields(para)
	perWindow := len(words) * c.softLimit / tokens
	if perWindow < 1 {
		perWindow = 1
	}
	out := make([]string, 0, len(words)/perWindow+1)
	for start := 0; start < len(words); start += perWindow {
		end := start + perWindow
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[start:end], " "))
	}
	return out
}

func splitParagraphs(body string) []string {
	raw := blankLinePattern.Split(body, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
