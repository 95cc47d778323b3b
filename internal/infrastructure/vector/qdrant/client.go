package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/core/ports"
)

// Client is a ports.ChunkStore backed by a Qdrant collection. Point ids are chunk ids.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func New(baseURL, collection string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type chunkPayload struct {
	ManualID    string         `json:"manual_id"`
	TenantID    string         `json:"tenant_id,omitempty"`
	Version     string         `json:"version"`
	PageStart   int            `json:"page_start"`
	PageEnd     int            `json:"page_end"`
	SectionPath []string       `json:"section_path,omitempty"`
	Content     string         `json:"content"`
	Features    map[string]any `json:"features,omitempty"`
}

type point struct {
	ID      string       `json:"id"`
	Vector  []float32    `json:"vector,omitempty"`
	Payload chunkPayload `json:"payload"`
}

type scoredPoint struct {
	ID      any          `json:"id"`
	Score   float64      `json:"score"`
	Payload chunkPayload `json:"payload"`
}

func (p scoredPoint) chunk() domain.Chunk {
	return domain.Chunk{
		ID:          fmt.Sprintf("%v", p.ID),
		ManualID:    p.Payload.ManualID,
		TenantID:    p.Payload.TenantID,
		Version:     p.Payload.Version,
		PageStart:   p.Payload.PageStart,
		PageEnd:     p.Payload.PageEnd,
		SectionPath: p.Payload.SectionPath,
		Content:     p.Payload.Content,
		Features:    p.Payload.Features,
	}
}

func (c *Client) Search(ctx context.Context, queryVector []float32, limit int, filter ports.ChunkSearchFilter) ([]domain.Candidate, error) {
	reqBody := map[string]any{
		"vector":          queryVector,
		"limit":           limit,
		"with_payload":    true,
		"score_threshold": filter.MinScore,
	}
	if f := scopeFilter(filter.ManualID, filter.TenantID); f != nil {
		reqBody["filter"] = f
	}

	var searchResp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, c.collectionPath("/points/search"), reqBody, &searchResp, "search"); err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.Candidate{
			Chunk:         r.chunk(),
			Score:         r.Score,
			OriginalScore: r.Score,
		})
	}
	return out, nil
}

// GetByIDs returns chunks in the order of ids. Unknown ids are omitted.
func (c *Client) GetByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	reqBody := map[string]any{
		"ids":          ids,
		"with_payload": true,
		"with_vector":  false,
	}
	var resp struct {
		Result []scoredPoint `json:"result"`
	}
	if err := c.do(ctx, http.MethodPost, c.collectionPath("/points"), reqBody, &resp, "retrieve"); err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Chunk, len(resp.Result))
	for _, r := range resp.Result {
		ch := r.chunk()
		byID[ch.ID] = ch
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

// ReplaceManualChunks deletes the manual's points for the tenant, then upserts the new set.
func (c *Client) ReplaceManualChunks(ctx context.Context, manualID, tenantID string, chunks []domain.Chunk) error {
	if manualID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "qdrant replace chunks", fmt.Errorf("empty manual id"))
	}
	points := make([]point, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Embedding) == 0 {
			return domain.WrapError(domain.ErrInvalidInput, "qdrant replace chunks", fmt.Errorf("chunk %s has no embedding", ch.ID))
		}
		points = append(points, point{
			ID:     ch.ID,
			Vector: ch.Embedding,
			Payload: chunkPayload{
				ManualID:    manualID,
				TenantID:    tenantID,
				Version:     ch.Version,
				PageStart:   ch.PageStart,
				PageEnd:     ch.PageEnd,
				SectionPath: ch.SectionPath,
				Content:     ch.Content,
				Features:    ch.Features,
			},
		})
	}
	if len(points) > 0 {
		if err := c.ensureCollection(ctx, len(points[0].Vector)); err != nil {
			return err
		}
	}

	deleteBody := map[string]any{"filter": scopeFilter(manualID, tenantID)}
	if err := c.do(ctx, http.MethodPost, c.collectionPath("/points/delete?wait=true"), deleteBody, nil, "delete"); err != nil {
		return err
	}
	if len(points) == 0 {
		return nil
	}
	return c.do(ctx, http.MethodPut, c.collectionPath("/points?wait=true"), map[string]any{"points": points}, nil, "upsert")
}

func scopeFilter(manualID, tenantID string) map[string]any {
	must := make([]map[string]any, 0, 2)
	if manualID != "" {
		must = append(must, map[string]any{"key": "manual_id", "match": map[string]any{"value": manualID}})
	}
	if tenantID != "" {
		must = append(must, map[string]any{"key": "tenant_id", "match": map[string]any{"value": tenantID}})
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func (c *Client) collectionPath(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", c.baseURL, c.collection, suffix)
}

func (c *Client) do(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WrapError(domain.ErrTemporary, "qdrant "+operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError("qdrant "+operation, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal create collection body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.collectionPath(""), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create collection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant ensure collection request: %w", err)
	}
	defer resp.Body.Close()

	// 409 when the collection already exists.
	if resp.StatusCode == http.StatusConflict {
		c.markCollectionEnsured(vectorSize)
		return nil
	}
	if resp.StatusCode >= 300 {
		return statusError("qdrant ensure collection", resp)
	}
	c.markCollectionEnsured(vectorSize)
	return nil
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

func statusError(operation string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	err := fmt.Errorf("%s status: %s", operation, resp.Status)
	if msg := strings.TrimSpace(string(body)); msg != "" {
		err = fmt.Errorf("%s status: %s: %s", operation, resp.Status, msg)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}
