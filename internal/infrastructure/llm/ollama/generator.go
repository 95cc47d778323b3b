package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChunk struct {
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateAnswer(ctx context.Context, query string, chunks []domain.Chunk) (string, error) {
	var response chatChunk
	if err := g.client.postJSON(ctx, "/api/chat", g.chatRequest(query, chunks, false), &response, "chat"); err != nil {
		return "", err
	}
	if response.Error != "" {
		return "", fmt.Errorf("ollama chat: %s", response.Error)
	}
	return strings.TrimSpace(response.Message.Content), nil
}

// StreamAnswer reads the NDJSON chat stream until done, ctx cancellation or an onDelta error.
func (g *Generator) StreamAnswer(ctx context.Context, query string, chunks []domain.Chunk, onDelta func(string) error) error {
	resp, err := g.client.openStream(ctx, "/api/chat", g.chatRequest(query, chunks, true), "chat_stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk chatChunk
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			return fmt.Errorf("decode chat stream line: %w", err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("ollama chat stream: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			if err := onDelta(chunk.Message.Content); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("read chat stream: %w", err)
	}
	return nil
}

func (g *Generator) chatRequest(query string, chunks []domain.Chunk, stream bool) map[string]any {
	return map[string]any{
		"model": g.client.genModel,
		"messages": []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(query, chunks)},
		},
		"stream":  stream,
		"options": g.client.chatOptions(),
	}
}
