package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

const systemPrompt = `You are a field-service assistant answering questions about technical equipment manuals.
Use only the numbered manual excerpts supplied by the user.

Structure every reply like this:
1. Start with the direct answer in one or two sentences.
2. Give a short explanation of the likely cause, citing excerpt numbers such as [2].
3. Finish with "Fast path:" followed by the minimal numbered steps a technician should take.

Never invent part numbers, voltages, torque values, pin assignments or other specifications that are not in the excerpts.
If the excerpts do not contain the answer, say so plainly.`

// pageLabel renders "p. 12" or "pp. 12-14".
func pageLabel(start, end int) string {
	if end <= start {
		return fmt.Sprintf("p. %d", start)
	}
	return fmt.Sprintf("pp. %d-%d", start, end)
}

func buildContextBlock(chunks []domain.Chunk) string {
	parts := make([]string, 0, len(chunks))
	for idx, chunk := range chunks {
		parts = append(parts, fmt.Sprintf("[%d] [%s] %s", idx+1, pageLabel(chunk.PageStart, chunk.PageEnd), strings.TrimSpace(chunk.Content)))
	}
	return strings.Join(parts, "\n\n")
}

func buildUserPrompt(query string, chunks []domain.Chunk) string {
	return fmt.Sprintf(`Question:
%s

Manual excerpts:
%s
`, strings.TrimSpace(query), buildContextBlock(chunks))
}
