package translator

import (
	"fmt"
	"strings"

	"github.com/valpere/stringtran/internal/batcher"
	"github.com/valpere/stringtran/internal/placeholder"
	"github.com/valpere/stringtran/internal/postprocess"
)

func separatorOf(req TranslateRequest) string {
	if req.Separator == "" {
		return batcher.DefaultSeparator
	}
	return req.Separator
}

// JoinSegments serializes a batch for services that take one string.
func JoinSegments(texts []string, sep string) string {
	return strings.Join(texts, sep)
}

// SplitSegments is the inverse of JoinSegments. The caller compares the
// resulting count against the batch size.
func SplitSegments(text, sep string) []string {
	return strings.Split(text, sep)
}

// splitLLMResponse cleans a joined LLM answer and splits it into items.
func splitLLMResponse(raw, sep string) []string {
	cleaned := postprocess.Response(raw, sep)
	if !strings.Contains(cleaned, sep) {
		return []string{postprocess.Clean(cleaned)}
	}
	parts := SplitSegments(cleaned, sep)
	for i, p := range parts {
		parts[i] = postprocess.Segment(p)
	}
	return parts
}

// llmSystemPrompt is shared by the chat-style services.
func llmSystemPrompt(sourceLang, targetLang, sep string, count int) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("You are a professional translator of mobile app interface strings. Translate the following text from %s to %s.\n", sourceLang, targetLang))
	sb.WriteString("Only respond with the translation, nothing else. No explanations, no quotes, just the translation.\n")
	sb.WriteString(placeholder.InstructionHint())

	if count > 1 {
		sb.WriteString(fmt.Sprintf("\nThe input holds %d segments separated by the line %s. Keep every separator line and return exactly %d segments in the same order.",
			count, strings.TrimSpace(sep), count))
	}

	return sb.String()
}
