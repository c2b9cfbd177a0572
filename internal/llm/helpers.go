package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Complete sends system + user prompts and returns the text response.
func Complete(ctx context.Context, p Provider, system, user string) (string, error) {
	resp, err := p.Complete(ctx, CompletionRequest{
		SystemPrompt: system,
		Messages:     []Message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// CompleteStructured sends a prompt expecting JSON and unmarshals the
// response into result. JSON formatting instructions are appended to the
// system prompt and JSON mode is requested from the provider.
func CompleteStructured(ctx context.Context, p Provider, system, user string, result any) error {
	system += "\n\nIMPORTANT: Respond with ONLY the JSON object. " +
		"No markdown, no code blocks, no explanations. " +
		"Start with { and end with }."

	resp, err := p.Complete(ctx, CompletionRequest{
		SystemPrompt: system,
		Messages:     []Message{{Role: "user", Content: user}},
		JSONMode:     true,
	})
	if err != nil {
		return err
	}

	content := extractJSON(resp.Content)
	if err := json.Unmarshal([]byte(content), result); err != nil {
		return fmt.Errorf("llm: unmarshal structured response: %w", err)
	}
	return nil
}

// extractJSON pulls a JSON object from LLM output that may contain markdown
// fences or surrounding prose.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s[3:], "\n"); idx >= 0 {
			s = s[3+idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
