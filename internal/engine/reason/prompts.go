package reason

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/intentcore/server/internal/engine/model"
)

//go:embed template/decompose_prompt.txt
var decomposeSystemPrompt string

// PromptInput bundles everything the decomposition prompt interpolates.
type PromptInput struct {
	Text            string
	Entities        []model.Entity
	MatchHints      []string
	Segments        []string
	CustomerTier    string
	PreviousIntents []string
	Enrichment      *model.EnrichmentContext
}

// RenderDecomposeSystem renders the decomposition system prompt via the
// Eino prompt component. This triggers Prompt callbacks and returns the
// final system prompt string.
func RenderDecomposeSystem(ctx context.Context, in PromptInput) (string, error) {
	// Safely render known tokens only to avoid interfering with JSON braces
	// in the template
	content := strings.NewReplacer(
		"{entities}", renderEntities(in.Entities),
		"{match_hints}", renderList(in.MatchHints),
		"{segments}", renderList(in.Segments),
		"{customer_tier}", orNone(in.CustomerTier),
		"{previous_intents}", renderList(in.PreviousIntents),
		"{enrichment}", renderEnrichment(in.Enrichment),
	).Replace(decomposeSystemPrompt)

	// Wrap via Eino prompt component using a messages placeholder to emit
	// callbacks
	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("decompose prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("decompose prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}

func renderEntities(entities []model.Entity) string {
	if len(entities) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(entities))
	for _, e := range entities {
		parts = append(parts, fmt.Sprintf("%s=%q (%.2f)", e.Type, e.Value, e.Confidence))
	}
	return strings.Join(parts, ", ")
}

func renderList(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func renderEnrichment(ec *model.EnrichmentContext) string {
	if ec == nil {
		return "unavailable"
	}
	b, err := json.Marshal(ec)
	if err != nil {
		return "unavailable"
	}
	return string(b)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "none"
	}
	return s
}
