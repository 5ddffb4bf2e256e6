package reason

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/intentcore/server/internal/engine/model"
	logx "github.com/intentcore/server/pkg/logger"
)

// NewGeminiChatModel builds the Gemini-backed reasoning model from an
// existing genai client.
func NewGeminiChatModel(ctx context.Context, client *genai.Client, cfg model.ReasoningModelConfig) (*gemini.ChatModel, error) {
	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Model,
		Temperature: &cfg.Temperature,
		MaxTokens:   &cfg.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating reasoning model")
		return nil, fmt.Errorf("error creating reasoning model: %w", err)
	}
	return chatModel, nil
}
