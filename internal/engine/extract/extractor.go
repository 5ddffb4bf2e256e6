package extract

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/intentcore/server/internal/engine/model"
	logx "github.com/intentcore/server/pkg/logger"
)

// Extractor turns raw text into entities, sentiment scores, and a semantic
// embedding. The three sub-steps are independent and run concurrently; all
// must complete before matching.
type Extractor struct {
	embedder Embedder
}

func NewExtractor(embedder Embedder) *Extractor {
	return &Extractor{embedder: embedder}
}

// Extract runs entity extraction, sentiment scoring, and embedding
// generation over the text. Entity and sentiment extraction are pure;
// only embedding can fail.
func (e *Extractor) Extract(ctx context.Context, text string) (*model.ExtractionResult, error) {
	result := &model.ExtractionResult{}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		result.Entities = Entities(text)
		return nil
	})

	g.Go(func() error {
		result.Scores = Sentiment(text)
		return nil
	})

	g.Go(func() error {
		embedding, err := e.embedder.Embed(ctx, text)
		if err != nil {
			return fmt.Errorf("generate embedding: %w", err)
		}
		result.Embedding = embedding
		return nil
	})

	if err := g.Wait(); err != nil {
		logx.Error().Err(err).Msg("Feature extraction failed")
		return nil, err
	}

	logx.Debug().
		Int("entities", len(result.Entities)).
		Float64("frustration", result.Scores.Frustration).
		Float64("urgency", result.Scores.Urgency).
		Msg("Feature extraction complete")

	return result, nil
}
