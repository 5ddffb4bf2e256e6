package extract

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	logx "github.com/intentcore/server/pkg/logger"
	"google.golang.org/genai"

	"github.com/intentcore/server/internal/engine/model"
)

// Embedder produces a fixed-length semantic embedding for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// GeminiEmbedder embeds text with the Gemini embedding API.
type GeminiEmbedder struct {
	client *genai.Client
	model  string
	dim    int
}

// NewGeminiEmbedder creates an embedder backed by the given genai client.
func NewGeminiEmbedder(client *genai.Client, cfg model.EmbeddingConfig) *GeminiEmbedder {
	return &GeminiEmbedder{
		client: client,
		model:  cfg.Model,
		dim:    cfg.Dimension,
	}
}

func (g *GeminiEmbedder) Dimension() int {
	return g.dim
}

func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := g.client.Models.EmbedContent(ctx, g.model,
		genai.Text(text),
		&genai.EmbedContentConfig{
			OutputDimensionality: genai.Ptr(int32(g.dim)),
		},
	)
	if err != nil {
		logx.Error().Err(err).Str("model", g.model).Msg("Error embedding content")
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, fmt.Errorf("embed content: empty embedding response")
	}
	return resp.Embeddings[0].Values, nil
}

// HashingEmbedder is a deterministic, offline embedder: each lowercase
// token is hashed into a bucket of the vector, and the result is
// L2-normalized. Similar token sets produce similar vectors, which is
// enough for development and tests without a model dependency.
type HashingEmbedder struct {
	dim int
}

func NewHashingEmbedder(dim int) *HashingEmbedder {
	return &HashingEmbedder{dim: dim}
}

func (h *HashingEmbedder) Dimension() int {
	return h.dim
}

func (h *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	for _, tok := range tokenize(text) {
		hash := fnv.New32a()
		hash.Write([]byte(tok))
		sum := hash.Sum32()
		bucket := int(sum % uint32(h.dim))
		// Sign from an independent hash bit spreads tokens across both
		// directions of each axis.
		if sum&0x80000000 != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	return fields
}
