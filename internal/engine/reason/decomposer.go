package reason

import (
	"context"
	"errors"
	"fmt"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	errx "github.com/intentcore/server/internal/core/error"
	"github.com/intentcore/server/internal/engine/model"
	logx "github.com/intentcore/server/pkg/logger"
)

// Decomposer sends compound or ambiguous requests to the reasoning model
// and validates the structured decomposition it returns.
type Decomposer struct {
	chat      einomodel.BaseChatModel
	modelName string
	timeout   time.Duration
}

func NewDecomposer(chat einomodel.BaseChatModel, cfg model.ReasoningModelConfig) *Decomposer {
	return &Decomposer{
		chat:      chat,
		modelName: cfg.Model,
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

// Decompose runs one reasoning call with a single repair retry on schema
// violations.
//
// Error contract:
//   - deadline exceeded wraps ErrReasoningTimeout
//   - a second schema violation wraps ErrDecompositionFailed
func (d *Decomposer) Decompose(ctx context.Context, in PromptInput) (*Decomposition, error) {
	systemPrompt, err := RenderDecomposeSystem(ctx, in)
	if err != nil {
		return nil, err
	}

	messages := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(in.Text),
	}

	resp, err := d.generate(ctx, messages)
	if err != nil {
		return nil, err
	}

	out, parseErr := ParseDecomposition(resp.Content)
	if parseErr == nil {
		return out, nil
	}
	if !errors.Is(parseErr, errx.ErrSchemaViolation) {
		return nil, parseErr
	}

	// One repair attempt: feed the violation back and ask for a corrected
	// response.
	logx.Warn().
		Str("model", d.modelName).
		Err(parseErr).
		Msg("Decomposition schema violation, attempting repair")

	repair := append(messages,
		resp,
		schema.UserMessage(fmt.Sprintf(
			"Your previous response violated the required schema: %v. "+
				"Respond again with ONLY the JSON object in the required shape.",
			parseErr,
		)),
	)

	resp, err = d.generate(ctx, repair)
	if err != nil {
		return nil, err
	}

	out, parseErr = ParseDecomposition(resp.Content)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: repair attempt rejected: %v", errx.ErrDecompositionFailed, parseErr)
	}
	return out, nil
}

func (d *Decomposer) generate(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	tctx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	resp, err := d.chat.Generate(tctx, messages)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || tctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: reasoning model exceeded %s", errx.ErrReasoningTimeout, d.timeout)
		}
		return nil, fmt.Errorf("reasoning model: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: empty model response", errx.ErrSchemaViolation)
	}

	d.logUsage(resp)
	return resp, nil
}

func (d *Decomposer) logUsage(out *schema.Message) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	logx.Debug().
		Str("model", d.modelName).
		Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
		Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
		Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
		Msg("LLM usage")
}
