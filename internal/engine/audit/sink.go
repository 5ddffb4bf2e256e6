package audit

import (
	"context"

	"github.com/intentcore/server/internal/engine/model"
)

// Sink records finalized reasoning results for offline analysis. Recording
// is fire-and-forget from the pipeline's point of view: a sink failure must
// never fail the run.
type Sink interface {
	Record(ctx context.Context, result *model.ReasoningResult) error
	Close() error
}

// NopSink discards every result.
type NopSink struct{}

func (NopSink) Record(context.Context, *model.ReasoningResult) error { return nil }
func (NopSink) Close() error                                         { return nil }
