package engine

import (
	"context"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	errx "github.com/intentcore/server/internal/core/error"
	"github.com/intentcore/server/internal/engine/audit"
	"github.com/intentcore/server/internal/engine/conversation"
	"github.com/intentcore/server/internal/engine/model"
	"github.com/intentcore/server/internal/engine/observers"
	logx "github.com/intentcore/server/pkg/logger"
)

// Engine is the public face of the resolution pipeline. Resolve always
// returns a structured result: internal failures become requires_human
// results, never errors or panics visible to the caller.
type Engine struct {
	runnable      compose.Runnable[model.Request, *model.ReasoningResult]
	auditSink     audit.Sink
	conversations conversation.Repository
	auditTimeout  time.Duration
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithAuditSink records every finalized result, fire-and-forget.
func WithAuditSink(sink audit.Sink) Option {
	return func(e *Engine) { e.auditSink = sink }
}

// WithConversationRepository threads per-conversation intent history into
// later turns.
func WithConversationRepository(repo conversation.Repository) Option {
	return func(e *Engine) { e.conversations = repo }
}

// New builds the engine over a compiled resolution graph.
func New(ctx context.Context, cfg *GraphConfig, opts ...Option) (*Engine, error) {
	runnable, err := BuildGraph(ctx, cfg)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		runnable:     runnable,
		auditSink:    audit.NopSink{},
		auditTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Resolve runs one request through the pipeline. The returned result is
// complete and final: on unrecoverable internal failure it carries
// requires_human with the failure class as the reason.
func (e *Engine) Resolve(ctx context.Context, req model.Request) *model.ReasoningResult {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}

	e.loadPreviousIntents(ctx, &req)

	started := time.Now()
	result, err := e.runnable.Invoke(ctx, req, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		logx.Error().
			Err(err).
			Str("request_id", req.RequestID).
			Msg("Resolution failed, returning handoff result")
		result = e.failureResult(req, err, started)
	}

	e.recordTurn(ctx, req, result)
	return result
}

// loadPreviousIntents fills the request's conversation history when a
// repository is configured and the caller left it empty.
func (e *Engine) loadPreviousIntents(ctx context.Context, req *model.Request) {
	if e.conversations == nil || req.ConversationID == "" || len(req.PreviousIntents) > 0 {
		return
	}
	intents, err := e.conversations.RecentIntents(ctx, req.ConversationID)
	if err != nil {
		logx.Warn().Err(err).Str("conversation_id", req.ConversationID).Msg("Failed to load intent history")
		return
	}
	for _, intent := range intents {
		req.PreviousIntents = append(req.PreviousIntents, intent.IntentCode())
	}
}

// recordTurn persists the turn's intents and publishes the audit record.
// Both are best-effort.
func (e *Engine) recordTurn(ctx context.Context, req model.Request, result *model.ReasoningResult) {
	if e.conversations != nil && req.ConversationID != "" && len(result.ResolvedIntents) > 0 {
		if err := e.conversations.AppendIntents(ctx, req.ConversationID, result.ResolvedIntents); err != nil {
			logx.Warn().Err(err).Str("conversation_id", req.ConversationID).Msg("Failed to append intent history")
		}
	}

	// fire-and-forget: audit must never block or fail the caller
	go func(res *model.ReasoningResult) {
		auditCtx, cancel := context.WithTimeout(context.Background(), e.auditTimeout)
		defer cancel()
		if err := e.auditSink.Record(auditCtx, res); err != nil {
			logx.Warn().Err(err).Str("request_id", res.RequestID).Msg("Audit record failed")
		}
	}(result)
}

// failureResult is the structured terminal result for an unrecoverable
// internal failure.
func (e *Engine) failureResult(req model.Request, err error, started time.Time) *model.ReasoningResult {
	result := &model.ReasoningResult{
		RequestID:        req.RequestID,
		TenantID:         req.TenantID,
		RequiresHuman:    true,
		HandoffReason:    errx.Class(err),
		PathTaken:        model.PathDeepDegraded,
		ProcessingTimeMS: time.Since(started).Milliseconds(),
	}
	result.Trace("internal failure: %s", errx.Class(err))
	result.Finalize()
	return result
}
