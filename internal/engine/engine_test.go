package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentcore/server/internal/engine/catalog"
	"github.com/intentcore/server/internal/engine/enrich"
	"github.com/intentcore/server/internal/engine/extract"
	"github.com/intentcore/server/internal/engine/match"
	"github.com/intentcore/server/internal/engine/model"
	"github.com/intentcore/server/internal/engine/plan"
	"github.com/intentcore/server/internal/engine/reason"
)

// scriptedChat replays canned responses and records every call.
type scriptedChat struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   [][]*schema.Message
}

type scriptedReply struct {
	content string
	err     error
}

func (m *scriptedChat) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := len(m.calls)
	m.calls = append(m.calls, input)
	if idx >= len(m.replies) {
		return nil, errors.New("no scripted reply left")
	}
	r := m.replies[idx]
	if r.err != nil {
		return nil, r.err
	}
	return schema.AssistantMessage(r.content, nil), nil
}

func (m *scriptedChat) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func (m *scriptedChat) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// captureSink hands each recorded result to the test through a channel.
type captureSink struct {
	ch chan *model.ReasoningResult
}

func (s *captureSink) Record(_ context.Context, result *model.ReasoningResult) error {
	select {
	case s.ch <- result:
	default:
	}
	return nil
}

func (s *captureSink) Close() error { return nil }

// memRepo is an in-memory conversation history.
type memRepo struct {
	mu      sync.Mutex
	intents map[string][]model.ResolvedIntent
}

func newMemRepo() *memRepo {
	return &memRepo{intents: make(map[string][]model.ResolvedIntent)}
}

func (r *memRepo) AppendIntents(_ context.Context, conversationID string, intents []model.ResolvedIntent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents[conversationID] = append(r.intents[conversationID], intents...)
	return nil
}

func (r *memRepo) RecentIntents(_ context.Context, conversationID string) ([]model.ResolvedIntent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intents[conversationID], nil
}

func (r *memRepo) Clear(_ context.Context, conversationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.intents, conversationID)
	return nil
}

// seededStore loads two well-separated intents so routing is deterministic:
// the exact seed text hits the fast path, anything unrelated goes deep.
func seededStore(t *testing.T, embedder extract.Embedder) *catalog.Store {
	t.Helper()
	seeds := []catalog.SeedExample{
		{IntentCode: model.IntentWISMO, Text: "where is my package"},
		{IntentCode: model.IntentStock, Text: "do you have blue hats available"},
	}

	examples := make([]catalog.Example, 0, len(seeds))
	for _, s := range seeds {
		embedding, err := embedder.Embed(context.Background(), s.Text)
		require.NoError(t, err)
		examples = append(examples, catalog.Example{
			IntentCode: s.IntentCode,
			Category:   model.CategoryOf(s.IntentCode),
			Text:       s.Text,
			Embedding:  embedding,
		})
	}

	store := catalog.NewStore()
	store.Replace(examples)
	return store
}

func newTestEngine(t *testing.T, chat *scriptedChat, store *catalog.Store, opts ...Option) *Engine {
	t.Helper()
	embedder := extract.NewHashingEmbedder(64)
	if store == nil {
		store = seededStore(t, embedder)
	}

	cfg := &GraphConfig{
		Extractor: extract.NewExtractor(embedder),
		Matcher: match.NewMatcher(store, model.MatcherConfig{
			FastPathThreshold:      0.85,
			AmbiguityGap:           0.10,
			LowConfidenceThreshold: 0.60,
			TopK:                   5,
		}),
		Compound:   match.NewCompoundDetector(model.CompoundConfig{Threshold: 0.60}),
		Decomposer: reason.NewDecomposer(chat, model.ReasoningModelConfig{Model: "scripted", TimeoutSeconds: 5}),
		Policy:     reason.NewPolicyEngineFromPolicies(),
		Planner:    plan.NewBuilder(plan.NewStaticRegistry()),
		Enricher:   enrich.NopProvider{},
	}

	eng, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return eng
}

// compoundDecompositionJSON is a valid reasoning response splitting a deep
// request into a return and an exchange.
func compoundDecompositionJSON() string {
	return fmt.Sprintf(`{
  "intents": [
    {"intent_code": %q, "confidence": 0.91, "evidence": ["money back"], "constraints": []},
    {"intent_code": %q, "confidence": 0.84, "evidence": ["swap the hat"], "constraints": [
      {"type": "deadline", "description": "customer wants this handled soon", "value": "within 5 days", "hard": true}
    ]}
  ],
  "is_compound": true,
  "requires_clarification": false,
  "clarification_question": "",
  "reasoning": "two distinct goals in one message"
}`, model.IntentReturnInitiate, model.IntentExchangeRequest)
}

// deepText shares almost no vocabulary with the seeded examples, so it lands
// in the low-confidence band and routes to decomposition.
const deepText = "I'd like my money back and also swap the hat for a different one"

func TestResolveFastPath(t *testing.T) {
	chat := &scriptedChat{}
	eng := newTestEngine(t, chat, nil)

	res := eng.Resolve(context.Background(), model.Request{
		TenantID: "default",
		Channel:  model.ChannelChat,
		RawText:  "where is my package",
	})

	require.NotNil(t, res)
	assert.Equal(t, model.PathFast, res.PathTaken)
	require.Len(t, res.ResolvedIntents, 1)
	assert.Equal(t, model.IntentWISMO, res.ResolvedIntents[0].IntentCode())
	assert.InDelta(t, 1.0, res.Confidence, 1e-6)

	require.Len(t, res.Plan.Steps, 2)
	assert.Equal(t, plan.VerbLookupOrder, res.Plan.Steps[0].Verb)
	assert.Equal(t, plan.VerbProvideStatus, res.Plan.Steps[1].Verb)

	assert.False(t, res.RequiresHuman)
	assert.False(t, res.RequiresClarification)
	assert.NotEmpty(t, res.RequestID, "missing ids are filled in")
	require.NotEmpty(t, res.ReasoningTrace)
	assert.Contains(t, res.ReasoningTrace[0], "received request")
	assert.Zero(t, chat.callCount(), "fast path never calls the reasoning model")
}

func TestResolveDeepCompound(t *testing.T) {
	chat := &scriptedChat{replies: []scriptedReply{{content: compoundDecompositionJSON()}}}
	eng := newTestEngine(t, chat, nil)

	res := eng.Resolve(context.Background(), model.Request{
		TenantID: "default",
		Channel:  model.ChannelChat,
		RawText:  deepText,
	})

	require.NotNil(t, res)
	assert.Equal(t, 1, chat.callCount())
	assert.Equal(t, model.PathDeep, res.PathTaken)
	assert.True(t, res.IsCompound)

	// Return vs exchange conflicts; merchant rank keeps the exchange.
	require.Len(t, res.ResolvedIntents, 1)
	assert.Equal(t, model.IntentExchangeRequest, res.ResolvedIntents[0].IntentCode())

	require.Len(t, res.Constraints, 1)
	assert.Equal(t, model.ConstraintSatisfied, res.Constraints[0].Status)

	require.NotNil(t, res.Policy)
	assert.Equal(t, "agent_review", res.Policy.RecommendedAction)

	verbs := make([]string, 0, len(res.Plan.Steps))
	for _, s := range res.Plan.Steps {
		verbs = append(verbs, s.Verb)
	}
	assert.Contains(t, verbs, plan.VerbShipReplacement)
	assert.False(t, res.RequiresClarification)
}

func TestResolveReasoningTimeoutDegrades(t *testing.T) {
	chat := &scriptedChat{replies: []scriptedReply{{err: context.DeadlineExceeded}}}
	eng := newTestEngine(t, chat, nil)

	res := eng.Resolve(context.Background(), model.Request{
		TenantID: "default",
		Channel:  model.ChannelChat,
		RawText:  deepText,
	})

	require.NotNil(t, res)
	assert.Equal(t, model.PathDeepDegraded, res.PathTaken)
	require.Len(t, res.ResolvedIntents, 1, "degrades to the top match candidate")
	assert.True(t, res.RequiresHuman, "a degraded plan still needs human review")
	assert.Equal(t, "ReasoningTimeout", res.HandoffReason)
	assert.NotEmpty(t, res.Plan.Steps)
}

func TestResolveCrossCategoryNeverFastPaths(t *testing.T) {
	embedder := extract.NewHashingEmbedder(64)
	seeds := []catalog.SeedExample{
		{IntentCode: model.IntentWISMO, Text: "where is my order"},
		{IntentCode: model.IntentReturnInitiate, Text: "where is my order for return"},
	}
	examples := make([]catalog.Example, 0, len(seeds))
	for _, s := range seeds {
		embedding, err := embedder.Embed(context.Background(), s.Text)
		require.NoError(t, err)
		examples = append(examples, catalog.Example{
			IntentCode: s.IntentCode,
			Category:   model.CategoryOf(s.IntentCode),
			Text:       s.Text,
			Embedding:  embedding,
		})
	}
	store := catalog.NewStore()
	store.Replace(examples)

	reply := fmt.Sprintf(`{"intents": [
  {"intent_code": %q, "confidence": 0.93, "evidence": ["where is my order"], "constraints": []}
], "is_compound": false, "requires_clarification": false, "clarification_question": "", "reasoning": ""}`,
		model.IntentWISMO)
	chat := &scriptedChat{replies: []scriptedReply{{content: reply}}}
	eng := newTestEngine(t, chat, store)

	// The top candidate is a perfect match with a wide gap to the runner-up,
	// but the runner-up sits in another category above the mix floor, so the
	// run must take the deep path anyway.
	res := eng.Resolve(context.Background(), model.Request{
		TenantID: "default",
		Channel:  model.ChannelChat,
		RawText:  "where is my order",
	})

	require.NotNil(t, res)
	assert.Equal(t, model.PathDeep, res.PathTaken)
	assert.Equal(t, 1, chat.callCount(), "cross-category top matches go through the reasoning model")
	require.Len(t, res.ResolvedIntents, 1)
	assert.Equal(t, model.IntentWISMO, res.ResolvedIntents[0].IntentCode())
}

func TestResolveEmptyCatalogHandsOff(t *testing.T) {
	store := catalog.NewStore()
	store.Replace(nil)
	eng := newTestEngine(t, &scriptedChat{}, store)

	res := eng.Resolve(context.Background(), model.Request{
		TenantID: "default",
		Channel:  model.ChannelChat,
		RawText:  "where is my package",
	})

	require.NotNil(t, res, "a result comes back even when the pipeline fails")
	assert.True(t, res.RequiresHuman)
	assert.Equal(t, "CatalogEmpty", res.HandoffReason)
	assert.Equal(t, model.PathDeepDegraded, res.PathTaken)
}

func TestResolveDeepClarification(t *testing.T) {
	reply := `{"intents": [], "is_compound": false, "requires_clarification": true,
  "clarification_question": "Which order do you mean?", "reasoning": ""}`
	chat := &scriptedChat{replies: []scriptedReply{{content: reply}}}
	eng := newTestEngine(t, chat, nil)

	res := eng.Resolve(context.Background(), model.Request{
		TenantID: "default",
		Channel:  model.ChannelChat,
		RawText:  deepText,
	})

	require.NotNil(t, res)
	assert.True(t, res.RequiresClarification)
	assert.Equal(t, "Which order do you mean?", res.ClarificationQuestion)
	assert.Equal(t, model.PathClarification, res.PathTaken)
	assert.Empty(t, res.Plan.Steps)
}

func TestResolveRecordsAudit(t *testing.T) {
	sink := &captureSink{ch: make(chan *model.ReasoningResult, 1)}
	eng := newTestEngine(t, &scriptedChat{}, nil, WithAuditSink(sink))

	res := eng.Resolve(context.Background(), model.Request{
		TenantID: "default",
		Channel:  model.ChannelChat,
		RawText:  "where is my package",
	})

	select {
	case recorded := <-sink.ch:
		assert.Equal(t, res.RequestID, recorded.RequestID)
		assert.Equal(t, model.PathFast, recorded.PathTaken)
	case <-time.After(2 * time.Second):
		t.Fatal("audit sink never received the result")
	}
}

func TestResolveThreadsConversationHistory(t *testing.T) {
	repo := newMemRepo()
	chat := &scriptedChat{replies: []scriptedReply{{content: compoundDecompositionJSON()}}}
	eng := newTestEngine(t, chat, nil, WithConversationRepository(repo))

	first := eng.Resolve(context.Background(), model.Request{
		TenantID:       "default",
		Channel:        model.ChannelChat,
		ConversationID: "conv-1",
		RawText:        "where is my package",
	})
	require.Len(t, first.ResolvedIntents, 1)

	stored, err := repo.RecentIntents(context.Background(), "conv-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.IntentWISMO, stored[0].IntentCode())

	second := eng.Resolve(context.Background(), model.Request{
		TenantID:       "default",
		Channel:        model.ChannelChat,
		ConversationID: "conv-1",
		RawText:        deepText,
	})
	require.NotNil(t, second)

	require.Equal(t, 1, chat.callCount())
	system := chat.calls[0][0]
	assert.Equal(t, schema.System, system.Role)
	assert.Contains(t, system.Content, model.IntentWISMO,
		"earlier turns feed the decomposition prompt")
}
