package reason

import (
	"context"
	"errors"
	"testing"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errx "github.com/intentcore/server/internal/core/error"
	"github.com/intentcore/server/internal/engine/model"
)

// scriptedChatModel replays canned responses and records every call.
type scriptedChatModel struct {
	replies []scriptedReply
	calls   [][]*schema.Message
}

type scriptedReply struct {
	content string
	err     error
}

func (m *scriptedChatModel) Generate(_ context.Context, input []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.calls = append(m.calls, input)
	if len(m.calls) > len(m.replies) {
		return nil, errors.New("scripted model exhausted")
	}
	reply := m.replies[len(m.calls)-1]
	if reply.err != nil {
		return nil, reply.err
	}
	return schema.AssistantMessage(reply.content, nil), nil
}

func (m *scriptedChatModel) Stream(context.Context, []*schema.Message, ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("streaming not supported")
}

func newTestDecomposer(chat einomodel.BaseChatModel) *Decomposer {
	return NewDecomposer(chat, model.ReasoningModelConfig{Model: "scripted", TimeoutSeconds: 5})
}

func TestDecomposeSuccess(t *testing.T) {
	chat := &scriptedChatModel{replies: []scriptedReply{{content: validDecomposition}}}
	d := newTestDecomposer(chat)

	out, err := d.Decompose(context.Background(), PromptInput{
		Text:       "I want to return my order and exchange it",
		MatchHints: []string{model.IntentReturnInitiate, model.IntentExchangeRequest},
	})
	require.NoError(t, err)

	assert.True(t, out.IsCompound)
	assert.Len(t, out.Intents, 2)
	assert.False(t, out.Degraded)

	require.Len(t, chat.calls, 1)
	require.Len(t, chat.calls[0], 2)
	assert.Equal(t, schema.System, chat.calls[0][0].Role)
	assert.Contains(t, chat.calls[0][0].Content, model.IntentReturnInitiate,
		"match hints are interpolated into the system prompt")
	assert.Equal(t, "I want to return my order and exchange it", chat.calls[0][1].Content)
}

func TestDecomposeRepairsSchemaViolation(t *testing.T) {
	chat := &scriptedChatModel{replies: []scriptedReply{
		{content: "sorry, I cannot produce JSON"},
		{content: validDecomposition},
	}}
	d := newTestDecomposer(chat)

	out, err := d.Decompose(context.Background(), PromptInput{Text: "return and exchange"})
	require.NoError(t, err)
	assert.Len(t, out.Intents, 2)

	require.Len(t, chat.calls, 2)
	repairCall := chat.calls[1]
	require.Len(t, repairCall, 4, "repair carries system, user, bad response, repair prompt")
	assert.Equal(t, schema.Assistant, repairCall[2].Role)
	assert.Equal(t, schema.User, repairCall[3].Role)
	assert.Contains(t, repairCall[3].Content, "violated the required schema")
}

func TestDecomposeFailsAfterSecondViolation(t *testing.T) {
	chat := &scriptedChatModel{replies: []scriptedReply{
		{content: "still not json"},
		{content: "nope"},
	}}
	d := newTestDecomposer(chat)

	_, err := d.Decompose(context.Background(), PromptInput{Text: "return and exchange"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errx.ErrDecompositionFailed)
	assert.Len(t, chat.calls, 2, "exactly one repair attempt")
}

func TestDecomposeTimeout(t *testing.T) {
	chat := &scriptedChatModel{replies: []scriptedReply{
		{err: context.DeadlineExceeded},
	}}
	d := newTestDecomposer(chat)

	_, err := d.Decompose(context.Background(), PromptInput{Text: "anything"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errx.ErrReasoningTimeout)
}

func TestDecomposeModelErrorPassesThrough(t *testing.T) {
	boom := errors.New("upstream 500")
	chat := &scriptedChatModel{replies: []scriptedReply{{err: boom}}}
	d := newTestDecomposer(chat)

	_, err := d.Decompose(context.Background(), PromptInput{Text: "anything"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, errx.ErrReasoningTimeout)
}

func TestRenderDecomposeSystemInterpolation(t *testing.T) {
	out, err := RenderDecomposeSystem(context.Background(), PromptInput{
		Text:            "where is my order",
		Entities:        []model.Entity{{Type: model.EntityOrderID, Value: "ORD-1", Confidence: 0.95}},
		MatchHints:      []string{model.IntentWISMO},
		Segments:        []string{"where is my order", "I also want a refund"},
		CustomerTier:    model.TierVIP,
		PreviousIntents: []string{model.IntentStock},
	})
	require.NoError(t, err)

	assert.Contains(t, out, `order_id="ORD-1"`)
	assert.Contains(t, out, model.IntentWISMO)
	assert.Contains(t, out, "I also want a refund")
	assert.Contains(t, out, model.TierVIP)
	assert.Contains(t, out, model.IntentStock)
	assert.Contains(t, out, "unavailable", "nil enrichment renders as unavailable")
	assert.NotContains(t, out, "{entities}", "all template tokens are substituted")
	assert.NotContains(t, out, "{segments}")
}
