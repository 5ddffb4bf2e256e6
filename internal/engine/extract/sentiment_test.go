package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentimentNeutral(t *testing.T) {
	scores := Sentiment("where is my order")

	assert.Zero(t, scores.Sentiment)
	assert.Zero(t, scores.Urgency)
	assert.Zero(t, scores.Frustration)
	assert.False(t, scores.Priority)
}

func TestSentimentPositive(t *testing.T) {
	scores := Sentiment("Thanks, I appreciate the quick response")

	assert.Greater(t, scores.Sentiment, 0.0)
	assert.Zero(t, scores.Frustration, "positive adjustments never push frustration below zero")
	assert.False(t, scores.Priority)
}

func TestSentimentUrgency(t *testing.T) {
	scores := Sentiment("I need this ASAP")

	assert.InDelta(t, 0.9, scores.Urgency, 0.001)
	assert.False(t, scores.Priority, "urgency alone without negative sentiment is not priority")
}

func TestSentimentSingleFrustrationSignal(t *testing.T) {
	// One pattern match returns its score directly, then strong negative
	// sentiment feeds back (+0.2).
	scores := Sentiment("I am so disappointed")

	assert.InDelta(t, 0.9, scores.Frustration, 0.001)
	assert.True(t, scores.Priority)
}

func TestSentimentCombinedFrustration(t *testing.T) {
	scores := Sentiment("This is ridiculous! I am furious, this is the 3rd time I've asked")

	assert.GreaterOrEqual(t, scores.Frustration, 0.8)
	assert.True(t, scores.Priority)
	assert.NotEmpty(t, scores.Signals)
}

func TestSentimentCapsBoost(t *testing.T) {
	scores := Sentiment("WHERE IS MY PACKAGE I ORDERED WEEKS AGO")

	assert.InDelta(t, 0.2, scores.Frustration, 0.001)
	assert.Contains(t, scores.Signals, "excessive_caps")
}

func TestSentimentCapsIgnoredOnShortText(t *testing.T) {
	scores := Sentiment("WHERE IS IT")

	assert.Zero(t, scores.Frustration)
	assert.NotContains(t, scores.Signals, "excessive_caps")
}

func TestSentimentEscalationBoost(t *testing.T) {
	scores := Sentiment("Let me speak to a manager")

	assert.InDelta(t, 0.24, scores.Frustration, 0.001)
}

func TestSentimentPriorityFromUrgentNegative(t *testing.T) {
	scores := Sentiment("this is urgent, my package arrived damaged")

	assert.GreaterOrEqual(t, scores.Urgency, 0.8)
	assert.Less(t, scores.Sentiment, 0.0)
	assert.True(t, scores.Priority)
}

func TestCombineFrustration(t *testing.T) {
	assert.Zero(t, combineFrustration(nil))
	assert.Equal(t, 0.8, combineFrustration([]float64{0.8}))
	// max*0.7 + avg*0.3
	assert.InDelta(t, 0.9*0.7+0.7*0.3, combineFrustration([]float64{0.9, 0.5}), 0.0001)
}

func TestRuleSentimentBounds(t *testing.T) {
	assert.Equal(t, -1.0, ruleSentiment("this is terrible and broken"))
	assert.Equal(t, 1.0, ruleSentiment("great, love it"))
	assert.Zero(t, ruleSentiment("good but late"))
}
