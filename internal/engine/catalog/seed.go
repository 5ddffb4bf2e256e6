package catalog

import (
	"context"
	"fmt"

	"github.com/intentcore/server/internal/engine/extract"
	"github.com/intentcore/server/internal/engine/model"
	logx "github.com/intentcore/server/pkg/logger"
)

// SeedExample is a labeled utterance before embedding.
type SeedExample struct {
	IntentCode string
	Text       string
}

// SeedExamples is a starter corpus covering the intents the pipeline keys
// on. Production tenants replace this through catalog ingestion.
func SeedExamples() []SeedExample {
	return []SeedExample{
		{model.IntentWISMO, "where is my order"},
		{model.IntentWISMO, "I haven't received my package yet, can you check on it"},
		{model.IntentWISMO, "what's the status of order ORD-12345"},
		{model.IntentDeliveryEstimate, "when will my order arrive"},
		{model.IntentDeliveryEstimate, "how long does shipping usually take"},
		{model.IntentTrackingIssue, "my tracking number doesn't work"},
		{model.IntentTrackingIssue, "the tracking page says label created but nothing has moved for a week"},

		{model.IntentCancelOrder, "I want to cancel my order"},
		{model.IntentCancelOrder, "please cancel order ORD-98765, I changed my mind"},
		{model.IntentChangeAddress, "I need to change the shipping address on my order"},
		{model.IntentChangeItems, "can I change the size on my order before it ships"},
		{model.IntentExpedite, "can you expedite my shipping, I need it by friday"},
		{model.IntentDelayShipment, "can you hold my shipment until next week, I'm out of town"},

		{model.IntentReturnInitiate, "I want to return this item for a refund"},
		{model.IntentReturnInitiate, "how do I send this back, it doesn't fit"},
		{model.IntentExchangeRequest, "I'd like to exchange this for a different size"},
		{model.IntentExchangeRequest, "can I swap this for the blue one instead"},
		{model.IntentRefundStatus, "where is my refund, it's been two weeks"},
		{model.IntentRefundStatus, "when will the money be back on my card"},

		{model.IntentDamagedItem, "the item arrived broken"},
		{model.IntentDamagedItem, "my package was damaged in transit and the product is cracked"},
		{model.IntentWrongItem, "you sent me the wrong item"},
		{model.IntentWrongItem, "I ordered a medium but received a large"},
		{model.IntentMissingItem, "my order is missing an item"},

		{model.IntentStock, "is this back in stock"},
		{model.IntentStock, "do you have this in size 10"},

		{model.IntentHumanHandoff, "let me talk to a real person"},
		{model.IntentHumanHandoff, "I want to speak to a human agent right now"},
	}
}

// Seed embeds the starter corpus and loads it into the catalog when it is
// empty. Existing catalogs are left untouched.
func Seed(ctx context.Context, cat *SQLiteCatalog, embedder extract.Embedder) error {
	if snap, err := cat.Store().Snapshot(); err == nil && snap.Len() > 0 {
		logx.Debug().Int("examples", snap.Len()).Msg("Catalog already populated, skipping seed")
		return nil
	}

	byIntent := make(map[string][]Example)
	for _, seed := range SeedExamples() {
		embedding, err := embedder.Embed(ctx, seed.Text)
		if err != nil {
			return fmt.Errorf("embed seed example %q: %w", seed.Text, err)
		}
		byIntent[seed.IntentCode] = append(byIntent[seed.IntentCode], Example{
			IntentCode: seed.IntentCode,
			Category:   model.CategoryOf(seed.IntentCode),
			Text:       seed.Text,
			Embedding:  embedding,
		})
	}

	for intentCode, examples := range byIntent {
		if err := cat.UpsertExamples(ctx, intentCode, examples); err != nil {
			return fmt.Errorf("seed intent %s: %w", intentCode, err)
		}
	}

	logx.Info().Int("intents", len(byIntent)).Msg("Catalog seeded")
	return nil
}
