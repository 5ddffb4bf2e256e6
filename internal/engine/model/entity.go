package model

// EntityType classifies an extracted span.
type EntityType string

const (
	EntityOrderID        EntityType = "order_id"
	EntityTrackingNumber EntityType = "tracking_number"
	EntityProductSKU     EntityType = "product_sku"
	EntityProductName    EntityType = "product_name"
	EntitySize           EntityType = "size"
	EntityColor          EntityType = "color"
	EntityQuantity       EntityType = "quantity"
	EntityMoneyAmount    EntityType = "money_amount"
	EntityDate           EntityType = "date"
	EntityDeadline       EntityType = "deadline"
	EntityReason         EntityType = "reason"
	EntityEmail          EntityType = "email"
	EntityPhone          EntityType = "phone"
	EntityAddress        EntityType = "address"
	EntityPersonName     EntityType = "person_name"
)

// Entity is a typed span extracted from the raw text.
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	RawSpan    string     `json:"raw_span"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
	Confidence float64    `json:"confidence"`
}

// SentimentScores holds the rule-based scoring output for a message.
// Sentiment is in [-1,1]; urgency and frustration are in [0,1].
type SentimentScores struct {
	Sentiment   float64  `json:"sentiment"`
	Urgency     float64  `json:"urgency"`
	Frustration float64  `json:"frustration"`
	Signals     []string `json:"signals,omitempty"`
	// Priority flags messages that should jump the queue: very frustrated
	// customers, or urgent messages with negative sentiment.
	Priority bool `json:"priority"`
}

// ExtractionResult is the combined output of the feature extractor: typed
// entities, sentiment scoring, and the semantic embedding. It is owned by
// the pipeline run and only persisted as part of the audit record.
type ExtractionResult struct {
	Entities  []Entity        `json:"entities"`
	Scores    SentimentScores `json:"scores"`
	Embedding []float32       `json:"embedding,omitempty"`
}

// EntityTypes returns the set of entity types present in the result.
func (r ExtractionResult) EntityTypes() map[EntityType]bool {
	types := make(map[EntityType]bool, len(r.Entities))
	for _, e := range r.Entities {
		types[e.Type] = true
	}
	return types
}

// EntitiesOfType returns all entities of the given type, in extraction order.
func (r ExtractionResult) EntitiesOfType(t EntityType) []Entity {
	var out []Entity
	for _, e := range r.Entities {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
