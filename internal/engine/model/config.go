package model

// ================ Config ================

// MatcherConfig holds the similarity routing policy. The thresholds are
// tunable policy, not fixed law.
type MatcherConfig struct {
	FastPathThreshold      float64 `envconfig:"MATCH_FAST_PATH_THRESHOLD" default:"0.85"`
	AmbiguityGap           float64 `envconfig:"MATCH_AMBIGUITY_GAP" default:"0.10"`
	LowConfidenceThreshold float64 `envconfig:"MATCH_LOW_CONFIDENCE_THRESHOLD" default:"0.60"`
	TopK                   int     `envconfig:"MATCH_TOP_K" default:"5"`
}

// CompoundConfig holds the compound detector threshold.
type CompoundConfig struct {
	Threshold float64 `envconfig:"COMPOUND_THRESHOLD" default:"0.60"`
}

// ReasoningModelConfig configures the decomposition chat model.
type ReasoningModelConfig struct {
	Model          string  `envconfig:"REASONING_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"REASONING_MAX_TOKENS" default:"2000"`
	Temperature    float32 `envconfig:"REASONING_TEMPERATURE" default:"0.1"`
	TimeoutSeconds int     `envconfig:"REASONING_TIMEOUT_SECONDS" default:"8"`
}

// EmbeddingConfig configures the embedding model.
type EmbeddingConfig struct {
	Model     string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	Dimension int    `envconfig:"EMBEDDING_DIMENSION" default:"384"`
}

// PolicyConfig locates tenant policy files.
type PolicyConfig struct {
	Dir string `envconfig:"POLICY_DIR" default:"data/policies"`
}

// CatalogConfig locates the catalog database.
type CatalogConfig struct {
	Path string `envconfig:"CATALOG_DB_PATH" default:"intent_catalog.db"`
}

// AuditConfig configures the audit sink.
type AuditConfig struct {
	Enabled bool     `envconfig:"AUDIT_ENABLED" default:"false"`
	Brokers []string `envconfig:"AUDIT_KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"AUDIT_KAFKA_TOPIC" default:"reasoning-results"`
}

// ConversationConfig configures per-conversation intent history.
type ConversationConfig struct {
	TTL      string `envconfig:"CONVERSATION_TTL" default:"15m"`
	MaxTurns int    `envconfig:"CONVERSATION_MAX_TURNS" default:"10"`
}
