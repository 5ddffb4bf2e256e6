package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"google.golang.org/genai"

	"github.com/intentcore/server/internal/core"
	"github.com/intentcore/server/internal/engine"
	"github.com/intentcore/server/internal/engine/audit"
	"github.com/intentcore/server/internal/engine/catalog"
	"github.com/intentcore/server/internal/engine/conversation"
	"github.com/intentcore/server/internal/engine/enrich"
	"github.com/intentcore/server/internal/engine/extract"
	"github.com/intentcore/server/internal/engine/match"
	"github.com/intentcore/server/internal/engine/model"
	"github.com/intentcore/server/internal/engine/plan"
	"github.com/intentcore/server/internal/engine/reason"
	logx "github.com/intentcore/server/pkg/logger"
	pkgredis "github.com/intentcore/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the engine, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"APP_ENV" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Engine configs
	Matcher      model.MatcherConfig
	Compound     model.CompoundConfig
	Reasoning    model.ReasoningModelConfig
	Embedding    model.EmbeddingConfig
	Policy       model.PolicyConfig
	Catalog      model.CatalogConfig
	Audit        model.AuditConfig
	Conversation model.ConversationConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("Failed to process environment config: %v", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		log.Fatalf("Failed to initialise Redis client: %v", err)
	}
	defer rdb.Close()

	client, err := genai.NewClient(ctx, geminiClientConfig(cfg))
	if err != nil {
		log.Fatalf("Failed to create Gemini client: %v", err)
	}

	embedder := extract.NewGeminiEmbedder(client, cfg.Embedding)

	cat, err := catalog.OpenSQLite(ctx, cfg.Catalog.Path)
	if err != nil {
		log.Fatalf("Failed to open intent catalog: %v", err)
	}
	defer cat.Close()

	if err := catalog.Seed(ctx, cat, embedder); err != nil {
		log.Fatalf("Failed to seed intent catalog: %v", err)
	}

	chatModel, err := reason.NewGeminiChatModel(ctx, client, cfg.Reasoning)
	if err != nil {
		log.Fatalf("Failed to create reasoning model: %v", err)
	}

	policyEngine, err := reason.NewPolicyEngine(cfg.Policy)
	if err != nil {
		log.Fatalf("Failed to load tenant policies: %v", err)
	}

	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		log.Fatalf("Invalid CONVERSATION_TTL %q: %v", cfg.Conversation.TTL, err)
	}

	var sink audit.Sink = audit.NopSink{}
	if cfg.Audit.Enabled {
		kafkaSink := audit.NewKafkaSink(cfg.Audit)
		defer kafkaSink.Close()
		sink = kafkaSink
	}

	eng, err := engine.New(ctx, &engine.GraphConfig{
		Extractor:  extract.NewExtractor(embedder),
		Matcher:    match.NewMatcher(cat.Store(), cfg.Matcher),
		Compound:   match.NewCompoundDetector(cfg.Compound),
		Decomposer: reason.NewDecomposer(chatModel, cfg.Reasoning),
		Policy:     policyEngine,
		Planner:    plan.NewBuilder(plan.NewStaticRegistry()),
		Enricher:   demoEnrichment(),
	},
		engine.WithAuditSink(sink),
		engine.WithConversationRepository(
			conversation.NewRedisRepository(rdb, ttl, cfg.Conversation.MaxTurns)),
	)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	runDemo(ctx, eng)
}

func geminiClientConfig(cfg AppConfig) *genai.ClientConfig {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}
	return clientCfg
}

// demoEnrichment is a static commerce backend for local runs.
func demoEnrichment() enrich.Provider {
	provider := enrich.NewStaticProvider()
	provider.PutCustomer(model.CustomerProfile{
		CustomerID:    "cust-1001",
		Tier:          model.TierPremium,
		LifetimeValue: 2450,
		Complaints90d: 1,
	})
	provider.PutOrder(model.OrderContext{
		OrderID:           "ORD-12345",
		Status:            "shipped",
		Total:             89.90,
		CreatedAt:         time.Now().AddDate(0, 0, -10),
		ReturnEligibility: model.ReturnEligible,
		Items: []model.OrderItem{
			{SKU: "SHOE-BLK-42", Name: "trail runner", Category: "footwear", Quantity: 1, Price: 89.90, InStock: true},
		},
	})
	return provider
}

func runDemo(ctx context.Context, eng *engine.Engine) {
	requests := []struct {
		description string
		text        string
	}{
		{
			description: "Simple order status inquiry",
			text:        "Where is my order ORD-12345?",
		},
		{
			description: "Compound return plus exchange on one item",
			text:        "I want to return order ORD-12345 for a refund, but also exchange it for a size 10.",
		},
		{
			description: "Frustrated damaged-item complaint",
			text:        "This is the THIRD TIME I'm contacting you!!! My order arrived broken and I need a refund by friday.",
		},
	}

	conversationID := "demo-conversation-1"

	for i, req := range requests {
		fmt.Printf("\nRequest %d: %s\n", i+1, req.description)
		fmt.Printf("Text: %q\n", req.text)

		request := model.NewRequest("default", model.ChannelChat, req.text)
		request.ConversationID = conversationID
		request.CustomerID = "cust-1001"
		request.OrderIDs = []string{"ORD-12345"}

		result := eng.Resolve(ctx, request)

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			log.Fatalf("Failed to render result: %v", err)
		}
		fmt.Printf("Result %d:\n%s\n", i+1, out)
	}
}
