package engine

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/intentcore/server/internal/engine/enrich"
	"github.com/intentcore/server/internal/engine/extract"
	"github.com/intentcore/server/internal/engine/match"
	"github.com/intentcore/server/internal/engine/model"
	"github.com/intentcore/server/internal/engine/plan"
	"github.com/intentcore/server/internal/engine/reason"
	logx "github.com/intentcore/server/pkg/logger"
)

// GraphConfig holds the collaborators the resolution graph is built from.
type GraphConfig struct {
	Extractor  *extract.Extractor
	Matcher    *match.Matcher
	Compound   *match.CompoundDetector
	Decomposer *reason.Decomposer
	Policy     *reason.PolicyEngine
	Planner    *plan.Builder
	Enricher   enrich.Provider
}

// GraphBuilder constructs the resolution graph.
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.Request, *model.ReasoningResult]
}

// BuildGraph constructs and compiles the resolution graph.
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.Request, *model.ReasoningResult], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.Extractor == nil || config.Matcher == nil || config.Compound == nil {
		return nil, fmt.Errorf("extraction/matching collaborators are not initialized")
	}
	if config.Decomposer == nil || config.Policy == nil || config.Planner == nil || config.Enricher == nil {
		return nil, fmt.Errorf("reasoning collaborators are not initialized")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.Request, *model.ReasoningResult](
			compose.WithGenLocalState(func(ctx context.Context) *model.PipelineState {
				return &model.PipelineState{}
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(NodeExtract,
		NewExtractNode(b.config.Extractor),
		compose.WithStatePreHandler(NewExtractPreHandler()),
		compose.WithStatePostHandler(NewExtractPostHandler()),
	)

	b.graph.AddLambdaNode(NodeMatch,
		NewMatchNode(b.config.Matcher, b.config.Compound),
		compose.WithStatePostHandler(NewMatchPostHandler()),
	)

	b.graph.AddLambdaNode(NodeFastResolve,
		NewFastResolveNode(b.config.Planner),
		compose.WithStatePostHandler(NewFastResolvePostHandler()),
	)

	b.graph.AddLambdaNode(NodeClarify,
		NewClarifyNode(),
		compose.WithStatePostHandler(NewClarifyPostHandler()),
	)

	b.graph.AddLambdaNode(NodeDecompose,
		NewDecomposeNode(b.config.Decomposer),
		compose.WithStatePreHandler(NewDecomposePreHandler(b.config.Enricher)),
		compose.WithStatePostHandler(NewDecomposePostHandler()),
	)

	b.graph.AddLambdaNode(NodeClarifyDeep,
		NewDeepClarifyNode(),
		compose.WithStatePostHandler(NewDeepClarifyPostHandler()),
	)

	b.graph.AddLambdaNode(NodeConstrain,
		NewConstrainNode(b.config.Policy),
		compose.WithStatePostHandler(NewConstrainPostHandler()),
	)

	b.graph.AddLambdaNode(NodeConflict,
		NewConflictNode(),
		compose.WithStatePostHandler(NewConflictPostHandler()),
	)

	b.graph.AddLambdaNode(NodePlan,
		NewPlanNode(b.config.Planner),
		compose.WithStatePostHandler(NewPlanPostHandler()),
	)

	b.graph.AddLambdaNode(NodeFinalize,
		NewFinalizeNode(),
		compose.WithStatePostHandler(NewFinalizePostHandler()),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, NodeExtract},
		{NodeExtract, NodeMatch},
		{NodeFastResolve, NodeFinalize},
		{NodeClarify, NodeFinalize},
		{NodeClarifyDeep, NodeFinalize},
		{NodeConstrain, NodeConflict},
		{NodeConflict, NodePlan},
		{NodePlan, NodeFinalize},
		{NodeFinalize, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	routeBranch := compose.NewGraphBranch(
		NewRouteCondition(),
		map[string]bool{
			NodeFastResolve: true,
			NodeDecompose:   true,
			NodeClarify:     true,
		},
	)
	if err := b.graph.AddBranch(NodeMatch, routeBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding route branch")
		return fmt.Errorf("error adding route branch: %w", err)
	}

	clarifyBranch := compose.NewGraphBranch(
		NewDeepClarifyCondition(),
		map[string]bool{
			NodeClarifyDeep: true,
			NodeConstrain:   true,
		},
	)
	if err := b.graph.AddBranch(NodeDecompose, clarifyBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding clarification branch")
		return fmt.Errorf("error adding clarification branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.Request, *model.ReasoningResult], error) {
	// The longest route visits eight nodes; leave headroom for branching.
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Resolution graph compiled successfully")
	return runnable, nil
}
