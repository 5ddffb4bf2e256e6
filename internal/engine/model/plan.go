package model

import (
	"fmt"

	errx "github.com/intentcore/server/internal/core/error"
)

// TargetSystem is the closed set of systems a plan step can address.
type TargetSystem string

const (
	TargetCommerce     TargetSystem = "commerce"
	TargetSupport      TargetSystem = "support"
	TargetNotification TargetSystem = "notification"
	TargetFulfillment  TargetSystem = "fulfillment"
)

// ActionStep is one executable step of a plan. DependsOn references step
// ids within the same plan; the set of edges must form a DAG.
type ActionStep struct {
	StepID    string            `json:"step_id"`
	Verb      string            `json:"verb"`
	Target    TargetSystem      `json:"target"`
	Params    map[string]string `json:"params,omitempty"`
	DependsOn []string          `json:"depends_on,omitempty"`
	Fallback  string            `json:"fallback,omitempty"`
}

// ActionPlan is a dependency-ordered set of steps. The builder validates
// it; execution belongs to a downstream collaborator.
type ActionPlan struct {
	Steps []ActionStep `json:"steps"`
}

// Validate checks that every DependsOn reference names a step in the plan
// and that the dependency edges are acyclic (Kahn's algorithm). Step ids
// must be unique.
func (p ActionPlan) Validate() error {
	byID := make(map[string]ActionStep, len(p.Steps))
	for _, s := range p.Steps {
		if s.StepID == "" {
			return fmt.Errorf("action step with empty id")
		}
		if _, dup := byID[s.StepID]; dup {
			return fmt.Errorf("duplicate step id %q", s.StepID)
		}
		byID[s.StepID] = s
	}

	indegree := make(map[string]int, len(p.Steps))
	dependents := make(map[string][]string, len(p.Steps))
	for _, s := range p.Steps {
		if _, ok := indegree[s.StepID]; !ok {
			indegree[s.StepID] = 0
		}
		for _, dep := range s.DependsOn {
			if _, ok := byID[dep]; !ok {
				return fmt.Errorf("step %q depends on unknown step %q", s.StepID, dep)
			}
			indegree[s.StepID]++
			dependents[dep] = append(dependents[dep], s.StepID)
		}
	}

	queue := make([]string, 0, len(p.Steps))
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if visited != len(p.Steps) {
		return errx.ErrCycleInActionPlan
	}
	return nil
}
