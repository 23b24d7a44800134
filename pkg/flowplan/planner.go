package flowplan

import (
	"fmt"
	"log/slog"
)

// FlowDefinition is a named, ordered sequence of stage bindings a user
// must complete.
type FlowDefinition struct {
	Slug     string
	Title    string
	Bindings []StageBinding
}

// Planner instantiates plans from flow definitions.
type Planner struct {
	flows map[string]FlowDefinition
}

// NewPlanner creates a planner over the given flow definitions.
func NewPlanner(flows ...FlowDefinition) *Planner {
	flowMap := make(map[string]FlowDefinition, len(flows))
	for _, flow := range flows {
		flowMap[flow.Slug] = flow
	}
	return &Planner{flows: flowMap}
}

// GetFlow returns the definition registered under slug.
func (p *Planner) GetFlow(slug string) (FlowDefinition, error) {
	flow, exists := p.flows[slug]
	if !exists {
		return FlowDefinition{}, fmt.Errorf("%w: %s", ErrUnknownFlow, slug)
	}
	return flow, nil
}

// Plan creates a fresh plan for the flow registered under slug.
func (p *Planner) Plan(slug string, initialContext map[string]interface{}) (*Plan, error) {
	flow, err := p.GetFlow(slug)
	if err != nil {
		return nil, err
	}

	slog.Debug("Planning flow", "slug", slug, "stages", len(flow.Bindings))
	return NewPlan(flow.Slug, flow.Bindings, initialContext), nil
}
