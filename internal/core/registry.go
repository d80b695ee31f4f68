package core

import "fmt"

// Registry holds the static agent table: per-agent specs and the legal
// handoff topology. It is built once, passed into the orchestration loop
// explicitly, and safely shared across concurrent runs; there is no
// process-wide mutable registry.
//
// The topology is a two-hop star: the coordinator's legal targets are
// exactly the enabled workers, and every worker's only legal target is the
// coordinator. No agent may target itself. All routing therefore passes
// through the coordinator, which bounds the handoff graph to O(workers)
// edges and keeps loop detection a linear scan.
type Registry struct {
	specs   map[AgentID]*AgentSpec
	workers []AgentID
}

// RegistryOption configures registry construction.
type RegistryOption func(*registryOptions)

type registryOptions struct {
	agents    map[AgentID]bool
	skipStyle bool
}

// WithAgents restricts the worker set to the given agents. The coordinator
// is always present regardless of the restriction.
func WithAgents(agents ...AgentID) RegistryOption {
	return func(o *registryOptions) {
		o.agents = make(map[AgentID]bool, len(agents))
		for _, a := range agents {
			o.agents[a] = true
		}
	}
}

// WithSkipStyle removes the style agent from the worker set.
func WithSkipStyle() RegistryOption {
	return func(o *registryOptions) {
		o.skipStyle = true
	}
}

// NewRegistry builds the agent registry. At least one worker must remain
// after restrictions are applied; a coordinator with nowhere to route is a
// configuration error.
func NewRegistry(opts ...RegistryOption) (*Registry, error) {
	var o registryOptions
	for _, opt := range opts {
		opt(&o)
	}

	workers := make([]AgentID, 0, len(WorkerAgents()))
	for _, w := range WorkerAgents() {
		if o.agents != nil && !o.agents[w] {
			continue
		}
		if o.skipStyle && w == AgentStyle {
			continue
		}
		workers = append(workers, w)
	}
	if len(workers) == 0 {
		return nil, ErrValidation(CodeInvalidConfig, "no worker agents enabled")
	}

	r := &Registry{
		specs:   make(map[AgentID]*AgentSpec, len(workers)+1),
		workers: workers,
	}

	coordTargets := make(map[AgentID]bool, len(workers))
	for _, w := range workers {
		coordTargets[w] = true
	}
	r.specs[AgentCoordinator] = &AgentSpec{
		ID:   AgentCoordinator,
		Tier: TierAdvanced,
		ToolCapabilities: map[string]bool{
			ToolFetchDiff:        true,
			ToolListChangedFiles: true,
		},
		LegalHandoffTargets: coordTargets,
		MaxIterationsHint:   8,
		Temperature:         0.2,
	}

	toCoordinator := map[AgentID]bool{AgentCoordinator: true}
	for _, w := range workers {
		spec := &AgentSpec{
			ID:                  w,
			Tier:                TierStandard,
			LegalHandoffTargets: toCoordinator,
			MaxIterationsHint:   3,
			Temperature:         0.0,
		}
		switch w {
		case AgentSecurity:
			spec.ToolCapabilities = map[string]bool{
				ToolFetchDiff:        true,
				ToolListChangedFiles: true,
				ToolQueryVulnDB:      true,
			}
		case AgentCodeReview:
			spec.ToolCapabilities = map[string]bool{
				ToolFetchDiff:        true,
				ToolListChangedFiles: true,
			}
		case AgentStyle:
			spec.Tier = TierFast
			spec.ToolCapabilities = map[string]bool{
				ToolFetchDiff: true,
			}
		}
		r.specs[w] = spec
	}

	return r, nil
}

// Spec returns the static descriptor for an agent.
func (r *Registry) Spec(id AgentID) (*AgentSpec, error) {
	spec, ok := r.specs[id]
	if !ok {
		return nil, ErrNotFound("agent", string(id))
	}
	return spec, nil
}

// Workers returns the enabled worker agents in declaration order.
func (r *Registry) Workers() []AgentID {
	out := make([]AgentID, len(r.workers))
	copy(out, r.workers)
	return out
}

// Contains reports whether the agent participates in this registry.
func (r *Registry) Contains(id AgentID) bool {
	_, ok := r.specs[id]
	return ok
}

// LegalTargets returns the set of agents the given agent may hand off to.
func (r *Registry) LegalTargets(id AgentID) map[AgentID]bool {
	spec, ok := r.specs[id]
	if !ok {
		return nil
	}
	out := make(map[AgentID]bool, len(spec.LegalHandoffTargets))
	for t := range spec.LegalHandoffTargets {
		out[t] = true
	}
	return out
}

// ValidateHandoff checks that from -> to is a legal transition in the star
// topology. The check lives with the registry so dispatch and legality stay
// colocated.
func (r *Registry) ValidateHandoff(from, to AgentID) error {
	spec, ok := r.specs[from]
	if !ok {
		return ErrProtocol(CodeInvalidHandoff,
			fmt.Sprintf("handoff from unregistered agent %q", from))
	}
	if !r.Contains(to) {
		return ErrInvalidHandoff(from, to)
	}
	if !spec.LegalHandoffTargets[to] {
		return ErrInvalidHandoff(from, to)
	}
	return nil
}
