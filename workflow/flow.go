// Package workflow executes a DAG of nodes level by level: nodes whose
// dependencies are all settled run in parallel, and every node run settles
// into a result even when it fails, so one branch failing only skips its
// own downstream.
package workflow

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/49Simon/dynamiq/core/runnable"
	"github.com/49Simon/dynamiq/nodes"
	"github.com/49Simon/dynamiq/observability"
)

// Flow is a validated DAG of nodes, ready to run. Build it once with NewFlow
// and run it any number of times; a Flow is immutable after construction.
type Flow struct {
	// ID is the opaque unique identity of the flow.
	ID string

	// Name is the human-readable name.
	Name string

	flowNodes []*nodes.Node
	nodeByID  map[string]*nodes.Node

	// levels groups node ids by topological depth; all nodes of one level
	// run in parallel once the previous level settled.
	levels [][]string

	maxConcurrency int
	log            observability.Logger
}

// FlowOption customizes a Flow at construction time.
type FlowOption func(*Flow)

// WithFlowID overrides the generated flow identity.
func WithFlowID(id string) FlowOption {
	return func(f *Flow) { f.ID = id }
}

// WithFlowName sets the human-readable name.
func WithFlowName(name string) FlowOption {
	return func(f *Flow) { f.Name = name }
}

// WithMaxConcurrency caps how many nodes of one level run at the same time.
// Zero (the default) means unbounded.
func WithMaxConcurrency(limit int) FlowOption {
	return func(f *Flow) { f.maxConcurrency = limit }
}

// WithFlowLogger sets the flow's structured logger.
func WithFlowLogger(log observability.Logger) FlowOption {
	return func(f *Flow) { f.log = log }
}

// NewFlow validates the node set and precomputes the execution levels.
// It fails on duplicate or empty node ids, dependencies on unknown nodes,
// and cycles.
func NewFlow(flowNodes []*nodes.Node, opts ...FlowOption) (*Flow, error) {
	flow := &Flow{
		ID:        uuid.NewString(),
		Name:      "flow",
		flowNodes: flowNodes,
		nodeByID:  make(map[string]*nodes.Node, len(flowNodes)),
		log:       observability.Default(),
	}
	for _, opt := range opts {
		opt(flow)
	}

	for _, node := range flowNodes {
		if node.ID == "" {
			return nil, fmt.Errorf("flow %s: node %q has an empty id", flow.Name, node.Name)
		}
		if _, exists := flow.nodeByID[node.ID]; exists {
			return nil, fmt.Errorf("flow %s: duplicate node id %q", flow.Name, node.ID)
		}
		flow.nodeByID[node.ID] = node
	}

	for _, node := range flowNodes {
		for _, dep := range node.Depends {
			if _, exists := flow.nodeByID[dep.NodeID]; !exists {
				return nil, fmt.Errorf("flow %s: node %q depends on unknown node %q", flow.Name, node.Name, dep.NodeID)
			}
			if dep.NodeID == node.ID {
				return nil, fmt.Errorf("flow %s: node %q depends on itself", flow.Name, node.Name)
			}
		}
	}

	levels, err := topologicalLevels(flowNodes)
	if err != nil {
		return nil, fmt.Errorf("flow %s: %w", flow.Name, err)
	}
	flow.levels = levels
	return flow, nil
}

// Nodes returns the flow's nodes in declaration order.
func (f *Flow) Nodes() []*nodes.Node {
	return f.flowNodes
}

// Levels returns the node ids grouped by topological depth.
func (f *Flow) Levels() [][]string {
	return f.levels
}

// Run executes the flow against one input, returning a settled result for
// every node keyed by node id. A failing node never aborts the flow: its
// dependents settle as SKIP and unrelated branches keep running.
func (f *Flow) Run(ctx context.Context, input map[string]any, cfg *runnable.Config) map[string]runnable.Result {
	cfg = runnable.EnsureConfig(cfg)
	results := make(map[string]runnable.Result, len(f.flowNodes))
	var resultsMu sync.Mutex

	f.log.Info("flow run started",
		observability.String("flow.id", f.ID),
		observability.String("flow.name", f.Name),
		observability.Int("flow.nodes", len(f.flowNodes)),
	)

	for _, level := range f.levels {
		var waitGroup sync.WaitGroup

		var semaphore chan struct{}
		if f.maxConcurrency > 0 {
			semaphore = make(chan struct{}, f.maxConcurrency)
		}

		for _, nodeID := range level {
			node := f.nodeByID[nodeID]

			// Snapshot the results this node depends on; the level's other
			// goroutines keep writing to the shared map.
			resultsMu.Lock()
			dependsResult := make(map[string]runnable.Result, len(node.Depends))
			for _, dep := range node.Depends {
				if result, ok := results[dep.NodeID]; ok {
					dependsResult[dep.NodeID] = result
				}
			}
			resultsMu.Unlock()

			waitGroup.Add(1)
			go func(node *nodes.Node, dependsResult map[string]runnable.Result) {
				defer waitGroup.Done()
				if semaphore != nil {
					semaphore <- struct{}{}
					defer func() { <-semaphore }()
				}

				result := node.Run(ctx, maps.Clone(input), cfg, dependsResult)

				resultsMu.Lock()
				results[node.ID] = result
				resultsMu.Unlock()
			}(node, dependsResult)
		}

		waitGroup.Wait()
	}

	f.log.Info("flow run finished",
		observability.String("flow.id", f.ID),
		observability.String("flow.name", f.Name),
	)
	return results
}

// topologicalLevels runs Kahn's algorithm over the dependency edges,
// grouping node ids by depth and detecting cycles. Within a level, ids keep
// their declaration order so execution is deterministic.
func topologicalLevels(flowNodes []*nodes.Node) ([][]string, error) {
	position := make(map[string]int, len(flowNodes))
	inDegree := make(map[string]int, len(flowNodes))
	dependents := make(map[string][]string, len(flowNodes))

	for index, node := range flowNodes {
		position[node.ID] = index
		inDegree[node.ID] = 0
	}
	for _, node := range flowNodes {
		for _, dep := range node.Depends {
			dependents[dep.NodeID] = append(dependents[dep.NodeID], node.ID)
			inDegree[node.ID]++
		}
	}

	currentLevel := make([]string, 0)
	for nodeID, degree := range inDegree {
		if degree == 0 {
			currentLevel = append(currentLevel, nodeID)
		}
	}
	sort.Slice(currentLevel, func(a, b int) bool {
		return position[currentLevel[a]] < position[currentLevel[b]]
	})

	levels := make([][]string, 0)
	processed := 0

	for len(currentLevel) > 0 {
		levels = append(levels, currentLevel)
		processed += len(currentLevel)

		nextLevel := make([]string, 0)
		for _, nodeID := range currentLevel {
			for _, dependent := range dependents[nodeID] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					nextLevel = append(nextLevel, dependent)
				}
			}
		}
		sort.Slice(nextLevel, func(a, b int) bool {
			return position[nextLevel[a]] < position[nextLevel[b]]
		})
		currentLevel = nextLevel
	}

	if processed != len(flowNodes) {
		cycleNodes := make([]string, 0)
		for nodeID, degree := range inDegree {
			if degree > 0 {
				cycleNodes = append(cycleNodes, nodeID)
			}
		}
		sort.Strings(cycleNodes)
		return nil, fmt.Errorf("cycle detected involving nodes: %v", cycleNodes)
	}
	return levels, nil
}
