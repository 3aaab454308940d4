// Package analyze provides structural analysis over workflow graphs:
// adjacency construction, cycle detection, disconnected-node discovery, depth
// grouping for parallel scheduling, and Kahn topological ordering.
//
// All functions are pure: they read the node and edge slices and never
// mutate them. Output ordering is deterministic: within a depth group,
// nodes appear in their original workflow order.
package analyze

import (
	"errors"
	"sort"

	"github.com/yond5413/agent-workflow-builder/workflow"
)

// ErrCycle is returned by DetectCycle when the edge set contains at least one
// directed cycle.
var ErrCycle = errors.New("workflow contains a cycle, which is not allowed")

// BuildAdjacency returns the adjacency map of the graph: each node ID maps to
// the ordered list of node IDs it has outgoing edges to. Every node appears
// as a key, with an empty list when it has no outgoing edges, so downstream
// algorithms need no existence checks.
func BuildAdjacency(nodes []workflow.Node, edges []workflow.Edge) map[string][]string {
	adjacency := make(map[string][]string, len(nodes))
	for _, node := range nodes {
		adjacency[node.ID] = []string{}
	}
	for _, edge := range edges {
		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
	}
	return adjacency
}

// DetectCycle reports whether the graph contains a directed cycle, using a
// depth-first traversal with a recursion-stack set. It returns [ErrCycle]
// when a cycle exists and nil otherwise; it does not identify which nodes
// participate.
func DetectCycle(nodes []workflow.Node, edges []workflow.Edge) error {
	adjacency := BuildAdjacency(nodes, edges)
	visited := make(map[string]bool, len(nodes))
	onStack := make(map[string]bool, len(nodes))

	var visit func(nodeID string) bool
	visit = func(nodeID string) bool {
		visited[nodeID] = true
		onStack[nodeID] = true

		for _, neighbor := range adjacency[nodeID] {
			if !visited[neighbor] {
				if visit(neighbor) {
					return true
				}
			} else if onStack[neighbor] {
				return true
			}
		}

		onStack[nodeID] = false
		return false
	}

	for _, node := range nodes {
		if !visited[node.ID] {
			if visit(node.ID) {
				return ErrCycle
			}
		}
	}
	return nil
}

// FindDisconnected returns the IDs of nodes that appear in no edge, as source
// or target. A workflow with a single node is never flagged: one isolated
// node may legitimately be the entire workflow.
func FindDisconnected(nodes []workflow.Node, edges []workflow.Edge) []string {
	if len(nodes) <= 1 {
		return nil
	}

	connected := make(map[string]bool, len(nodes))
	for _, edge := range edges {
		connected[edge.Source] = true
		connected[edge.Target] = true
	}

	var disconnected []string
	for _, node := range nodes {
		if !connected[node.ID] {
			disconnected = append(disconnected, node.ID)
		}
	}
	return disconnected
}

// DepthGroups partitions the nodes by execution depth: depth 0 for nodes
// with no incoming edges, otherwise 1 + the maximum depth across all source
// nodes of incoming edges. Groups are returned in ascending depth order;
// within a group, nodes keep their original workflow order. Nodes in the
// same group share no dependency relationship and are eligible for
// concurrent execution.
//
// Depths are computed by memoized recursion. A node re-entered within its
// own recursion stack (possible only on a cyclic graph, which validation
// rejects beforehand) degrades to depth 0 instead of recursing forever.
func DepthGroups(nodes []workflow.Node, edges []workflow.Edge) [][]workflow.Node {
	incoming := make(map[string][]string, len(nodes))
	for _, edge := range edges {
		incoming[edge.Target] = append(incoming[edge.Target], edge.Source)
	}

	depths := make(map[string]int, len(nodes))

	var depthOf func(nodeID string, onStack map[string]bool) int
	depthOf = func(nodeID string, onStack map[string]bool) int {
		if depth, done := depths[nodeID]; done {
			return depth
		}
		if onStack[nodeID] {
			// Defensive fallback for cyclic input.
			return 0
		}
		onStack[nodeID] = true
		defer delete(onStack, nodeID)

		sources := incoming[nodeID]
		if len(sources) == 0 {
			depths[nodeID] = 0
			return 0
		}

		maxDepth := 0
		for _, source := range sources {
			if d := depthOf(source, onStack); d > maxDepth {
				maxDepth = d
			}
		}

		depth := maxDepth + 1
		depths[nodeID] = depth
		return depth
	}

	for _, node := range nodes {
		depthOf(node.ID, make(map[string]bool))
	}

	byDepth := make(map[int][]workflow.Node)
	for _, node := range nodes {
		d := depths[node.ID]
		byDepth[d] = append(byDepth[d], node)
	}

	levels := make([]int, 0, len(byDepth))
	for d := range byDepth {
		levels = append(levels, d)
	}
	sort.Ints(levels)

	groups := make([][]workflow.Node, 0, len(levels))
	for _, d := range levels {
		groups = append(groups, byDepth[d])
	}
	return groups
}

// TopologicalOrder returns the nodes in a flat dependency-respecting order
// using Kahn's algorithm (in-degree counting with a queue of zero-in-degree
// nodes). On a cyclic graph the returned sequence omits the nodes involved
// in the cycle; run [DetectCycle] first when that matters.
func TopologicalOrder(nodes []workflow.Node, edges []workflow.Edge) []workflow.Node {
	adjacency := BuildAdjacency(nodes, edges)

	inDegree := make(map[string]int, len(nodes))
	for _, node := range nodes {
		inDegree[node.ID] = 0
	}
	for _, edge := range edges {
		inDegree[edge.Target]++
	}

	nodeByID := make(map[string]workflow.Node, len(nodes))
	for _, node := range nodes {
		nodeByID[node.ID] = node
	}

	var queue []string
	for _, node := range nodes {
		if inDegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	sorted := make([]workflow.Node, 0, len(nodes))
	for len(queue) > 0 {
		nodeID := queue[0]
		queue = queue[1:]
		sorted = append(sorted, nodeByID[nodeID])

		for _, neighbor := range adjacency[nodeID] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}
	return sorted
}
