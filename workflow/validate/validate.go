// Package validate checks workflows for structural integrity and execution
// readiness. Validation accumulates findings rather than stopping at the
// first problem: the returned report contains every error and warning in the
// order the checks ran, and a workflow is considered valid when the report
// holds no error-severity finding. Warnings never block execution.
package validate

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/yond5413/agent-workflow-builder/workflow"
	"github.com/yond5413/agent-workflow-builder/workflow/analyze"
)

// EmbeddingModels is the allow-list of recognized embedding model names.
// Configuring a model outside this list produces a warning, not an error,
// since the embedding capability may accept models the list lags behind on.
var EmbeddingModels = []string{"embed-english-v3.0", "embed-multilingual-v3.0"}

const (
	// TopK bounds for similarity-search nodes.
	minTopK = 1
	maxTopK = 100
)

// nodeValidator checks one node's type-specific configuration.
type nodeValidator func(node workflow.Node) []workflow.ValidationError

// nodeValidators maps every known node type to its configuration check.
// The registry covers the closed NodeType set exhaustively; a node whose
// type is absent here is reported as unknown.
var nodeValidators = map[workflow.NodeType]nodeValidator{
	workflow.NodeTypeInput:              validateNothing,
	workflow.NodeTypeLLMTask:            validateLLMTask,
	workflow.NodeTypeWebScraper:         validateWebScraper,
	workflow.NodeTypeStructuredOutput:   validateStructuredOutput,
	workflow.NodeTypeEmbeddingGenerator: validateEmbeddingGenerator,
	workflow.NodeTypeSimilaritySearch:   validateSimilaritySearch,
	workflow.NodeTypeTextToSpeech:       validateNothing,
	workflow.NodeTypeTextToImage:        validateNothing,
	workflow.NodeTypeImageToVideo:       validateNothing,
	workflow.NodeTypeTextExport:         validateNothing,
	workflow.NodeTypeOutput:             validateNothing,
}

// Workflow validates the workflow and returns the accumulated report.
//
// Checks run in a fixed order: empty-workflow (the only short circuit),
// cycle detection, per-node configuration, per-edge structure, presence of
// input/output nodes (warnings), and disconnected nodes (warnings).
func Workflow(w *workflow.Workflow) workflow.ValidationResult {
	var errs []workflow.ValidationError

	if len(w.Nodes) == 0 {
		errs = append(errs, workflow.ValidationError{
			Message: "workflow must contain at least one node",
			Type:    workflow.SeverityError,
		})
		return workflow.ValidationResult{Valid: false, Errors: errs}
	}

	if err := analyze.DetectCycle(w.Nodes, w.Edges); err != nil {
		errs = append(errs, workflow.ValidationError{
			Message: err.Error(),
			Type:    workflow.SeverityError,
		})
	}

	for _, node := range w.Nodes {
		errs = append(errs, validateNode(node)...)
	}

	for _, edge := range w.Edges {
		errs = append(errs, validateEdge(edge, w)...)
	}

	if !hasNodeOfType(w.Nodes, workflow.NodeTypeInput) {
		errs = append(errs, workflow.ValidationError{
			Message: "workflow has no input node",
			Type:    workflow.SeverityWarning,
		})
	}
	if !hasNodeOfType(w.Nodes, workflow.NodeTypeOutput) {
		errs = append(errs, workflow.ValidationError{
			Message: "workflow has no output node",
			Type:    workflow.SeverityWarning,
		})
	}

	for _, nodeID := range analyze.FindDisconnected(w.Nodes, w.Edges) {
		errs = append(errs, workflow.ValidationError{
			NodeID:  nodeID,
			Message: "node is not connected to the workflow",
			Type:    workflow.SeverityWarning,
		})
	}

	result := workflow.ValidationResult{Errors: errs}
	result.Valid = result.ErrorCount() == 0
	return result
}

func validateNode(node workflow.Node) []workflow.ValidationError {
	var errs []workflow.ValidationError

	if node.ID == "" {
		errs = append(errs, workflow.ValidationError{
			Message: "node is missing an id",
			Type:    workflow.SeverityError,
		})
	}
	if node.Type == "" {
		errs = append(errs, workflow.ValidationError{
			NodeID:  node.ID,
			Message: "node is missing a type",
			Type:    workflow.SeverityError,
		})
		return errs
	}

	validator, known := nodeValidators[node.Type]
	if !known {
		errs = append(errs, workflow.ValidationError{
			NodeID:  node.ID,
			Message: fmt.Sprintf("unknown node type: %s", node.Type),
			Type:    workflow.SeverityError,
		})
		return errs
	}

	return append(errs, validator(node)...)
}

func validateEdge(edge workflow.Edge, w *workflow.Workflow) []workflow.ValidationError {
	var errs []workflow.ValidationError

	sourceNode := w.NodeByID(edge.Source)
	targetNode := w.NodeByID(edge.Target)

	if sourceNode == nil {
		errs = append(errs, workflow.ValidationError{
			EdgeID:  edge.ID,
			Message: fmt.Sprintf("edge source node %q not found", edge.Source),
			Type:    workflow.SeverityError,
		})
	}
	if targetNode == nil {
		errs = append(errs, workflow.ValidationError{
			EdgeID:  edge.ID,
			Message: fmt.Sprintf("edge target node %q not found", edge.Target),
			Type:    workflow.SeverityError,
		})
	}

	// Input nodes do not receive data and output nodes do not emit further.
	if targetNode != nil && targetNode.Type == workflow.NodeTypeInput {
		errs = append(errs, workflow.ValidationError{
			EdgeID:  edge.ID,
			Message: "cannot connect to an input node",
			Type:    workflow.SeverityError,
		})
	}
	if sourceNode != nil && sourceNode.Type == workflow.NodeTypeOutput {
		errs = append(errs, workflow.ValidationError{
			EdgeID:  edge.ID,
			Message: "cannot connect from an output node",
			Type:    workflow.SeverityError,
		})
	}

	return errs
}

// validateNothing accepts any configuration. It covers node types that work
// purely from upstream input or need no required fields.
func validateNothing(workflow.Node) []workflow.ValidationError { return nil }

func validateLLMTask(node workflow.Node) []workflow.ValidationError {
	// An empty prompt is permitted; an absent one is not.
	if node.Data.Prompt == nil {
		return []workflow.ValidationError{{
			NodeID:  node.ID,
			Message: "llm-task node requires a prompt",
			Type:    workflow.SeverityError,
		}}
	}
	return nil
}

func validateWebScraper(node workflow.Node) []workflow.ValidationError {
	if node.Data.URL == "" {
		return []workflow.ValidationError{{
			NodeID:  node.ID,
			Message: "web-scraper node requires a URL",
			Type:    workflow.SeverityError,
		}}
	}
	if !isValidURL(node.Data.URL) {
		return []workflow.ValidationError{{
			NodeID:  node.ID,
			Message: fmt.Sprintf("invalid URL format: %s", node.Data.URL),
			Type:    workflow.SeverityError,
		}}
	}
	return nil
}

func validateStructuredOutput(node workflow.Node) []workflow.ValidationError {
	if node.Data.Schema == "" {
		return []workflow.ValidationError{{
			NodeID:  node.ID,
			Message: "structured-output node requires a schema",
			Type:    workflow.SeverityError,
		}}
	}
	if !json.Valid([]byte(node.Data.Schema)) {
		return []workflow.ValidationError{{
			NodeID:  node.ID,
			Message: "schema is not valid JSON",
			Type:    workflow.SeverityError,
		}}
	}
	return nil
}

func validateEmbeddingGenerator(node workflow.Node) []workflow.ValidationError {
	if node.Data.Model == "" {
		return nil
	}
	for _, model := range EmbeddingModels {
		if node.Data.Model == model {
			return nil
		}
	}
	return []workflow.ValidationError{{
		NodeID:  node.ID,
		Message: fmt.Sprintf("unrecognized embedding model %q, expected one of: %s", node.Data.Model, strings.Join(EmbeddingModels, ", ")),
		Type:    workflow.SeverityWarning,
	}}
}

func validateSimilaritySearch(node workflow.Node) []workflow.ValidationError {
	var errs []workflow.ValidationError

	if node.Data.CollectionName == "" {
		errs = append(errs, workflow.ValidationError{
			NodeID:  node.ID,
			Message: "similarity-search node requires a collection name",
			Type:    workflow.SeverityError,
		})
	}
	if topK := node.Data.TopK; topK != nil && (*topK < minTopK || *topK > maxTopK) {
		errs = append(errs, workflow.ValidationError{
			NodeID:  node.ID,
			Message: fmt.Sprintf("topK must be between %d and %d", minTopK, maxTopK),
			Type:    workflow.SeverityError,
		})
	}
	if threshold := node.Data.ScoreThreshold; threshold != nil && (*threshold < 0 || *threshold > 1) {
		errs = append(errs, workflow.ValidationError{
			NodeID:  node.ID,
			Message: "score threshold must be between 0 and 1",
			Type:    workflow.SeverityError,
		})
	}
	return errs
}

func hasNodeOfType(nodes []workflow.Node, nodeType workflow.NodeType) bool {
	for _, node := range nodes {
		if node.Type == nodeType {
			return true
		}
	}
	return false
}

// isValidURL reports whether raw parses as an absolute http(s)-style URL.
func isValidURL(raw string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Host != ""
}
