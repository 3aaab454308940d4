package workflow

import (
	"time"

	"github.com/google/uuid"
)

// NodeType identifies one of the closed set of node kinds a workflow may
// contain. Adding a node type requires extending the validator registry and
// the engine's executor dispatch, both of which handle the set exhaustively.
type NodeType string

const (
	NodeTypeInput              NodeType = "input"
	NodeTypeLLMTask            NodeType = "llm_task"
	NodeTypeWebScraper         NodeType = "web_scraper"
	NodeTypeStructuredOutput   NodeType = "structured_output"
	NodeTypeEmbeddingGenerator NodeType = "embedding_generator"
	NodeTypeSimilaritySearch   NodeType = "similarity_search"
	NodeTypeTextToSpeech       NodeType = "text_to_speech"
	NodeTypeTextToImage        NodeType = "text_to_image"
	NodeTypeImageToVideo       NodeType = "image_to_video"
	NodeTypeTextExport         NodeType = "text_export"
	NodeTypeOutput             NodeType = "output"
)

// NodeTypes lists every known node type in a stable order.
func NodeTypes() []NodeType {
	return []NodeType{
		NodeTypeInput,
		NodeTypeLLMTask,
		NodeTypeWebScraper,
		NodeTypeStructuredOutput,
		NodeTypeEmbeddingGenerator,
		NodeTypeSimilaritySearch,
		NodeTypeTextToSpeech,
		NodeTypeTextToImage,
		NodeTypeImageToVideo,
		NodeTypeTextExport,
		NodeTypeOutput,
	}
}

// NodeState represents the lifecycle state of a node within one execution
// run. Transitions are one-directional: idle -> running -> success|error.
type NodeState string

const (
	NodeIdle    NodeState = "idle"
	NodeRunning NodeState = "running"
	NodeSuccess NodeState = "success"
	NodeError   NodeState = "error"
)

// ExportFormat selects the file format produced by a text-export node.
type ExportFormat string

const (
	ExportCSV ExportFormat = "csv"
	ExportPDF ExportFormat = "pdf"
)

// PDFOptions customizes the header of a PDF produced by a text-export node.
type PDFOptions struct {
	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Subtitle string `json:"subtitle,omitempty" yaml:"subtitle,omitempty"`
}

// NodeData holds the type-specific configuration of a node. It is a flat
// union over every node type: each executor and validator reads only the
// fields relevant to its type and ignores the rest. Fields where the
// distinction between "absent" and "zero value" matters (for example an
// llm-task prompt, which may legitimately be the empty string) are pointers.
//
// Output records the node's last produced output. The engine writes it after
// a successful execution; it is never read as configuration except by input
// nodes, which fall back to it when no payload is set.
type NodeData struct {
	Label string `json:"label,omitempty" yaml:"label,omitempty"`

	// input
	Payload string `json:"payload,omitempty" yaml:"payload,omitempty"`

	// llm-task and structured-output
	Prompt      *string  `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Model       string   `json:"model,omitempty" yaml:"model,omitempty"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`

	// web-scraper
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	MaxLength *int   `json:"max_length,omitempty" yaml:"max_length,omitempty"`

	// structured-output: JSON schema as a string
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`

	// embedding-generator
	InputType string `json:"inputType,omitempty" yaml:"inputType,omitempty"`
	Text      string `json:"text,omitempty" yaml:"text,omitempty"`

	// similarity-search
	CollectionName string   `json:"collectionName,omitempty" yaml:"collectionName,omitempty"`
	TopK           *int     `json:"topK,omitempty" yaml:"topK,omitempty"`
	ScoreThreshold *float64 `json:"scoreThreshold,omitempty" yaml:"scoreThreshold,omitempty"`
	QueryText      string   `json:"queryText,omitempty" yaml:"queryText,omitempty"`

	// text-to-speech
	VoiceID string `json:"voiceId,omitempty" yaml:"voiceId,omitempty"`

	// image-to-video
	Images      []string `json:"images,omitempty" yaml:"images,omitempty"`
	AudioBase64 string   `json:"audioBase64,omitempty" yaml:"audioBase64,omitempty"`
	Duration    *int     `json:"duration,omitempty" yaml:"duration,omitempty"`

	// text-export
	Format           ExportFormat      `json:"format,omitempty" yaml:"format,omitempty"`
	Filename         string            `json:"filename,omitempty" yaml:"filename,omitempty"`
	IncludeTimestamp *bool             `json:"includeTimestamp,omitempty" yaml:"includeTimestamp,omitempty"`
	Columns          []string          `json:"columns,omitempty" yaml:"columns,omitempty"`
	ColumnMap        map[string]string `json:"columnMap,omitempty" yaml:"columnMap,omitempty"`
	PDF              *PDFOptions       `json:"pdf,omitempty" yaml:"pdf,omitempty"`

	// Output is the last output produced by this node, recorded by the engine.
	Output any `json:"output,omitempty" yaml:"output,omitempty"`
}

// Position is a canvas layout hint. It has no behavioral significance but is
// preserved through serialization so round trips are lossless.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is one computation step in a workflow graph.
type Node struct {
	ID       string   `json:"id" yaml:"id"`
	Type     NodeType `json:"type" yaml:"type"`
	Data     NodeData `json:"data" yaml:"data"`
	Position Position `json:"position" yaml:"position"`
}

// Edge is a directed data-flow connection from the output of the Source node
// to the input of the Target node. Handles are optional layout-level
// attachment points carried through serialization.
type Edge struct {
	ID           string `json:"id" yaml:"id"`
	Source       string `json:"source" yaml:"source"`
	Target       string `json:"target" yaml:"target"`
	SourceHandle string `json:"sourceHandle,omitempty" yaml:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty" yaml:"targetHandle,omitempty"`
}

// Metadata carries descriptive, non-structural workflow information.
type Metadata struct {
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedBy   string `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	CreatedAt   string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// Workflow is a directed acyclic graph of nodes connected by edges. Node IDs
// are unique within a workflow; every edge references existing nodes.
type Workflow struct {
	ID       string   `json:"id" yaml:"id"`
	Nodes    []Node   `json:"nodes" yaml:"nodes"`
	Edges    []Edge   `json:"edges" yaml:"edges"`
	Metadata Metadata `json:"metadata" yaml:"metadata"`
}

// New creates an empty named workflow with a fresh ID and creation timestamp.
func New(name string) *Workflow {
	now := time.Now().UTC().Format(time.RFC3339)
	return &Workflow{
		ID: "workflow-" + uuid.NewString(),
		Metadata: Metadata{
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// NodeByID returns a pointer to the node with the given ID, or nil when no
// such node exists. The pointer aliases the workflow's node slice, so callers
// may use it to record outputs in place.
func (w *Workflow) NodeByID(id string) *Node {
	for i := range w.Nodes {
		if w.Nodes[i].ID == id {
			return &w.Nodes[i]
		}
	}
	return nil
}

// Severity classifies a validation finding. Only findings of SeverityError
// block execution; warnings are advisory.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationError is one finding from workflow validation, attributed to a
// node or an edge when applicable.
type ValidationError struct {
	NodeID  string   `json:"nodeId,omitempty"`
	EdgeID  string   `json:"edgeId,omitempty"`
	Message string   `json:"message"`
	Type    Severity `json:"type"`
}

// ValidationResult is the accumulated outcome of validating a workflow.
// Valid is true iff Errors contains no finding of SeverityError; warnings do
// not affect it.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

// ErrorCount returns the number of findings with SeverityError.
func (r ValidationResult) ErrorCount() int {
	count := 0
	for _, e := range r.Errors {
		if e.Type == SeverityError {
			count++
		}
	}
	return count
}

// LogLevel classifies an execution log entry.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// Log is one entry in the append-only execution log of a run. IDs are unique
// within a run and ordering reflects real-time occurrence.
type Log struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"nodeId,omitempty"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// NodeResult is the immutable outcome of executing one node in one run.
type NodeResult struct {
	NodeID   string        `json:"nodeId"`
	Success  bool          `json:"success"`
	Output   any           `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"executionTime"`
}

// RunResult aggregates one invocation of the execution engine: every
// per-node result gathered before the run finished or aborted, the complete
// ordered log, and the overall outcome.
type RunResult struct {
	Success bool                   `json:"success"`
	Results map[string]*NodeResult `json:"results"`
	Logs    []Log                  `json:"logs"`
	Error   string                 `json:"error,omitempty"`
}
