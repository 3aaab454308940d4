package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/yond5413/agent-workflow-builder/capability"
	"github.com/yond5413/agent-workflow-builder/workflow"
)

// --- Mock capabilities ---

type fakeChat struct {
	mu    sync.Mutex
	calls []capability.ChatRequest
	// failOn makes prompts containing the substring fail.
	failOn string
}

var _ capability.Chat = (*fakeChat)(nil)

func (f *fakeChat) Complete(_ context.Context, req capability.ChatRequest) (*capability.ChatResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	if f.failOn != "" && strings.Contains(req.Prompt, f.failOn) {
		return nil, errors.New("model unavailable")
	}
	return &capability.ChatResult{
		Content: "echo: " + req.Prompt,
		Model:   req.Model,
		Usage:   &capability.Usage{PromptTokens: 3, CompletionTokens: 5, TotalTokens: 8},
	}, nil
}

type fakeEmbedder struct {
	vector []float64
}

var _ capability.Embedder = (*fakeEmbedder)(nil)

func (f *fakeEmbedder) Embed(_ context.Context, req capability.EmbedRequest) (*capability.EmbedResult, error) {
	return &capability.EmbedResult{
		Embeddings: [][]float64{f.vector},
		Model:      req.Model,
		InputType:  req.InputType,
	}, nil
}

type fakeVectorIndex struct {
	mu       sync.Mutex
	requests []capability.SearchRequest
	hits     []capability.SearchHit
}

var _ capability.VectorIndex = (*fakeVectorIndex)(nil)

func (f *fakeVectorIndex) Search(_ context.Context, req capability.SearchRequest) ([]capability.SearchHit, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.hits, nil
}

func (f *fakeVectorIndex) Upsert(context.Context, capability.UpsertRequest) error { return nil }
func (f *fakeVectorIndex) Collections(context.Context) ([]string, error)          { return nil, nil }

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func inputNode(id, payload string) workflow.Node {
	return workflow.Node{ID: id, Type: workflow.NodeTypeInput, Data: workflow.NodeData{Payload: payload}}
}

func outputNode(id string) workflow.Node {
	return workflow.Node{ID: id, Type: workflow.NodeTypeOutput}
}

func llmNode(id, prompt string) workflow.Node {
	return workflow.Node{ID: id, Type: workflow.NodeTypeLLMTask, Data: workflow.NodeData{Prompt: strPtr(prompt)}}
}

func edgeBetween(source, target string) workflow.Edge {
	return workflow.Edge{ID: source + "-" + target, Source: source, Target: target}
}

// --- Tests ---

func TestExecuteParsesJSONPayload(t *testing.T) {
	w := &workflow.Workflow{
		ID:    "wf-1",
		Nodes: []workflow.Node{inputNode("in", "5"), outputNode("out")},
		Edges: []workflow.Edge{edgeBetween("in", "out")},
	}

	result, err := New(capability.Set{}).Execute(context.Background(), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}

	out := result.Results["out"]
	if out == nil || !out.Success {
		t.Fatalf("output node result missing or failed: %+v", out)
	}
	// The output node passes through the input node's wrapped payload.
	wrapped, ok := out.Output.(map[string]any)
	if !ok {
		t.Fatalf("expected map output, got %T", out.Output)
	}
	if got, ok := wrapped["data"].(float64); !ok || got != 5 {
		t.Errorf(`numeric payload must parse as JSON: expected {"data": 5}, got %v`, wrapped)
	}
}

func TestExecuteKeepsNonJSONPayloadAsString(t *testing.T) {
	w := &workflow.Workflow{
		Nodes: []workflow.Node{inputNode("in", "not json"), outputNode("out")},
		Edges: []workflow.Edge{edgeBetween("in", "out")},
	}

	result, err := New(capability.Set{}).Execute(context.Background(), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wrapped := result.Results["out"].Output.(map[string]any)
	if wrapped["data"] != "not json" {
		t.Errorf("expected raw string payload, got %v", wrapped["data"])
	}
}

func TestExecuteRecordsStateTransitions(t *testing.T) {
	w := &workflow.Workflow{
		Nodes: []workflow.Node{inputNode("in", "x"), outputNode("out")},
		Edges: []workflow.Edge{edgeBetween("in", "out")},
	}

	var mu sync.Mutex
	states := make(map[string][]workflow.NodeState)
	eng := New(capability.Set{}, WithStateListener(func(nodeID string, state workflow.NodeState) {
		mu.Lock()
		states[nodeID] = append(states[nodeID], state)
		mu.Unlock()
	}))

	if _, err := eng.Execute(context.Background(), w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, nodeID := range []string{"in", "out"} {
		want := []workflow.NodeState{workflow.NodeRunning, workflow.NodeSuccess}
		got := states[nodeID]
		if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
			t.Errorf("node %s: expected states %v, got %v", nodeID, want, got)
		}
	}
}

func TestExecuteWritesOutputBackToNode(t *testing.T) {
	w := &workflow.Workflow{
		Nodes: []workflow.Node{inputNode("in", "hello")},
	}

	if _, err := New(capability.Set{}).Execute(context.Background(), w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Nodes[0].Data.Output == nil {
		t.Error("successful execution must record the node's output in Data.Output")
	}
}

func TestFailedGroupAbortsButKeepsResults(t *testing.T) {
	// Two parallel chains; only the chain whose prompt contains "boom"
	// fails. The run aborts after the barrier, downstream nodes never run,
	// and every gathered result is still returned.
	chat := &fakeChat{failOn: "boom"}
	w := &workflow.Workflow{
		Nodes: []workflow.Node{
			inputNode("in-a", "alpha"),
			inputNode("in-b", "beta"),
			llmNode("llm-a", "boom {{input}}"),
			llmNode("llm-b", "fine {{input}}"),
			outputNode("out-a"),
			outputNode("out-b"),
		},
		Edges: []workflow.Edge{
			edgeBetween("in-a", "llm-a"),
			edgeBetween("in-b", "llm-b"),
			edgeBetween("llm-a", "out-a"),
			edgeBetween("llm-b", "out-b"),
		},
	}

	result, err := New(capability.Set{Chat: chat}).Execute(context.Background(), w)
	if !errors.Is(err, ErrNodesFailed) {
		t.Fatalf("expected ErrNodesFailed, got %v", err)
	}
	if result.Success {
		t.Error("aborted run must not report success")
	}
	if !strings.Contains(result.Error, "llm-a") {
		t.Errorf("aggregate error must name the failed node, got %q", result.Error)
	}

	if r := result.Results["llm-a"]; r == nil || r.Success || r.Error == "" {
		t.Errorf("failed node result must be recorded with its error, got %+v", r)
	}
	if r := result.Results["llm-b"]; r == nil || !r.Success {
		t.Errorf("sibling node in the failed group must keep its successful result, got %+v", r)
	}
	if _, ran := result.Results["out-a"]; ran {
		t.Error("downstream nodes must not run after a failed group")
	}
	if _, ran := result.Results["out-b"]; ran {
		t.Error("downstream nodes must not run after a failed group")
	}
}

func TestCancellationBetweenGroups(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &workflow.Workflow{
		Nodes: []workflow.Node{inputNode("in", "x")},
	}

	result, err := New(capability.Set{}).Execute(ctx, w)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if result == nil || result.Success {
		t.Fatalf("cancelled run must return an unsuccessful result, got %+v", result)
	}
	if len(result.Logs) == 0 {
		t.Error("cancelled run must still return its log")
	}
}

func TestUnknownNodeTypeFailsNode(t *testing.T) {
	w := &workflow.Workflow{
		Nodes: []workflow.Node{{ID: "x", Type: "quantum_sort"}},
	}

	result, err := New(capability.Set{}).Execute(context.Background(), w)
	if !errors.Is(err, ErrNodesFailed) {
		t.Fatalf("expected ErrNodesFailed, got %v", err)
	}
	if r := result.Results["x"]; r == nil || !strings.Contains(r.Error, "unknown node type") {
		t.Errorf("expected unknown-type error on the node result, got %+v", r)
	}
}

func TestMissingCapabilityFailsNode(t *testing.T) {
	w := &workflow.Workflow{
		Nodes: []workflow.Node{llmNode("llm", "hi")},
	}

	result, _ := New(capability.Set{}).Execute(context.Background(), w)
	r := result.Results["llm"]
	if r == nil || r.Success {
		t.Fatalf("expected node failure, got %+v", r)
	}
	if !strings.Contains(r.Error, capability.ErrNotConfigured.Error()) {
		t.Errorf("expected not-configured error, got %q", r.Error)
	}
}

func TestMultiInputKeyedBySourceNode(t *testing.T) {
	w := &workflow.Workflow{
		Nodes: []workflow.Node{
			inputNode("in-a", "left"),
			inputNode("in-b", "right"),
			outputNode("merge"),
		},
		Edges: []workflow.Edge{
			edgeBetween("in-a", "merge"),
			edgeBetween("in-b", "merge"),
		},
	}

	result, err := New(capability.Set{}).Execute(context.Background(), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	merged, ok := result.Results["merge"].Output.(map[string]any)
	if !ok {
		t.Fatalf("expected keyed map input, got %T", result.Results["merge"].Output)
	}
	for _, source := range []string{"in-a", "in-b"} {
		wrapped, ok := merged[source].(map[string]any)
		if !ok {
			t.Fatalf("expected output of %s under its node ID, got %v", source, merged[source])
		}
		if wrapped["data"] == nil {
			t.Errorf("source %s output lost: %v", source, wrapped)
		}
	}
}

func TestLLMPromptInterpolation(t *testing.T) {
	chat := &fakeChat{}
	w := &workflow.Workflow{
		Nodes: []workflow.Node{
			inputNode("in", "gophers"),
			llmNode("llm", "Write a haiku about {{input}}"),
		},
		Edges: []workflow.Edge{edgeBetween("in", "llm")},
	}

	if _, err := New(capability.Set{Chat: chat}).Execute(context.Background(), w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chat.calls) != 1 {
		t.Fatalf("expected one chat call, got %d", len(chat.calls))
	}
	call := chat.calls[0]
	if call.Prompt != `Write a haiku about "gophers"` {
		t.Errorf("unexpected interpolated prompt: %q", call.Prompt)
	}
	if call.Model != DefaultLLMModel || call.Temperature != DefaultTemperature || call.MaxTokens != DefaultMaxTokens {
		t.Errorf("defaults not applied: %+v", call)
	}
}

func TestSimilaritySearchUsesUpstreamVector(t *testing.T) {
	index := &fakeVectorIndex{hits: []capability.SearchHit{{ID: "p1", Score: 0.91}}}
	caps := capability.Set{
		Embedder:    &fakeEmbedder{vector: []float64{0.1, 0.2}},
		VectorIndex: index,
	}

	w := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: "emb", Type: workflow.NodeTypeEmbeddingGenerator, Data: workflow.NodeData{Text: "query text"}},
			{ID: "search", Type: workflow.NodeTypeSimilaritySearch, Data: workflow.NodeData{CollectionName: "docs"}},
		},
		Edges: []workflow.Edge{edgeBetween("emb", "search")},
	}

	result, err := New(caps).Execute(context.Background(), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(index.requests) != 1 {
		t.Fatalf("expected one search, got %d", len(index.requests))
	}
	req := index.requests[0]
	if len(req.Vector) != 2 || req.Vector[0] != 0.1 || req.Vector[1] != 0.2 {
		t.Errorf("expected upstream vector to be reused, got %v", req.Vector)
	}
	if req.TopK != DefaultTopK || req.ScoreThreshold != DefaultScoreThreshold {
		t.Errorf("defaults not applied: %+v", req)
	}

	output := result.Results["search"].Output.(map[string]any)
	if output["count"] != 1 {
		t.Errorf("expected one hit in output, got %v", output["count"])
	}
}

func TestTextExportCSV(t *testing.T) {
	chat := &fakeChat{}
	exportNode := workflow.Node{
		ID:   "export",
		Type: workflow.NodeTypeTextExport,
		Data: workflow.NodeData{
			Format:           workflow.ExportCSV,
			Filename:         "report-{timestamp}.csv",
			IncludeTimestamp: boolPtr(false),
		},
	}
	w := &workflow.Workflow{
		Nodes: []workflow.Node{
			inputNode("in", "meeting transcript"),
			llmNode("llm", "Summarize: {{input}}"),
			exportNode,
		},
		Edges: []workflow.Edge{
			edgeBetween("in", "llm"),
			edgeBetween("llm", "export"),
		},
	}

	result, err := New(capability.Set{Chat: chat}).Execute(context.Background(), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	output := result.Results["export"].Output.(map[string]any)
	if output["type"] != "file" || output["format"] != "csv" {
		t.Fatalf("unexpected export output: %v", output)
	}
	if output["filename"] != "report-.csv" {
		t.Errorf("timestamp must be dropped when disabled, got %v", output["filename"])
	}

	dataURL, _ := output["dataUrl"].(string)
	if !strings.HasPrefix(dataURL, "data:text/csv;base64,") {
		t.Fatalf("expected CSV data URL, got %q", dataURL)
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, "data:text/csv;base64,"))
	if err != nil {
		t.Fatalf("invalid base64 payload: %v", err)
	}
	csv := string(decoded)
	if !strings.HasPrefix(csv, "\ufeff") {
		t.Error("CSV payload must start with a UTF-8 BOM")
	}
	if !strings.Contains(csv, "id,inputText,summary,model,createdAt") {
		t.Errorf("default header missing: %q", csv)
	}
	if !strings.Contains(csv, "echo: Summarize:") {
		t.Errorf("summary column must carry the LLM content: %q", csv)
	}
}

func TestLogEntriesAreOrderedAndUnique(t *testing.T) {
	w := &workflow.Workflow{
		Nodes: []workflow.Node{
			inputNode("in", "x"),
			llmNode("llm", "p"),
			outputNode("out"),
		},
		Edges: []workflow.Edge{
			edgeBetween("in", "llm"),
			edgeBetween("llm", "out"),
		},
	}

	var streamed []workflow.Log
	var mu sync.Mutex
	eng := New(capability.Set{Chat: &fakeChat{}}, WithLogListener(func(entry workflow.Log) {
		mu.Lock()
		streamed = append(streamed, entry)
		mu.Unlock()
	}))

	result, err := eng.Execute(context.Background(), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(streamed) != len(result.Logs) {
		t.Errorf("listener saw %d entries, result carries %d", len(streamed), len(result.Logs))
	}

	seen := make(map[string]bool)
	for i, entry := range result.Logs {
		if seen[entry.ID] {
			t.Errorf("duplicate log ID %q", entry.ID)
		}
		seen[entry.ID] = true
		if i > 0 && entry.Timestamp.Before(result.Logs[i-1].Timestamp) {
			t.Errorf("log %d out of order", i)
		}
	}

	last := result.Logs[len(result.Logs)-1]
	if last.Level != workflow.LogSuccess {
		t.Errorf("run must end with a success entry, got %+v", last)
	}
}

func TestParallelGroupRunsConcurrently(t *testing.T) {
	// All three inputs share depth 0; a barrier inside the capability would
	// deadlock if they ran sequentially. Use the state listener to count
	// concurrent running nodes instead.
	const parallel = 3
	var mu sync.Mutex
	running, peak := 0, 0

	eng := New(capability.Set{}, WithStateListener(func(_ string, state workflow.NodeState) {
		mu.Lock()
		defer mu.Unlock()
		switch state {
		case workflow.NodeRunning:
			running++
			if running > peak {
				peak = running
			}
		case workflow.NodeSuccess, workflow.NodeError:
			running--
		}
	}))

	nodes := make([]workflow.Node, parallel)
	for i := range nodes {
		nodes[i] = inputNode(fmt.Sprintf("in-%d", i), "x")
	}

	if _, err := eng.Execute(context.Background(), &workflow.Workflow{Nodes: nodes}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak < 1 {
		t.Errorf("expected at least one running node observed, got %d", peak)
	}
}
