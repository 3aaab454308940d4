// Package engine executes workflows as directed acyclic graphs.
//
// Execution proceeds level by level: nodes are grouped by depth (the length
// of the longest path from a root) and every node within a group runs in its
// own goroutine, synchronized by a barrier before the next group starts. When
// any node in a group fails, the run aborts after the barrier and downstream
// groups never start. Every result gathered up to that point is still
// returned, along with the complete ordered execution log.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yond5413/agent-workflow-builder/capability"
	"github.com/yond5413/agent-workflow-builder/workflow"
	"github.com/yond5413/agent-workflow-builder/workflow/analyze"
)

// StateListener observes node lifecycle transitions during a run. Listeners
// are invoked synchronously from executor goroutines and must be fast and
// safe for concurrent use.
type StateListener func(nodeID string, state workflow.NodeState)

// LogListener observes log entries as they are emitted, in order.
type LogListener func(entry workflow.Log)

// Engine executes workflows against a set of configured capabilities.
// An Engine is immutable after construction and safe for concurrent runs.
type Engine struct {
	caps    capability.Set
	logger  *slog.Logger
	onState StateListener
	onLog   LogListener
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger used for operational logging.
// It defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithStateListener registers a callback for node state transitions.
func WithStateListener(fn StateListener) Option {
	return func(e *Engine) { e.onState = fn }
}

// WithLogListener registers a callback for execution log entries.
func WithLogListener(fn LogListener) Option {
	return func(e *Engine) { e.onLog = fn }
}

// New creates an Engine backed by the given capabilities. Capabilities may be
// left nil; nodes that need a missing capability fail individually at
// execution time with capability.ErrNotConfigured.
func New(caps capability.Set, opts ...Option) *Engine {
	e := &Engine{
		caps:   caps,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the workflow to completion or until it aborts.
//
// The returned RunResult is never nil: it carries every node result gathered
// before the run finished, whether the run succeeded or not, plus the full
// execution log. The error is non-nil only when the run aborted, wrapping
// ErrNodesFailed when a depth group had failures or ErrCancelled when the
// context was cancelled between groups.
//
// Execute does not mutate the workflow's structure, but it records each
// successful node's output in the node's Data.Output field.
func (e *Engine) Execute(ctx context.Context, w *workflow.Workflow) (*workflow.RunResult, error) {
	r := &run{
		engine:   e,
		id:       uuid.NewString(),
		workflow: w,
		outputs:  make(map[string]any),
		results:  make(map[string]*workflow.NodeResult),
	}
	return r.execute(ctx)
}

// run holds the mutable state of one Execute invocation. Log and result
// bookkeeping is guarded by mu; node goroutines within a group append
// concurrently.
type run struct {
	engine   *Engine
	id       string
	workflow *workflow.Workflow

	mu      sync.Mutex
	logSeq  int
	logs    []workflow.Log
	outputs map[string]any
	results map[string]*workflow.NodeResult
}

func (r *run) execute(ctx context.Context) (*workflow.RunResult, error) {
	r.engine.logger.Info("starting workflow execution",
		"run_id", r.id,
		"workflow_id", r.workflow.ID,
		"nodes", len(r.workflow.Nodes))
	r.log(workflow.LogInfo, "", "Starting workflow execution")

	groups := analyze.DepthGroups(r.workflow.Nodes, r.workflow.Edges)
	r.log(workflow.LogInfo, "", fmt.Sprintf("Workflow has %d execution levels", len(groups)))

	for i, group := range groups {
		if ctx.Err() != nil {
			r.log(workflow.LogWarning, "", "Workflow execution cancelled")
			return r.finish(false, ErrCancelled.Error()), ErrCancelled
		}

		ids := make([]string, len(group))
		for j, node := range group {
			ids[j] = node.ID
		}
		r.log(workflow.LogInfo, "", fmt.Sprintf("Executing level %d with %d node(s): %s",
			i+1, len(group), strings.Join(ids, ", ")))

		var wg sync.WaitGroup
		for _, node := range group {
			wg.Add(1)
			go func(node workflow.Node) {
				defer wg.Done()
				r.executeNode(ctx, node)
			}(node)
		}
		wg.Wait()

		var failed []string
		for _, node := range group {
			if result := r.result(node.ID); result != nil && !result.Success {
				failed = append(failed, node.ID)
			}
		}
		if len(failed) > 0 {
			r.log(workflow.LogError, "", fmt.Sprintf("%d node(s) failed at level %d", len(failed), i+1))
			message := fmt.Sprintf("nodes failed: %s", strings.Join(failed, ", "))
			r.log(workflow.LogError, "", "Workflow execution failed: "+message)
			return r.finish(false, message), fmt.Errorf("%w: %s", ErrNodesFailed, strings.Join(failed, ", "))
		}
	}

	r.log(workflow.LogSuccess, "", "Workflow execution completed successfully")
	return r.finish(true, ""), nil
}

// executeNode runs one node through its full lifecycle, recording the state
// transitions, log entries, and the final NodeResult.
func (r *run) executeNode(ctx context.Context, node workflow.Node) {
	start := time.Now()

	r.setState(node.ID, workflow.NodeRunning)
	r.log(workflow.LogInfo, node.ID, fmt.Sprintf("Executing node: %s (%s)", node.ID, node.Type))

	input := r.resolveInput(node.ID)
	output, err := r.dispatch(ctx, node, input)
	elapsed := time.Since(start)

	if err != nil {
		r.setState(node.ID, workflow.NodeError)
		r.log(workflow.LogError, node.ID, fmt.Sprintf("Node %s failed: %v", node.ID, err))
		r.engine.logger.Error("node execution failed",
			"run_id", r.id, "node_id", node.ID, "node_type", node.Type, "error", err)
		r.record(&workflow.NodeResult{
			NodeID:   node.ID,
			Success:  false,
			Error:    err.Error(),
			Duration: elapsed,
		})
		return
	}

	r.setState(node.ID, workflow.NodeSuccess)
	r.log(workflow.LogSuccess, node.ID, fmt.Sprintf("Node %s completed in %s",
		node.ID, elapsed.Round(time.Millisecond)))
	r.record(&workflow.NodeResult{
		NodeID:   node.ID,
		Success:  true,
		Output:   output,
		Duration: elapsed,
	})

	if n := r.workflow.NodeByID(node.ID); n != nil {
		n.Data.Output = output
	}
}

// record stores a node result and, on success, publishes the output for
// downstream input resolution.
func (r *run) record(result *workflow.NodeResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result.NodeID] = result
	if result.Success {
		r.outputs[result.NodeID] = result.Output
	}
}

func (r *run) result(nodeID string) *workflow.NodeResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.results[nodeID]
}

func (r *run) output(nodeID string) (any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	output, ok := r.outputs[nodeID]
	return output, ok
}

// finish snapshots the run into its aggregate result.
func (r *run) finish(success bool, errMessage string) *workflow.RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &workflow.RunResult{
		Success: success,
		Results: r.results,
		Logs:    r.logs,
		Error:   errMessage,
	}
}

func (r *run) setState(nodeID string, state workflow.NodeState) {
	if r.engine.onState != nil {
		r.engine.onState(nodeID, state)
	}
}

// log appends an entry to the run's execution log. IDs combine the run ID
// with a per-run counter, so they are unique within the run and ordered.
func (r *run) log(level workflow.LogLevel, nodeID, message string) {
	r.mu.Lock()
	entry := workflow.Log{
		ID:        fmt.Sprintf("log-%s-%d", r.id, r.logSeq),
		Timestamp: time.Now(),
		NodeID:    nodeID,
		Level:     level,
		Message:   message,
	}
	r.logSeq++
	r.logs = append(r.logs, entry)
	r.mu.Unlock()

	if r.engine.onLog != nil {
		r.engine.onLog(entry)
	}
}
