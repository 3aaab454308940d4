package engine

import "errors"

var (
	// ErrCancelled is returned when a run stops because the caller's context
	// was cancelled before every node finished.
	ErrCancelled = errors.New("workflow execution cancelled")

	// ErrNodesFailed is returned when one or more nodes in a depth group
	// failed, aborting the remainder of the run.
	ErrNodesFailed = errors.New("workflow nodes failed")

	// ErrUnknownNodeType is returned when a node carries a type the engine
	// has no executor for.
	ErrUnknownNodeType = errors.New("unknown node type")
)
