// Package workflow defines the data model for node-based workflows: a
// [Workflow] is a directed acyclic graph of typed [Node] computation steps
// connected by data-flow [Edge]s, together with the result, log, and
// validation types produced when a workflow is checked and executed.
//
// The package holds no execution behavior. Structural analysis lives in
// workflow/analyze, validation in workflow/validate, and execution in
// workflow/engine.
//
// Workflows serialize to a single JSON document and round-trip losslessly:
// [Parse] followed by [Workflow.Export] reproduces an equivalent graph. See
// [Load] and [Save] for file-based persistence (JSON and YAML are both
// accepted on load).
package workflow
