package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Export serializes the workflow to an indented JSON document. The output is
// the canonical persisted representation: parsing it back with [Parse] yields
// an equivalent graph (same node IDs, types, configuration, and edges).
func (w *Workflow) Export() ([]byte, error) {
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling workflow %q: %w", w.ID, err)
	}
	return data, nil
}

// Parse decodes a JSON workflow document and checks its basic structural
// sanity via [ValidateImported]. It does not run the full validator; callers
// that intend to execute the workflow should validate it first.
func Parse(data []byte) (*Workflow, error) {
	var w Workflow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parsing workflow JSON: %w", err)
	}
	if err := ValidateImported(&w); err != nil {
		return nil, err
	}
	return &w, nil
}

// ValidateImported checks that an untrusted, freshly decoded workflow
// document has the minimal structure required to be handled at all: node and
// edge IDs present, node types set, unique node IDs. Deeper semantic checks
// (cycles, per-type configuration) belong to workflow/validate.
func ValidateImported(w *Workflow) error {
	if w == nil {
		return fmt.Errorf("workflow document is empty")
	}

	seen := make(map[string]bool, len(w.Nodes))
	for i, node := range w.Nodes {
		if node.ID == "" {
			return fmt.Errorf("node at index %d is missing an id", i)
		}
		if node.Type == "" {
			return fmt.Errorf("node %q is missing a type", node.ID)
		}
		if seen[node.ID] {
			return fmt.Errorf("duplicate node id %q", node.ID)
		}
		seen[node.ID] = true
	}

	for i, edge := range w.Edges {
		if edge.ID == "" {
			return fmt.Errorf("edge at index %d is missing an id", i)
		}
		if edge.Source == "" || edge.Target == "" {
			return fmt.Errorf("edge %q is missing an endpoint (source=%q, target=%q)", edge.ID, edge.Source, edge.Target)
		}
	}

	return nil
}

// Load reads a workflow definition from a file. The format is chosen by
// extension: .yaml/.yml files are decoded as YAML, anything else as JSON.
func Load(path string) (*Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var w Workflow
		if err := yaml.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("parsing workflow file %s: %w", path, err)
		}
		if err := ValidateImported(&w); err != nil {
			return nil, fmt.Errorf("workflow file %s: %w", path, err)
		}
		return &w, nil
	}

	w, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("workflow file %s: %w", path, err)
	}
	return w, nil
}

// Save writes the workflow to path as indented JSON.
func Save(w *Workflow, path string) error {
	data, err := w.Export()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing workflow file %s: %w", path, err)
	}
	return nil
}
