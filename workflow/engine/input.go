package engine

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/yond5413/agent-workflow-builder/workflow"
)

// MaxExtractedTextLength caps the text handed to downstream consumers when
// extraction falls back to serializing an arbitrary input value.
const MaxExtractedTextLength = 50000

// truncationMarker is appended to text cut at MaxExtractedTextLength.
const truncationMarker = "... [truncated]"

var inputPlaceholder = regexp.MustCompile(`\{\{input\}\}`)

// resolveInput derives a node's input from its incoming edges. No edges
// yields nil; one edge yields the upstream node's output directly; several
// edges yield a map keyed by upstream node ID, so multi-input nodes can tell
// their sources apart. Sources without a recorded output appear as nil
// entries.
func (r *run) resolveInput(nodeID string) any {
	var sources []string
	for _, edge := range r.workflow.Edges {
		if edge.Target == nodeID {
			sources = append(sources, edge.Source)
		}
	}

	switch len(sources) {
	case 0:
		return nil
	case 1:
		output, _ := r.output(sources[0])
		return output
	default:
		inputs := make(map[string]any, len(sources))
		for _, source := range sources {
			output, _ := r.output(source)
			inputs[source] = output
		}
		return inputs
	}
}

// interpolate replaces every {{input}} placeholder in text with a string
// rendering of the input: strings pass through, a "text" field is preferred,
// then the JSON of a "data" field, then the JSON of the whole value.
func interpolate(text string, input any) string {
	if input == nil {
		return text
	}
	return inputPlaceholder.ReplaceAllStringFunc(text, func(string) string {
		switch v := input.(type) {
		case string:
			return v
		case map[string]any:
			if text, ok := v["text"].(string); ok && text != "" {
				return text
			}
			if data, ok := v["data"]; ok {
				return jsonString(data)
			}
		}
		return jsonString(input)
	})
}

// extractText pulls a usable text payload out of an arbitrary upstream
// output. Simple shapes are tried first: a bare string, then the common
// "text", "content", and "markdown" fields, then the same fields nested
// under "data". Anything else is JSON-serialized, truncated at
// MaxExtractedTextLength with a warning log when it exceeds the cap.
func (r *run) extractText(input any) string {
	if input == nil {
		return ""
	}
	if s, ok := input.(string); ok {
		return s
	}

	if m, ok := input.(map[string]any); ok {
		for _, field := range []string{"text", "content", "markdown"} {
			if s, ok := m[field].(string); ok && s != "" {
				return s
			}
		}
		if data, ok := m["data"]; ok {
			if s, ok := data.(string); ok {
				return s
			}
			if nested, ok := data.(map[string]any); ok {
				if s, ok := nested["text"].(string); ok && s != "" {
					return s
				}
				if s, ok := nested["content"].(string); ok && s != "" {
					return s
				}
			}
			return jsonString(data)
		}
	}

	serialized := jsonString(input)
	if len(serialized) > MaxExtractedTextLength {
		r.log(workflow.LogWarning, "", fmt.Sprintf(
			"Input text truncated from %d to %d characters",
			len(serialized), MaxExtractedTextLength))
		return serialized[:MaxExtractedTextLength] + truncationMarker
	}
	return serialized
}

// jsonString renders a value as compact JSON, falling back to fmt when the
// value is not serializable.
func jsonString(value any) string {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return strings.TrimSpace(string(b))
}
