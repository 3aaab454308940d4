package utils

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

// ParseJSONValue decodes content into a generic JSON value. Because language
// models frequently emit near-JSON (single quotes, trailing commas, code
// fences), a failed decode triggers an automatic repair pass via jsonrepair
// before the final error is reported.
func ParseJSONValue(content string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(content), &value); err == nil {
		return value, nil
	}

	repaired, repairErr := jsonrepair.JSONRepair(content)
	if repairErr != nil {
		return nil, fmt.Errorf("content is not valid JSON and could not be repaired: %w", repairErr)
	}
	if err := json.Unmarshal([]byte(repaired), &value); err != nil {
		return nil, fmt.Errorf("repaired JSON still fails to parse: %w", err)
	}
	return value, nil
}
