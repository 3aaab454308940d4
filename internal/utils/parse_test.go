package utils

import "testing"

func TestParseJSONValue(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, value any)
		wantErr bool
	}{
		{
			name:    "valid object",
			content: `{"name": "Ada"}`,
			check: func(t *testing.T, value any) {
				m := value.(map[string]any)
				if m["name"] != "Ada" {
					t.Errorf("unexpected value: %v", m)
				}
			},
		},
		{
			name:    "valid array",
			content: `[1, 2, 3]`,
			check: func(t *testing.T, value any) {
				if len(value.([]any)) != 3 {
					t.Errorf("unexpected value: %v", value)
				}
			},
		},
		{
			name:    "single quotes repaired",
			content: `{'name': 'Ada'}`,
			check: func(t *testing.T, value any) {
				if value.(map[string]any)["name"] != "Ada" {
					t.Errorf("unexpected value: %v", value)
				}
			},
		},
		{
			name:    "trailing comma repaired",
			content: `{"items": [1, 2,],}`,
			check: func(t *testing.T, value any) {
				if len(value.(map[string]any)["items"].([]any)) != 2 {
					t.Errorf("unexpected value: %v", value)
				}
			},
		},
		{
			name:    "code fence repaired",
			content: "```json\n{\"ok\": true}\n```",
			check: func(t *testing.T, value any) {
				if value.(map[string]any)["ok"] != true {
					t.Errorf("unexpected value: %v", value)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := ParseJSONValue(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %v", value)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, value)
		})
	}
}
