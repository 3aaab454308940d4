// Package elevenlabs implements the speech-synthesis capability against the
// ElevenLabs text-to-speech API.
package elevenlabs

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/yond5413/agent-workflow-builder/capability"
	"github.com/yond5413/agent-workflow-builder/internal/utils"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"

	// DefaultVoiceID is the voice used when the request leaves it unset.
	DefaultVoiceID = "JBFqnCBsd6RMkjVDRZzb"
	// DefaultModelID selects the multilingual synthesis model.
	DefaultModelID = "eleven_multilingual_v2"
)

// Synthesizer calls the ElevenLabs API. It implements [capability.Speech].
type Synthesizer struct {
	apiKey  string
	baseURL string
	modelID string
	client  *http.Client
}

// New creates a Synthesizer configured from the ELEVENLABS_API_KEY
// environment variable.
func New() *Synthesizer {
	baseURL := os.Getenv("ELEVENLABS_API_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Synthesizer{
		apiKey:  os.Getenv("ELEVENLABS_API_KEY"),
		baseURL: baseURL,
		modelID: DefaultModelID,
		client:  &http.Client{},
	}
}

// WithAPIKey sets the API key.
func (s *Synthesizer) WithAPIKey(apiKey string) *Synthesizer {
	s.apiKey = apiKey
	return s
}

// WithBaseURL sets the API base URL.
func (s *Synthesizer) WithBaseURL(baseURL string) *Synthesizer {
	s.baseURL = baseURL
	return s
}

// WithModelID sets the synthesis model.
func (s *Synthesizer) WithModelID(modelID string) *Synthesizer {
	s.modelID = modelID
	return s
}

// WithHTTPClient sets a custom HTTP client.
func (s *Synthesizer) WithHTTPClient(client *http.Client) *Synthesizer {
	s.client = client
	return s
}

type speechRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize implements [capability.Speech]. The response is raw MP3 audio.
func (s *Synthesizer) Synthesize(ctx context.Context, req capability.SpeechRequest) (*capability.SpeechResult, error) {
	if s.apiKey == "" {
		return nil, fmt.Errorf("elevenlabs: %w", capability.ErrNotConfigured)
	}
	if req.Text == "" {
		return nil, fmt.Errorf("text is required")
	}

	voiceID := req.VoiceID
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}

	endpoint := s.baseURL + "/text-to-speech/" + url.PathEscape(voiceID)
	headers := map[string]string{"xi-api-key": s.apiKey}

	audio, contentType, err := utils.PostBinary(ctx, s.client, endpoint, headers, speechRequest{
		Text:    req.Text,
		ModelID: s.modelID,
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs synthesis: %w", err)
	}

	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return &capability.SpeechResult{
		Audio:    audio,
		MIMEType: contentType,
	}, nil
}
