package engine

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/yond5413/agent-workflow-builder/capability"
	"github.com/yond5413/agent-workflow-builder/workflow"
)

type fakeSpeech struct {
	mu       sync.Mutex
	requests []capability.SpeechRequest
	mimeType string
}

var _ capability.Speech = (*fakeSpeech)(nil)

func (f *fakeSpeech) Synthesize(_ context.Context, req capability.SpeechRequest) (*capability.SpeechResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return &capability.SpeechResult{Audio: []byte("mp3-bytes"), MIMEType: f.mimeType}, nil
}

type fakeImageGen struct{}

var _ capability.ImageGen = (*fakeImageGen)(nil)

func (f *fakeImageGen) Generate(_ context.Context, req capability.ImageRequest) (*capability.ImageResult, error) {
	return &capability.ImageResult{Image: []byte("png-of-" + req.Prompt), MIMEType: "image/png"}, nil
}

type fakeMedia struct {
	mu       sync.Mutex
	requests []capability.EncodeRequest
}

var _ capability.MediaEncoder = (*fakeMedia)(nil)

func (f *fakeMedia) Encode(_ context.Context, req capability.EncodeRequest) (*capability.EncodeResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return &capability.EncodeResult{Video: []byte("mp4-bytes"), MIMEType: "video/mp4"}, nil
}

func intPtr(n int) *int { return &n }

// decodeImage decodes a base64 image data URL back to its payload text.
func decodeImage(t *testing.T, dataURL string) string {
	t.Helper()
	_, payload, ok := strings.Cut(dataURL, ";base64,")
	if !ok {
		t.Fatalf("not a data URL: %q", dataURL)
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		t.Fatalf("invalid base64 payload: %v", err)
	}
	return string(decoded)
}

func TestTextToSpeech(t *testing.T) {
	speech := &fakeSpeech{}
	w := &workflow.Workflow{
		Nodes: []workflow.Node{
			inputNode("in", "good morning"),
			{ID: "tts", Type: workflow.NodeTypeTextToSpeech, Data: workflow.NodeData{Text: "Say: {{input}}"}},
		},
		Edges: []workflow.Edge{edgeBetween("in", "tts")},
	}

	result, err := New(capability.Set{Speech: speech}).Execute(context.Background(), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(speech.requests) != 1 {
		t.Fatalf("expected one synthesis call, got %d", len(speech.requests))
	}
	req := speech.requests[0]
	if req.Text != `Say: "good morning"` {
		t.Errorf("unexpected interpolated text: %q", req.Text)
	}
	if req.VoiceID != DefaultVoiceID {
		t.Errorf("default voice not applied, got %q", req.VoiceID)
	}

	output := result.Results["tts"].Output.(map[string]any)
	audio, _ := output["audioBase64"].(string)
	// The fake reports no MIME type, so the audio/mpeg fallback applies.
	if !strings.HasPrefix(audio, "data:audio/mpeg;base64,") {
		t.Errorf("unexpected audio data URL: %q", audio)
	}
	if output["text"] != req.Text {
		t.Errorf("output must echo the synthesized text, got %v", output["text"])
	}
}

func TestTextToSpeechRequiresText(t *testing.T) {
	w := &workflow.Workflow{
		Nodes: []workflow.Node{{ID: "tts", Type: workflow.NodeTypeTextToSpeech}},
	}

	result, err := New(capability.Set{Speech: &fakeSpeech{}}).Execute(context.Background(), w)
	if !errors.Is(err, ErrNodesFailed) {
		t.Fatalf("expected ErrNodesFailed, got %v", err)
	}
	if r := result.Results["tts"]; r == nil || !strings.Contains(r.Error, "text is required") {
		t.Errorf("expected missing-text error, got %+v", r)
	}
}

func TestImageToVideoCollectsKeyedSources(t *testing.T) {
	media := &fakeMedia{}
	caps := capability.Set{
		ImageGen: &fakeImageGen{},
		Speech:   &fakeSpeech{mimeType: "audio/mpeg"},
		Media:    media,
	}

	// Two image nodes and one speech node fan into the video node; the
	// node-ID keys carry the type markers the gathering heuristic looks for.
	prompt1, prompt2 := "a sunrise", "a sunset"
	w := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: "text_to_image-a", Type: workflow.NodeTypeTextToImage, Data: workflow.NodeData{Prompt: &prompt1}},
			{ID: "text_to_image-b", Type: workflow.NodeTypeTextToImage, Data: workflow.NodeData{Prompt: &prompt2}},
			{ID: "text_to_speech-1", Type: workflow.NodeTypeTextToSpeech, Data: workflow.NodeData{Text: "narration"}},
			{ID: "video", Type: workflow.NodeTypeImageToVideo, Data: workflow.NodeData{Duration: intPtr(4)}},
		},
		Edges: []workflow.Edge{
			edgeBetween("text_to_image-a", "video"),
			edgeBetween("text_to_image-b", "video"),
			edgeBetween("text_to_speech-1", "video"),
		},
	}

	result, err := New(caps).Execute(context.Background(), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(media.requests) != 1 {
		t.Fatalf("expected one encode call, got %d", len(media.requests))
	}
	req := media.requests[0]
	if len(req.Images) != 2 {
		t.Fatalf("expected both images gathered, got %d", len(req.Images))
	}
	// Sources are visited in sorted key order, so image-a precedes image-b.
	if !strings.Contains(decodeImage(t, req.Images[0]), "a sunrise") ||
		!strings.Contains(decodeImage(t, req.Images[1]), "a sunset") {
		t.Errorf("images out of order: %v", req.Images)
	}
	if req.Audio == "" || !strings.HasPrefix(req.Audio, "data:audio/mpeg;base64,") {
		t.Errorf("audio track lost: %q", req.Audio)
	}
	if req.SecondsPerImage != 4 {
		t.Errorf("configured duration not applied, got %d", req.SecondsPerImage)
	}

	output := result.Results["video"].Output.(map[string]any)
	if output["imageCount"] != 2 || output["hasAudio"] != true {
		t.Errorf("unexpected video output: %v", output)
	}
	video, _ := output["videoBase64"].(string)
	if !strings.HasPrefix(video, "data:video/mp4;base64,") {
		t.Errorf("unexpected video data URL: %q", video)
	}
}

func TestImageToVideoSingleImageSource(t *testing.T) {
	media := &fakeMedia{}
	prompt := "a lighthouse"
	w := &workflow.Workflow{
		Nodes: []workflow.Node{
			{ID: "img", Type: workflow.NodeTypeTextToImage, Data: workflow.NodeData{Prompt: &prompt}},
			{ID: "video", Type: workflow.NodeTypeImageToVideo},
		},
		Edges: []workflow.Edge{edgeBetween("img", "video")},
	}

	result, err := New(capability.Set{ImageGen: &fakeImageGen{}, Media: media}).Execute(context.Background(), w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := media.requests[0]
	if len(req.Images) != 1 || !strings.Contains(decodeImage(t, req.Images[0]), "a lighthouse") {
		t.Errorf("single upstream image not gathered: %v", req.Images)
	}
	if req.Audio != "" {
		t.Errorf("unexpected audio: %q", req.Audio)
	}
	if req.SecondsPerImage != DefaultSecondsPerImage {
		t.Errorf("default duration not applied, got %d", req.SecondsPerImage)
	}

	output := result.Results["video"].Output.(map[string]any)
	if output["imageCount"] != 1 || output["hasAudio"] != false {
		t.Errorf("unexpected video output: %v", output)
	}
}

func TestImageToVideoWithoutImages(t *testing.T) {
	w := &workflow.Workflow{
		Nodes: []workflow.Node{{ID: "video", Type: workflow.NodeTypeImageToVideo}},
	}

	result, err := New(capability.Set{Media: &fakeMedia{}}).Execute(context.Background(), w)
	if !errors.Is(err, ErrNodesFailed) {
		t.Fatalf("expected ErrNodesFailed, got %v", err)
	}
	if r := result.Results["video"]; r == nil || !strings.Contains(r.Error, "at least one image is required") {
		t.Errorf("expected missing-image error, got %+v", r)
	}
}

func TestGatherMedia(t *testing.T) {
	tests := []struct {
		name       string
		images     []string
		audio      string
		input      any
		wantImages []string
		wantAudio  string
	}{
		{
			name:       "nil input keeps configured media",
			images:     []string{"cfg"},
			audio:      "cfg-audio",
			input:      nil,
			wantImages: []string{"cfg"},
			wantAudio:  "cfg-audio",
		},
		{
			name:       "single object image replaces configured list",
			images:     []string{"cfg"},
			input:      map[string]any{"imageBase64": "up"},
			wantImages: []string{"up"},
		},
		{
			name:       "single object images list",
			input:      map[string]any{"images": []any{"a", "b"}},
			wantImages: []string{"a", "b"},
		},
		{
			name:       "single object keeps configured audio",
			audio:      "cfg-audio",
			input:      map[string]any{"imageBase64": "up", "audioBase64": "up-audio"},
			wantImages: []string{"up"},
			wantAudio:  "cfg-audio",
		},
		{
			name: "array of strings and objects",
			input: []any{
				"img-1",
				map[string]any{"imageBase64": "img-2"},
				map[string]any{"data": "img-3"},
			},
			wantImages: []string{"img-1", "img-2", "img-3"},
		},
		{
			name: "keyed sources visited in sorted order",
			input: map[string]any{
				"text_to_image-b":  map[string]any{"imageBase64": "second"},
				"text_to_image-a":  map[string]any{"imageBase64": "first"},
				"text_to_speech-1": map[string]any{"audioBase64": "narration"},
			},
			wantImages: []string{"first", "second"},
			wantAudio:  "narration",
		},
		{
			name: "keyed source with data field",
			input: map[string]any{
				"text-to-image-1": map[string]any{"data": "payload"},
			},
			wantImages: []string{"payload"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			images, audio := gatherMedia(tt.images, tt.audio, tt.input)
			if len(images) != len(tt.wantImages) {
				t.Fatalf("got images %v, want %v", images, tt.wantImages)
			}
			for i := range images {
				if images[i] != tt.wantImages[i] {
					t.Errorf("image %d: got %q, want %q", i, images[i], tt.wantImages[i])
				}
			}
			if audio != tt.wantAudio {
				t.Errorf("got audio %q, want %q", audio, tt.wantAudio)
			}
		})
	}
}
