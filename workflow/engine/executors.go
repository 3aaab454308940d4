package engine

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yond5413/agent-workflow-builder/capability"
	"github.com/yond5413/agent-workflow-builder/export"
	"github.com/yond5413/agent-workflow-builder/workflow"
)

// Per-type defaults applied when a node leaves the field unset.
const (
	DefaultLLMModel        = "openai/gpt-3.5-turbo"
	DefaultTemperature     = 0.7
	DefaultMaxTokens       = 1000
	DefaultScrapeMaxLength = 5000
	DefaultEmbeddingModel  = "embed-english-v3.0"
	DefaultEmbedInputType  = "search_document"
	DefaultTopK            = 5
	DefaultScoreThreshold  = 0.7
	DefaultVoiceID         = "JBFqnCBsd6RMkjVDRZzb"
	DefaultSecondsPerImage = 3
)

// dispatch routes a node to its type-specific executor. The switch is
// exhaustive over workflow.NodeTypes; an unlisted type is a workflow bug and
// fails with ErrUnknownNodeType.
func (r *run) dispatch(ctx context.Context, node workflow.Node, input any) (any, error) {
	switch node.Type {
	case workflow.NodeTypeInput:
		return r.executeInput(node)
	case workflow.NodeTypeLLMTask:
		return r.executeLLMTask(ctx, node, input)
	case workflow.NodeTypeWebScraper:
		return r.executeWebScraper(ctx, node)
	case workflow.NodeTypeStructuredOutput:
		return r.executeStructuredOutput(ctx, node, input)
	case workflow.NodeTypeEmbeddingGenerator:
		return r.executeEmbeddingGenerator(ctx, node, input)
	case workflow.NodeTypeSimilaritySearch:
		return r.executeSimilaritySearch(ctx, node, input)
	case workflow.NodeTypeTextToSpeech:
		return r.executeTextToSpeech(ctx, node, input)
	case workflow.NodeTypeTextToImage:
		return r.executeTextToImage(ctx, node, input)
	case workflow.NodeTypeImageToVideo:
		return r.executeImageToVideo(ctx, node, input)
	case workflow.NodeTypeTextExport:
		return r.executeTextExport(node, input)
	case workflow.NodeTypeOutput:
		return input, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, node.Type)
	}
}

// executeInput wraps the node's configured payload. A payload that parses as
// JSON is passed through as the parsed value; anything else stays a string.
func (r *run) executeInput(node workflow.Node) (any, error) {
	payload := node.Data.Payload
	if payload == "" {
		if s, ok := node.Data.Output.(string); ok {
			payload = s
		}
	}
	if payload == "" {
		return map[string]any{"data": ""}, nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(payload), &parsed); err == nil {
		return map[string]any{"data": parsed}, nil
	}
	return map[string]any{"data": payload}, nil
}

func (r *run) executeLLMTask(ctx context.Context, node workflow.Node, input any) (any, error) {
	if r.engine.caps.Chat == nil {
		return nil, fmt.Errorf("chat: %w", capability.ErrNotConfigured)
	}

	prompt := ""
	if node.Data.Prompt != nil {
		prompt = *node.Data.Prompt
	}
	prompt = interpolate(prompt, input)

	req := capability.ChatRequest{
		Prompt:      prompt,
		Model:       DefaultLLMModel,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	if node.Data.Model != "" {
		req.Model = node.Data.Model
	}
	if node.Data.Temperature != nil {
		req.Temperature = *node.Data.Temperature
	}
	if node.Data.MaxTokens != nil {
		req.MaxTokens = *node.Data.MaxTokens
	}

	result, err := r.engine.caps.Chat.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llm task: %w", err)
	}

	output := map[string]any{
		"content": result.Content,
		"model":   result.Model,
	}
	if result.Usage != nil {
		output["usage"] = map[string]any{
			"prompt_tokens":     result.Usage.PromptTokens,
			"completion_tokens": result.Usage.CompletionTokens,
			"total_tokens":      result.Usage.TotalTokens,
		}
	}
	return output, nil
}

func (r *run) executeWebScraper(ctx context.Context, node workflow.Node) (any, error) {
	if r.engine.caps.Scraper == nil {
		return nil, fmt.Errorf("scraper: %w", capability.ErrNotConfigured)
	}
	if node.Data.URL == "" {
		return nil, fmt.Errorf("url is required for web scraper")
	}

	maxLength := DefaultScrapeMaxLength
	if node.Data.MaxLength != nil {
		maxLength = *node.Data.MaxLength
	}

	result, err := r.engine.caps.Scraper.Scrape(ctx, capability.ScrapeRequest{
		URL:       node.Data.URL,
		MaxLength: maxLength,
	})
	if err != nil {
		return nil, fmt.Errorf("web scraper: %w", err)
	}

	return map[string]any{
		"text":     result.Text,
		"markdown": result.Markdown,
		"html":     result.HTML,
		"metadata": result.Metadata,
		"url":      result.URL,
		"length":   result.Length,
	}, nil
}

func (r *run) executeStructuredOutput(ctx context.Context, node workflow.Node, input any) (any, error) {
	if r.engine.caps.Extractor == nil {
		return nil, fmt.Errorf("extractor: %w", capability.ErrNotConfigured)
	}
	if node.Data.Schema == "" {
		return nil, fmt.Errorf("schema is required for structured output")
	}

	var schema any
	if err := json.Unmarshal([]byte(node.Data.Schema), &schema); err != nil {
		return nil, fmt.Errorf("invalid JSON schema: %w", err)
	}

	model := DefaultLLMModel
	if node.Data.Model != "" {
		model = node.Data.Model
	}

	result, err := r.engine.caps.Extractor.Extract(ctx, capability.ExtractRequest{
		Text:   r.extractText(input),
		Schema: json.RawMessage(node.Data.Schema),
		Model:  model,
	})
	if err != nil {
		return nil, fmt.Errorf("structured output: %w", err)
	}

	var structured any
	if err := json.Unmarshal(result.Data, &structured); err != nil {
		return nil, fmt.Errorf("structured output produced invalid JSON: %w", err)
	}

	return map[string]any{
		"structured_data": structured,
		"schema":          schema,
	}, nil
}

func (r *run) executeEmbeddingGenerator(ctx context.Context, node workflow.Node, input any) (any, error) {
	if r.engine.caps.Embedder == nil {
		return nil, fmt.Errorf("embedder: %w", capability.ErrNotConfigured)
	}

	text := node.Data.Text
	if text == "" {
		text = r.extractText(input)
	}
	if text == "" {
		return nil, fmt.Errorf("no text available for embedding generation")
	}

	model := DefaultEmbeddingModel
	if node.Data.Model != "" {
		model = node.Data.Model
	}
	inputType := DefaultEmbedInputType
	if node.Data.InputType != "" {
		inputType = node.Data.InputType
	}

	result, err := r.engine.caps.Embedder.Embed(ctx, capability.EmbedRequest{
		Texts:     []string{text},
		Model:     model,
		InputType: inputType,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding generation: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("embedding generation returned no vectors")
	}

	return map[string]any{
		"embeddings": result.Embeddings,
		"model":      result.Model,
		"inputType":  result.InputType,
		"count":      len(result.Embeddings),
		// First vector duplicated for convenient downstream access.
		"vector": result.Embeddings[0],
	}, nil
}

func (r *run) executeSimilaritySearch(ctx context.Context, node workflow.Node, input any) (any, error) {
	if r.engine.caps.VectorIndex == nil {
		return nil, fmt.Errorf("vector index: %w", capability.ErrNotConfigured)
	}
	if node.Data.CollectionName == "" {
		return nil, fmt.Errorf("collection name is required for similarity search")
	}

	topK := DefaultTopK
	if node.Data.TopK != nil {
		topK = *node.Data.TopK
	}
	threshold := DefaultScoreThreshold
	if node.Data.ScoreThreshold != nil {
		threshold = *node.Data.ScoreThreshold
	}

	// Prefer an explicit vector from the input over a text query.
	vector := floatVector(input)
	if vector == nil {
		if m, ok := input.(map[string]any); ok {
			vector = floatVector(m["vector"])
			if vector == nil {
				if embeddings, ok := m["embeddings"].([]any); ok && len(embeddings) > 0 {
					vector = floatVector(embeddings[0])
				} else if embeddings, ok := m["embeddings"].([][]float64); ok && len(embeddings) > 0 {
					vector = embeddings[0]
				}
			}
		}
	}

	queryText := node.Data.QueryText
	if vector == nil && queryText == "" {
		queryText = r.extractText(input)
		if queryText == "" {
			return nil, fmt.Errorf("no vector or query text available for similarity search")
		}
	}

	hits, err := r.engine.caps.VectorIndex.Search(ctx, capability.SearchRequest{
		CollectionName: node.Data.CollectionName,
		Vector:         vector,
		QueryText:      queryText,
		TopK:           topK,
		ScoreThreshold: threshold,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}

	return map[string]any{
		"results":        hits,
		"collectionName": node.Data.CollectionName,
		"topK":           topK,
		"scoreThreshold": threshold,
		"count":          len(hits),
	}, nil
}

func (r *run) executeTextToSpeech(ctx context.Context, node workflow.Node, input any) (any, error) {
	if r.engine.caps.Speech == nil {
		return nil, fmt.Errorf("speech: %w", capability.ErrNotConfigured)
	}

	text := interpolate(node.Data.Text, input)
	if text == "" {
		return nil, fmt.Errorf("text is required for text-to-speech")
	}

	voiceID := node.Data.VoiceID
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}

	result, err := r.engine.caps.Speech.Synthesize(ctx, capability.SpeechRequest{
		Text:    text,
		VoiceID: voiceID,
	})
	if err != nil {
		return nil, fmt.Errorf("text-to-speech: %w", err)
	}

	return map[string]any{
		"audioBase64": dataURL(result.MIMEType, "audio/mpeg", result.Audio),
		"text":        text,
	}, nil
}

func (r *run) executeTextToImage(ctx context.Context, node workflow.Node, input any) (any, error) {
	if r.engine.caps.ImageGen == nil {
		return nil, fmt.Errorf("image generation: %w", capability.ErrNotConfigured)
	}

	prompt := ""
	if node.Data.Prompt != nil {
		prompt = *node.Data.Prompt
	}
	prompt = interpolate(prompt, input)
	if prompt == "" {
		return nil, fmt.Errorf("prompt is required for text-to-image")
	}

	result, err := r.engine.caps.ImageGen.Generate(ctx, capability.ImageRequest{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("text-to-image: %w", err)
	}

	return map[string]any{
		"imageBase64": dataURL(result.MIMEType, "image/jpeg", result.Image),
		"prompt":      prompt,
	}, nil
}

func (r *run) executeImageToVideo(ctx context.Context, node workflow.Node, input any) (any, error) {
	if r.engine.caps.Media == nil {
		return nil, fmt.Errorf("media encoder: %w", capability.ErrNotConfigured)
	}

	images := append([]string(nil), node.Data.Images...)
	audio := node.Data.AudioBase64
	images, audio = gatherMedia(images, audio, input)

	if len(images) == 0 {
		return nil, fmt.Errorf("at least one image is required for video creation")
	}

	secondsPerImage := DefaultSecondsPerImage
	if node.Data.Duration != nil {
		secondsPerImage = *node.Data.Duration
	}

	result, err := r.engine.caps.Media.Encode(ctx, capability.EncodeRequest{
		Images:          images,
		Audio:           audio,
		SecondsPerImage: secondsPerImage,
	})
	if err != nil {
		return nil, fmt.Errorf("image-to-video: %w", err)
	}

	return map[string]any{
		"videoBase64": dataURL(result.MIMEType, "video/mp4", result.Video),
		"imageCount":  len(images),
		"hasAudio":    audio != "",
	}, nil
}

// gatherMedia collects image and audio payloads from a node's input, which
// may be a single upstream output, an array of images, or a map of several
// upstream outputs keyed by node ID. Map keys are visited in sorted order so
// image sequences are deterministic.
func gatherMedia(images []string, audio string, input any) ([]string, string) {
	switch in := input.(type) {
	case map[string]any:
		if keyedByNodeID(in) {
			keys := make([]string, 0, len(in))
			for key := range in {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				output, ok := in[key].(map[string]any)
				if !ok {
					continue
				}
				if s, ok := output["imageBase64"].(string); ok && s != "" {
					images = append(images, s)
				} else if s, ok := output["data"].(string); ok && s != "" {
					images = append(images, s)
				} else if list, ok := output["images"].([]any); ok {
					for _, item := range list {
						if s, ok := item.(string); ok {
							images = append(images, s)
						}
					}
				}
				if s, ok := output["audioBase64"].(string); ok && audio == "" {
					audio = s
				}
			}
			return images, audio
		}

		if s, ok := in["imageBase64"].(string); ok && s != "" {
			images = []string{s}
		} else if list, ok := in["images"].([]any); ok {
			images = images[:0]
			for _, item := range list {
				if s, ok := item.(string); ok {
					images = append(images, s)
				}
			}
		}
		if s, ok := in["audioBase64"].(string); ok && audio == "" {
			audio = s
		}
		return images, audio

	case []any:
		images = images[:0]
		for _, item := range in {
			switch v := item.(type) {
			case string:
				images = append(images, v)
			case map[string]any:
				if s, ok := v["imageBase64"].(string); ok && s != "" {
					images = append(images, s)
				} else if s, ok := v["data"].(string); ok && s != "" {
					images = append(images, s)
				}
			}
		}
		return images, audio

	default:
		return images, audio
	}
}

// keyedByNodeID reports whether a map input looks like outputs from several
// media-producing upstream nodes rather than a single node's output object.
func keyedByNodeID(input map[string]any) bool {
	for key := range input {
		for _, marker := range []string{"text-to-image", "text_to_image", "text-to-speech", "text_to_speech"} {
			if strings.Contains(key, marker) {
				return true
			}
		}
	}
	return false
}

func (r *run) executeTextExport(node workflow.Node, input any) (any, error) {
	format := node.Data.Format
	if format == "" {
		format = workflow.ExportPDF
	}

	transcript, summary, model := harvestExportFields(input)
	if transcript == "" {
		transcript = r.extractText(input)
	}

	createdAt := time.Now().UTC().Format(time.RFC3339)
	rowID := fmt.Sprintf("%s-%d", node.ID, time.Now().UnixMilli())
	filename := exportFilename(node.Data, format)

	if format == workflow.ExportCSV {
		columns := node.Data.Columns
		if len(columns) == 0 {
			columns = []string{"id", "inputText", "summary", "model", "createdAt"}
		}
		row := map[string]any{
			"id":        rowID,
			"inputText": transcript,
			"summary":   summary,
			"model":     model,
			"createdAt": createdAt,
		}
		url, err := export.CSV([]map[string]any{row}, export.CSVOptions{
			Columns:   columns,
			ColumnMap: node.Data.ColumnMap,
		})
		if err != nil {
			return nil, fmt.Errorf("csv export: %w", err)
		}
		return map[string]any{
			"type": "file", "format": "csv", "filename": filename, "dataUrl": url,
		}, nil
	}

	doc := export.PDFDocument{
		Title:      "Conversation Summary",
		Subtitle:   "Auto-generated report",
		Summary:    summary,
		Transcript: transcript,
	}
	if node.Data.PDF != nil {
		if node.Data.PDF.Title != "" {
			doc.Title = node.Data.PDF.Title
		}
		if node.Data.PDF.Subtitle != "" {
			doc.Subtitle = node.Data.PDF.Subtitle
		}
	}
	if doc.Summary == "" {
		doc.Summary = "No summary provided."
	}
	if doc.Transcript == "" {
		doc.Transcript = "No transcript provided."
	}

	url, err := export.PDF(doc)
	if err != nil {
		return nil, fmt.Errorf("pdf export: %w", err)
	}
	return map[string]any{
		"type": "file", "format": "pdf", "filename": filename, "dataUrl": url,
	}, nil
}

// harvestExportFields pulls a transcript, summary, and model name out of an
// arbitrary upstream output. "data" and "text" fields feed the transcript;
// "content" and "summary" feed the summary. With several upstream outputs
// the first non-empty value per field wins, visiting sources in sorted key
// order.
func harvestExportFields(input any) (transcript, summary, model string) {
	tryExtract := func(value any) {
		m, ok := value.(map[string]any)
		if !ok {
			return
		}
		if s, ok := m["data"].(string); ok && transcript == "" {
			transcript = s
		}
		if s, ok := m["text"].(string); ok && s != "" && transcript == "" {
			transcript = s
		}
		if s, ok := m["content"].(string); ok && s != "" && summary == "" {
			summary = s
		}
		if s, ok := m["summary"].(string); ok && summary == "" {
			summary = s
		}
		if s, ok := m["model"].(string); ok && s != "" && model == "" {
			model = s
		}
	}

	switch in := input.(type) {
	case map[string]any:
		keys := make([]string, 0, len(in))
		for key := range in {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			tryExtract(in[key])
		}
		tryExtract(in)
	case string:
		summary = in
	}
	return transcript, summary, model
}

// exportFilename builds the output filename, substituting {timestamp} with
// the current time in unix milliseconds unless timestamps are disabled.
func exportFilename(data workflow.NodeData, format workflow.ExportFormat) string {
	ext := "pdf"
	if format == workflow.ExportCSV {
		ext = "csv"
	}
	name := data.Filename
	if name == "" {
		name = "summary-{timestamp}." + ext
	}
	timestamp := fmt.Sprintf("%d", time.Now().UnixMilli())
	if data.IncludeTimestamp != nil && !*data.IncludeTimestamp {
		timestamp = ""
	}
	name = strings.ReplaceAll(name, "{timestamp}", timestamp)
	return strings.ReplaceAll(name, "..", ".")
}

// dataURL encodes raw bytes as a base64 data URL, falling back to a default
// MIME type when the capability did not report one.
func dataURL(mimeType, fallback string, payload []byte) string {
	if mimeType == "" {
		mimeType = fallback
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(payload))
}

// floatVector coerces a value into a vector of float64s, accepting both
// native float slices and the []any produced by JSON decoding. Non-numeric
// values yield nil.
func floatVector(value any) []float64 {
	switch v := value.(type) {
	case []float64:
		return v
	case []any:
		if len(v) == 0 {
			return nil
		}
		vector := make([]float64, len(v))
		for i, item := range v {
			f, ok := item.(float64)
			if !ok {
				return nil
			}
			vector[i] = f
		}
		return vector
	default:
		return nil
	}
}
