package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// PostJSON performs a synchronous HTTP POST with a JSON body and decodes the
// JSON response into OutputStruct.
//
// Error handling strategy:
//   - Context errors (timeout, cancellation) propagate immediately
//   - Non-2xx responses return an error embedding the response body
//   - Response body close errors are logged but never override the primary error
//   - JSON decode errors include a truncated response preview for debugging
func PostJSON[OutputStruct any](ctx context.Context, client *http.Client, url string, headers map[string]string, body any) (*OutputStruct, error) {
	return DoJSON[OutputStruct](ctx, client, http.MethodPost, url, headers, body)
}

// DoJSON performs a synchronous HTTP request with an optional JSON body and
// decodes the JSON response into OutputStruct. A nil body sends no payload,
// which allows GET requests against JSON APIs.
func DoJSON[OutputStruct any](ctx context.Context, client *http.Client, method, url string, headers map[string]string, body any) (*OutputStruct, error) {
	respBody, _, err := do(ctx, client, method, url, headers, body)
	if err != nil {
		return nil, err
	}

	var out OutputStruct
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("error unmarshaling response body: %w\nResponse preview: %s", err, TruncateString(string(respBody), 500))
	}
	return &out, nil
}

// PostBinary performs a synchronous HTTP POST with a JSON body and returns
// the raw response bytes along with the response Content-Type. It is used
// for capabilities that answer with binary payloads (audio, images).
func PostBinary(ctx context.Context, client *http.Client, url string, headers map[string]string, body any) ([]byte, string, error) {
	return do(ctx, client, http.MethodPost, url, headers, body)
}

func do(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body any) ([]byte, string, error) {
	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("error marshaling body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, "", fmt.Errorf("error creating request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("error sending request: %w", err)
	}
	defer func(responseBody io.ReadCloser) {
		if closeErr := responseBody.Close(); closeErr != nil {
			// Log the close error, but don't override the main error.
			slog.Warn("failed to close response body", "error", closeErr.Error(), "url", url)
		}
	}(res.Body)

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", fmt.Errorf("error reading response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, "", fmt.Errorf("non-2xx status %d: %s", res.StatusCode, TruncateString(string(respBody), 500))
	}

	return respBody, res.Header.Get("Content-Type"), nil
}

// BearerHeader returns an Authorization header map for a bearer token, or an
// empty map when the token is empty.
func BearerHeader(token string) map[string]string {
	if token == "" {
		return map[string]string{}
	}
	return map[string]string{"Authorization": "Bearer " + token}
}
