// Package predictor is a client for the external image quality prediction
// service. It submits a preview image and returns the numeric score from the
// JSON response; policy around failures (the pipeline treats scoring as
// best-effort) lives with the caller, not here.
package predictor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

// ErrNoScore reports a well-formed response that lacks the score field.
var ErrNoScore = errors.New("prediction response has no score field")

type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a client for the given predict endpoint URL. The timeout
// bounds the whole call, upload included.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type predictResponse struct {
	Score *float64 `json:"score"`
}

// Predict uploads the image as a single multipart part named "file" and
// parses the score out of the JSON response.
func (c *Client) Predict(ctx context.Context, fileName string, imageData []byte) (float64, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	hdr.Set("Content-Type", "image/png")
	part, err := w.CreatePart(hdr)
	if err != nil {
		return 0, fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return 0, fmt.Errorf("write multipart part: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, &body)
	if err != nil {
		return 0, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("predict request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("predict request: status %d: %s", resp.StatusCode, string(snippet))
	}

	var parsed predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, fmt.Errorf("decode predict response: %w", err)
	}
	if parsed.Score == nil {
		return 0, ErrNoScore
	}

	return *parsed.Score, nil
}
