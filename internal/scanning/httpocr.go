package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPOCR implements the Scanner interface against a generic OCR endpoint.
// The endpoint receives {"image": <base64>, "content_type": ...} and may
// answer with raw text, structured fields, or both.
type HTTPOCR struct {
	url     string
	apiKey  string
	maxEdge int
	client  *http.Client
}

// NewHTTPOCR creates a scanner for the OCR endpoint at url
func NewHTTPOCR(url, apiKey string, maxEdge int) (*HTTPOCR, error) {
	if url == "" {
		return nil, fmt.Errorf("ocr url is required")
	}
	return &HTTPOCR{
		url:     url,
		apiKey:  apiKey,
		maxEdge: maxEdge,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type ocrRequest struct {
	Image       string `json:"image"`
	ContentType string `json:"content_type"`
}

// ScanReceipt posts the compressed image and interprets the answer
func (h *HTTPOCR) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*ReceiptData, error) {
	jpegData, mimeType, err := prepareImageData(imageData, contentType, h.maxEdge)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(ocrRequest{
		Image:       base64.StdEncoding.EncodeToString(jpegData),
		ContentType: mimeType,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ocr endpoint: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ocr endpoint error (status %d): %s", resp.StatusCode, truncate(string(respBody), 512))
	}

	return interpretResponse(string(respBody)), nil
}

// Close is a no-op for the HTTP scanner
func (h *HTTPOCR) Close() error {
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
