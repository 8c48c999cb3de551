// Package forensics calls the optional visual-authenticity analysis service.
// Strictly best-effort evidence enrichment: any failure, timeout, or
// unavailability yields a "not run" report, never an error and never a
// verification reason code.
package forensics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// ModelResult is one model's view of the artifact pair.
type ModelResult struct {
	Model   string `json:"model"`
	Status  string `json:"status"` // "authentic", "tampered", or model-specific
	Message string `json:"message,omitempty"`
}

// Report summarizes the analysis. Ran is false whenever the analysis could
// not complete; callers must treat that as missing enrichment, not evidence.
type Report struct {
	Ran           bool          `json:"ran"`
	OverallStatus string        `json:"overall_status,omitempty"`
	Layout        *ModelResult  `json:"layout,omitempty"`
	Seal          *ModelResult  `json:"seal,omitempty"`
	Models        []ModelResult `json:"models,omitempty"`
}

// Analyzer compares the originally issued artifact with the uploaded one.
type Analyzer interface {
	AnalyzePair(ctx context.Context, original, uploaded []byte) Report
}

// HTTPAnalyzer posts artifact pairs to the analysis backend.
type HTTPAnalyzer struct {
	baseURL string
	apiKey  string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

func NewHTTPAnalyzer(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{},
		timeout: timeout,
		logger:  logger,
	}
}

// AnalyzePair never returns an error; failures degrade to Ran=false.
func (a *HTTPAnalyzer) AnalyzePair(ctx context.Context, original, uploaded []byte) Report {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, contentType, err := encodePair(original, uploaded)
	if err != nil {
		a.logger.WarnContext(ctx, "forensics request encoding failed", "error", err)
		return Report{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/verify", body)
	if err != nil {
		a.logger.WarnContext(ctx, "forensics request build failed", "error", err)
		return Report{}
	}
	req.Header.Set("Content-Type", contentType)
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.WarnContext(ctx, "forensics analysis unavailable", "error", err)
		return Report{}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.logger.WarnContext(ctx, "forensics analysis rejected", "status", resp.StatusCode)
		return Report{}
	}

	var report Report
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&report); err != nil {
		a.logger.WarnContext(ctx, "forensics response decode failed", "error", err)
		return Report{}
	}
	report.Ran = true
	return report
}

func encodePair(original, uploaded []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, part := range []struct {
		field string
		name  string
		data  []byte
	}{
		{"original", "original.pdf", original},
		{"uploaded", "uploaded.pdf", uploaded},
	} {
		fw, err := writer.CreateFormFile(part.field, part.name)
		if err != nil {
			return nil, "", fmt.Errorf("create form file %s: %w", part.field, err)
		}
		if _, err := fw.Write(part.data); err != nil {
			return nil, "", fmt.Errorf("write form file %s: %w", part.field, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

var _ Analyzer = (*HTTPAnalyzer)(nil)
