package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sigil/pkg/domain"
	"sigil/pkg/platform/sentinel"
)

// HTTPClient talks to the chain-adapter sidecar over HTTP. Each call carries
// a bounded timeout; cancellation of the caller's context aborts the in-flight
// request and releases the connection.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

// NewHTTPClient builds a client for the given base URL. The timeout bounds
// every individual RPC.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: timeout,
	}
}

type anchorRequest struct {
	DocKey domain.DocKey `json:"doc_key"`
	Digest domain.Digest `json:"digest"`
	Reason string        `json:"reason"`
}

type latestResponse struct {
	Version Version `json:"version"`
	Index   int     `json:"index"`
}

type countResponse struct {
	Count int `json:"count"`
}

type historyResponse struct {
	Count    int       `json:"count"`
	Versions []Version `json:"versions"`
}

type issuerRequest struct {
	Address domain.Address `json:"address"`
	Name    string         `json:"name,omitempty"`
}

func (c *HTTPClient) Anchor(ctx context.Context, docKey domain.DocKey, digest domain.Digest, reason string) (Receipt, error) {
	var receipt Receipt
	err := c.post(ctx, "/anchor", anchorRequest{DocKey: docKey, Digest: digest, Reason: reason}, &receipt)
	return receipt, err
}

func (c *HTTPClient) Latest(ctx context.Context, docKey domain.DocKey) (Version, int, error) {
	var resp latestResponse
	query := url.Values{"doc_key": {docKey.String()}}
	if err := c.get(ctx, "/versions/latest", query, &resp); err != nil {
		return Version{}, 0, err
	}
	return resp.Version, resp.Index, nil
}

func (c *HTTPClient) Count(ctx context.Context, docKey domain.DocKey) (int, error) {
	var resp countResponse
	query := url.Values{"doc_key": {docKey.String()}}
	if err := c.get(ctx, "/versions/count", query, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *HTTPClient) Get(ctx context.Context, docKey domain.DocKey, index int) (Version, error) {
	var version Version
	query := url.Values{
		"doc_key": {docKey.String()},
		"index":   {strconv.Itoa(index)},
	}
	err := c.get(ctx, "/versions/get", query, &version)
	return version, err
}

func (c *HTTPClient) History(ctx context.Context, docKey domain.DocKey) ([]Version, error) {
	var resp historyResponse
	query := url.Values{"doc_key": {docKey.String()}}
	if err := c.get(ctx, "/versions", query, &resp); err != nil {
		return nil, err
	}
	return resp.Versions, nil
}

func (c *HTTPClient) IsIssuerActive(ctx context.Context, identity domain.Address) (IssuerStatus, error) {
	var status IssuerStatus
	query := url.Values{"address": {identity.String()}}
	err := c.get(ctx, "/issuers/is-active", query, &status)
	return status, err
}

func (c *HTTPClient) AddIssuer(ctx context.Context, identity domain.Address, name string) (Receipt, error) {
	var receipt Receipt
	err := c.post(ctx, "/issuers/add", issuerRequest{Address: identity, Name: name}, &receipt)
	return receipt, err
}

func (c *HTTPClient) RemoveIssuer(ctx context.Context, identity domain.Address) (Receipt, error) {
	var receipt Receipt
	err := c.post(ctx, "/issuers/remove", issuerRequest{Address: identity}, &receipt)
	return receipt, err
}

func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path+"?"+query.Encode(), nil, out)
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Timeouts, connection refusals, and caller aborts all mean the
		// ledger could not be evaluated.
		return fmt.Errorf("%w: ledger %s: %v", sentinel.ErrUnavailable, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: ledger %s", sentinel.ErrNotFound, path)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: ledger %s returned %d", sentinel.ErrUnavailable, path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("ledger %s rejected request: %s", path, readErrorBody(resp.Body))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode ledger %s response: %w", path, err)
	}
	return nil
}

func readErrorBody(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&body); err == nil && body.Error != "" {
		return body.Error
	}
	return "unknown error"
}

var _ Client = (*HTTPClient)(nil)
