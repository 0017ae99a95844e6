package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/giancarlothiella/gtsw-engine/internal/metadata"
)

// HTTPClient speaks the reference page server's JSON endpoints.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient creates a client for the given base URL, e.g.
// "http://localhost:8080".
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    http.DefaultClient,
	}
}

// FetchPage retrieves and decodes the metadata document for one page.
func (c *HTTPClient) FetchPage(ctx context.Context, prjID, formID string) (*metadata.Page, error) {
	url := fmt.Sprintf("%s/v1/pages/%s/%s", c.BaseURL, prjID, formID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching page %s/%s: %w", prjID, formID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching page %s/%s: status %d", prjID, formID, resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return metadata.Decode(raw)
}

// GetData fetches adapter or lookup rows.
func (c *HTTPClient) GetData(ctx context.Context, dr DataRequest) (*DataResult, error) {
	var out DataResult
	if err := c.post(ctx, "/v1/data", dr, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExecProc executes a stored procedure / SQL statement.
func (c *HTTPClient) ExecProc(ctx context.Context, pr ProcRequest) (*ProcResult, error) {
	var out ProcResult
	if err := c.post(ctx, "/v1/proc", pr, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
