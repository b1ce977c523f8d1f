package badges

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPRenderer posts page data to a document conversion endpoint that fills the badge
// template and answers with the rendered PDF. CombineURL, when set, points at the
// endpoint that merges several PDFs into one.
type HTTPRenderer struct {
	URL        string
	CombineURL string
	APIKey     string
	Template   string
	Client     *http.Client
}

type renderRequest struct {
	Template string `json:"template"`
	Data     Page   `json:"data"`
}

// combineRequest carries the documents base64 encoded, as encoding/json does for []byte.
type combineRequest struct {
	Documents [][]byte `json:"documents"`
}

func (r *HTTPRenderer) Render(ctx context.Context, data Page) ([]byte, error) {
	return r.post(ctx, r.URL, renderRequest{Template: r.Template, Data: data})
}

func (r *HTTPRenderer) Combine(ctx context.Context, docs [][]byte) ([]byte, error) {
	if r.CombineURL == "" {
		return nil, ErrCombineUnsupported
	}
	return r.post(ctx, r.CombineURL, combineRequest{Documents: docs})
}

func (r *HTTPRenderer) post(ctx context.Context, url string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/pdf")
	if r.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.APIKey)
	}

	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("renderer returned %s: %s", resp.Status, bytes.TrimSpace(doc))
	}
	return doc, nil
}
