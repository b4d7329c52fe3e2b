package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client calls an HTTP reranking endpoint speaking the common /rerank wire
// shape (text-embeddings-inference, Jina, Cohere-compatible servers).
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

// NewClient creates a rerank client. model may be empty for servers that
// host a single model.
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Scores(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return nil, nil
	}

	body := map[string]any{
		"query":     query,
		"documents": passages,
	}
	if c.model != "" {
		body["model"] = c.model
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank: %s: %s", resp.Status, respBody)
	}

	// Servers differ on the envelope: TEI returns a bare array, Jina and
	// Cohere wrap it in {"results": [...]}. Normalize both here.
	var parsed struct {
		Results []rerankResult `json:"results"`
	}
	var bare []rerankResult
	if err := json.Unmarshal(respBody, &parsed); err != nil || parsed.Results == nil {
		if err := json.Unmarshal(respBody, &bare); err != nil {
			return nil, fmt.Errorf("rerank: unexpected response shape: %s", respBody)
		}
		parsed.Results = bare
	}

	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(passages) {
			return nil, fmt.Errorf("rerank: result index %d out of range", r.Index)
		}
		scores[r.Index] = r.Score
		seen[r.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank: no score returned for passage %d", i)
		}
	}
	return scores, nil
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"relevance_score"`
}

// UnmarshalJSON tolerates servers that call the field "score".
func (r *rerankResult) UnmarshalJSON(data []byte) error {
	var raw struct {
		Index          int      `json:"index"`
		RelevanceScore *float64 `json:"relevance_score"`
		Score          *float64 `json:"score"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Index = raw.Index
	switch {
	case raw.RelevanceScore != nil:
		r.Score = *raw.RelevanceScore
	case raw.Score != nil:
		r.Score = *raw.Score
	}
	return nil
}
