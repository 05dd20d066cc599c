package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/freedom_case_2/fire/internal/models"
)

var ErrNoResults = errors.New(`decode rows: expected a JSON array or an object with a "results" array`)

// HTTPSource reads the classifier feed from BaseURL + "/results". The feed
// answers either a bare array of rows or {"results": [...]}.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func (h HTTPSource) FetchResults(ctx context.Context) ([]models.ResultRow, error) {
	if h.Client == nil {
		h.Client = &http.Client{Timeout: 30 * time.Second}
	}

	url := strings.TrimRight(h.BaseURL, "/") + "/results"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("classifier feed: unexpected status %s", resp.Status)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("classifier feed: %w", err)
	}
	return DecodeRows(raw)
}

// DecodeRows accepts a JSON array of rows or an object wrapping it in "results".
// An object without "results" is rejected.
func DecodeRows(raw []byte) ([]models.ResultRow, error) {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var rows []models.ResultRow
		if err := json.Unmarshal(raw, &rows); err != nil {
			return nil, fmt.Errorf("decode rows: %w", err)
		}
		return rows, nil
	}
	var wrapped struct {
		Results *[]models.ResultRow `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if wrapped.Results == nil {
		return nil, ErrNoResults
	}
	rows := *wrapped.Results
	if rows == nil {
		rows = []models.ResultRow{}
	}
	return rows, nil
}
