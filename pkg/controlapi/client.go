package controlapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// FetchStatus queries a running mount's control API at addr (host:port)
// using token, the way the teacher's dfsctl commands call its own API
// with a bearer token.
func FetchStatus(addr, token string) (*StatusResult, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("http://%s/status", addr), nil)
	if err != nil {
		return nil, fmt.Errorf("controlapi: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("controlapi: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("controlapi: unexpected status %d", resp.StatusCode)
	}

	var out StatusResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("controlapi: decode response: %w", err)
	}
	return &out, nil
}
