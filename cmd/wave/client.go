package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// apiAddr is the base URL of a running `wave serve` instance that the
// one-shot session subcommands talk to.
var apiAddr string

func init() {
	rootCmd.PersistentFlags().StringVar(&apiAddr, "api", "http://localhost:8080", "Address of a running `wave serve` instance")
}

var httpClient = &http.Client{Timeout: 30 * time.Second}

func apiPost(path string, body any) (map[string]any, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
	}
	resp, err := httpClient.Post(apiAddr+path, "application/json", &buf)
	if err != nil {
		return nil, &errFatalInfra{fmt.Errorf("call wave serve at %s: %w", apiAddr, err)}
	}
	defer resp.Body.Close()
	return decodeAPIResponse(resp)
}

func apiGet(path string) (map[string]any, error) {
	resp, err := httpClient.Get(apiAddr + path)
	if err != nil {
		return nil, &errFatalInfra{fmt.Errorf("call wave serve at %s: %w", apiAddr, err)}
	}
	defer resp.Body.Close()
	return decodeAPIResponse(resp)
}

func decodeAPIResponse(resp *http.Response) (map[string]any, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	var out map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("decode response body: %w", err)
		}
	}
	if resp.StatusCode >= 400 {
		if msg, ok := out["error"].(string); ok {
			return out, fmt.Errorf("%s", msg)
		}
		return out, fmt.Errorf("wave serve returned status %d", resp.StatusCode)
	}
	return out, nil
}
