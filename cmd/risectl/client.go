package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	jwtPkg "RiseAndShine/pkg/jwt"
	jsoniter "github.com/json-iterator/go"
)

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	base := apiURL
	if base == "" {
		base = os.Getenv("RISECTL_API")
	}
	if base == "" {
		port := os.Getenv("APP_PORT")
		if port == "" {
			port = "3000"
		}
		base = fmt.Sprintf("http://localhost:%s/api/v1", port)
	}

	token, err := resolveToken()
	if err != nil {
		return nil, err
	}

	return &apiClient{
		baseURL: strings.TrimRight(base, "/"),
		token:   token,
		// generation retries with backoff can take a while
		httpClient: &http.Client{Timeout: 3 * time.Minute},
	}, nil
}

// resolveToken prefers --token, then RISECTL_TOKEN, then a short-lived
// token minted with the daemon's secret. An empty token is valid when the
// daemon runs without a secret.
func resolveToken() (string, error) {
	if apiToken != "" {
		return apiToken, nil
	}
	if t := os.Getenv("RISECTL_TOKEN"); t != "" {
		return t, nil
	}
	secret := os.Getenv("JWT_ACCESS_TOKEN_SECRET")
	if secret == "" {
		return "", nil
	}
	token, _, err := jwtPkg.Sign(secret, map[string]interface{}{"sub": "risectl", "name": "risectl"}, 10*time.Minute)
	if err != nil {
		return "", fmt.Errorf("minting token: %w", err)
	}
	return token, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := jsoniter.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is the daemon running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

type apiError struct {
	Error string `json:"error"`
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		var e apiError
		if jsoniter.Unmarshal(body, &e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return jsoniter.NewDecoder(resp.Body).Decode(v)
}
