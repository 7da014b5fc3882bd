package blindstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Client talks to the blind store gateway over HTTP. The gateway fronts
// the MPC network; this client only moves ciphertext and references.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu          sync.Mutex
	currentUser string
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type initialiseRequest struct {
	UserSeed string `json:"user_seed"`
}

type storeRequest struct {
	UserSeed       string   `json:"user_seed"`
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	AllowedReaders []string `json:"allowed_readers,omitempty"`
	TTLDays        int      `json:"ttl_days"`
}

type storeResponse struct {
	Reference string `json:"reference"`
}

type retrieveResponse struct {
	Value string `json:"value"`
}

// Initialise establishes a session for the wallet. Re-initialising for the
// same wallet is a no-op.
func (c *Client) Initialise(ctx context.Context, wallet string) error {
	if c.user() == wallet {
		return nil
	}

	if err := c.post(ctx, "/v1/sessions", initialiseRequest{UserSeed: wallet}, nil); err != nil {
		log.Error().Err(err).Str("service", "blindstore").Msg("session init failed")
		return err
	}

	c.mu.Lock()
	c.currentUser = wallet
	c.mu.Unlock()
	log.Debug().Str("service", "blindstore").Str("wallet", truncate(wallet)).Msg("blind store session established")
	return nil
}

func (c *Client) StoreSecret(ctx context.Context, name, value string, allowedReaders []string, ttlDays int) (string, error) {
	user := c.user()
	if user == "" {
		return "", ErrNotInitialised
	}

	var resp storeResponse
	req := storeRequest{
		UserSeed:       user,
		Name:           name,
		Value:          value,
		AllowedReaders: allowedReaders,
		TTLDays:        ttlDays,
	}
	if err := c.post(ctx, "/v1/secrets", req, &resp); err != nil {
		return "", err
	}

	log.Debug().Str("service", "blindstore").Str("name", name).Str("reference", truncate(resp.Reference)).Msg("secret stored")
	return resp.Reference, nil
}

func (c *Client) RetrieveSecret(ctx context.Context, reference, name string) (string, error) {
	user := c.user()
	if user == "" {
		return "", ErrNotInitialised
	}

	url := fmt.Sprintf("%s/v1/secrets/%s?name=%s&user_seed=%s", c.baseURL, reference, name, user)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("blindstore retrieve: %w", err)
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusUnauthorized, http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrPermissionDenied, truncate(reference))
	default:
		return "", fmt.Errorf("blindstore retrieve: unexpected status %d", httpResp.StatusCode)
	}

	var resp retrieveResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return "", fmt.Errorf("blindstore retrieve: decode response: %w", err)
	}
	return resp.Value, nil
}

func (c *Client) DeleteSecret(ctx context.Context, reference string) error {
	user := c.user()
	if user == "" {
		return ErrNotInitialised
	}

	url := fmt.Sprintf("%s/v1/secrets/%s?user_seed=%s", c.baseURL, reference, user)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("blindstore delete: %w", err)
	}
	defer httpResp.Body.Close()

	switch httpResp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusForbidden, http.StatusUnauthorized, http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrPermissionDenied, truncate(reference))
	default:
		return fmt.Errorf("blindstore delete: unexpected status %d", httpResp.StatusCode)
	}
}

func (c *Client) user() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentUser
}

// post sends a JSON body and optionally decodes a JSON response.
func (c *Client) post(ctx context.Context, path string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("blindstore post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("blindstore post %s: status %d: %s", path, resp.StatusCode, msg)
	}

	if result == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(result)
}

func truncate(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12] + "…"
}
