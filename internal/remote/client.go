package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CampusPulseLab/pulse/backend/internal/store"
	"go.uber.org/zap"
)

const defaultRequestTimeout = 10 * time.Second

var (
	errMissingBaseURL     = errors.New("base url configuration required")
	errMissingAccessToken = errors.New("access token must not be empty")
	// ErrInvalidClientConfig indicates the client configuration is unusable.
	ErrInvalidClientConfig = errors.New("remote: invalid client config")
	// ErrUnauthorized indicates the backend rejected the access token.
	ErrUnauthorized = errors.New("remote: access token rejected")
)

// ClientConfig bundles configuration for the managed-backend client.
type ClientConfig struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
}

// Client talks to the managed backend that holds the canonical copies of
// users and events. It is the only place the backend's field spellings are
// visible; everything it returns is mapped to the canonical model.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a Client with validated configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClientConfig, errMissingBaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// FetchUser resolves the user behind a backend-issued access token.
func (c *Client) FetchUser(ctx context.Context, accessToken string) (User, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return User{}, errMissingAccessToken
	}

	body, err := c.get(ctx, "/auth/v1/user", accessToken)
	if err != nil {
		return User{}, err
	}

	var payload userPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return User{}, fmt.Errorf("remote: decode user payload: %w", err)
	}
	return payload.canonical()
}

// FetchEvents pulls the canonical event catalog.
func (c *Client) FetchEvents(ctx context.Context, accessToken string) ([]store.Event, error) {
	body, err := c.get(ctx, "/rest/v1/events", accessToken)
	if err != nil {
		return nil, err
	}

	var payloads []eventPayload
	if err := json.Unmarshal(body, &payloads); err != nil {
		return nil, fmt.Errorf("remote: decode event payload: %w", err)
	}
	events := make([]store.Event, 0, len(payloads))
	for _, payload := range payloads {
		events = append(events, payload.canonical())
	}
	return events, nil
}

func (c *Client) get(ctx context.Context, path, accessToken string) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Accept", "application/json")
	if accessToken != "" {
		request.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if c.apiKey != "" {
		request.Header.Set("apikey", c.apiKey)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode == http.StatusUnauthorized || response.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}
	if response.StatusCode != http.StatusOK {
		c.logger.Warn("remote request failed",
			zap.String("path", path),
			zap.Int("status", response.StatusCode))
		return nil, fmt.Errorf("remote: unexpected status %d from %s", response.StatusCode, path)
	}

	return io.ReadAll(io.LimitReader(response.Body, 4<<20))
}
