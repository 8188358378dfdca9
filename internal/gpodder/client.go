// ABOUTME: Client for the gpodder-compatible REST synchronization protocol
// ABOUTME: Covers auth, subscription deltas, and episode-action history endpoints

package gpodder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/castsync/castsync/internal/fetch"
	"github.com/castsync/castsync/internal/models"
)

const (
	sessionCookie = "sessionid"
	userAgent     = "castsync/1.0 (gpodder client)"
)

// AuthError is a credential or session failure (HTTP 401/403).
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (status %d)", e.StatusCode)
}

// Action is the wire form of one episode action.
type Action struct {
	Podcast   string `json:"podcast"`
	Episode   string `json:"episode"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	Started   *int   `json:"started,omitempty"`
	Position  *int   `json:"position,omitempty"`
	Total     *int   `json:"total,omitempty"`
	Completed bool   `json:"completed,omitempty"`
}

// SubscriptionDelta is the server's answer to a subscription pull.
type SubscriptionDelta struct {
	Add       []string `json:"add"`
	Remove    []string `json:"remove"`
	Timestamp int64    `json:"timestamp"`
}

// ActionDelta is the server's answer to an episode-action pull.
type ActionDelta struct {
	Actions   []Action `json:"actions"`
	Timestamp int64    `json:"timestamp"`
}

type uploadResponse struct {
	Timestamp int64 `json:"timestamp"`
}

// Client talks to one gpodder-compatible server.
type Client struct {
	httpClient *http.Client
	logger     *log.Logger
}

// New creates a Client with a per-request timeout.
func New(logger *log.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// Login validates credentials against the auth endpoint and returns a fresh
// session token.
func (c *Client) Login(ctx context.Context, cfg *models.ServerConfig) (string, error) {
	endpoint, err := url.JoinPath(cfg.ServerURL, "api/2/auth", cfg.Username, "login.json")
	if err != nil {
		return "", fmt.Errorf("build auth URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("create auth request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.SetBasicAuth(cfg.Username, cfg.Password)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &fetch.NetworkError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", &AuthError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &fetch.NetworkError{URL: endpoint, StatusCode: resp.StatusCode}
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == sessionCookie && cookie.Value != "" {
			c.logger.Debug("session established", "user", cfg.Username)
			return cookie.Value, nil
		}
	}
	return "", fmt.Errorf("auth response carried no session cookie")
}

// GetAllSubscriptions pulls the complete remote feed-URL list for a device.
func (c *Client) GetAllSubscriptions(ctx context.Context, cfg *models.ServerConfig) ([]string, error) {
	endpoint, err := url.JoinPath(cfg.ServerURL, "subscriptions", cfg.Username, cfg.DeviceID+".json")
	if err != nil {
		return nil, fmt.Errorf("build subscriptions URL: %w", err)
	}

	var urls []string
	if err := c.do(ctx, cfg, http.MethodGet, endpoint, nil, &urls); err != nil {
		return nil, err
	}
	return urls, nil
}

// GetSubscriptionChanges pulls subscription deltas since the given time.
func (c *Client) GetSubscriptionChanges(ctx context.Context, cfg *models.ServerConfig, since time.Time) (*SubscriptionDelta, error) {
	endpoint, err := url.JoinPath(cfg.ServerURL, "api/2/subscriptions", cfg.Username, cfg.DeviceID+".json")
	if err != nil {
		return nil, fmt.Errorf("build subscriptions URL: %w", err)
	}
	endpoint += "?since=" + strconv.FormatInt(since.Unix(), 10)

	var delta SubscriptionDelta
	if err := c.do(ctx, cfg, http.MethodGet, endpoint, nil, &delta); err != nil {
		return nil, err
	}
	return &delta, nil
}

// UploadSubscriptionChanges pushes add/remove feed-URL diffs.
func (c *Client) UploadSubscriptionChanges(ctx context.Context, cfg *models.ServerConfig, add, remove []string) error {
	endpoint, err := url.JoinPath(cfg.ServerURL, "api/2/subscriptions", cfg.Username, cfg.DeviceID+".json")
	if err != nil {
		return fmt.Errorf("build subscriptions URL: %w", err)
	}

	body := map[string][]string{
		"add":    emptyIfNil(add),
		"remove": emptyIfNil(remove),
	}
	var resp uploadResponse
	if err := c.do(ctx, cfg, http.MethodPost, endpoint, body, &resp); err != nil {
		return err
	}
	c.logger.Debug("subscriptions pushed", "add", len(add), "remove", len(remove))
	return nil
}

// GetEpisodeActions pulls episode-action history since the given time.
func (c *Client) GetEpisodeActions(ctx context.Context, cfg *models.ServerConfig, since time.Time) (*ActionDelta, error) {
	endpoint, err := url.JoinPath(cfg.ServerURL, "api/2/episodes", cfg.Username+".json")
	if err != nil {
		return nil, fmt.Errorf("build episodes URL: %w", err)
	}
	endpoint += "?aggregated=true&since=" + strconv.FormatInt(since.Unix(), 10)

	var delta ActionDelta
	if err := c.do(ctx, cfg, http.MethodGet, endpoint, nil, &delta); err != nil {
		return nil, err
	}
	return &delta, nil
}

// UploadEpisodeActions pushes a batch of episode actions.
func (c *Client) UploadEpisodeActions(ctx context.Context, cfg *models.ServerConfig, actions []Action) error {
	if len(actions) == 0 {
		return nil
	}
	endpoint, err := url.JoinPath(cfg.ServerURL, "api/2/episodes", cfg.Username+".json")
	if err != nil {
		return fmt.Errorf("build episodes URL: %w", err)
	}

	var resp uploadResponse
	if err := c.do(ctx, cfg, http.MethodPost, endpoint, actions, &resp); err != nil {
		return err
	}
	c.logger.Debug("episode actions pushed", "count", len(actions))
	return nil
}

// do executes one authenticated API call, decoding the JSON response into
// out. 401/403 map to *AuthError, other non-2xx to *fetch.NetworkError.
func (c *Client) do(ctx context.Context, cfg *models.ServerConfig, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cfg.SessionToken != nil && *cfg.SessionToken != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: *cfg.SessionToken})
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &fetch.NetworkError{URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &fetch.NetworkError{URL: endpoint, StatusCode: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// WireTimestamp formats a time the way the episode-actions endpoint expects.
func WireTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05")
}

// ParseWireTimestamp parses an action timestamp from the server; zero time
// on failure.
func ParseWireTimestamp(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
