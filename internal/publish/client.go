// Package publish sends converted coverage to a code coverage ingestion API
// (the Bitbucket Server code coverage REST endpoint).
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zjy-dev/covpub/internal/logger"
)

const (
	// DefaultTimeout applies when Config.Timeout is zero.
	DefaultTimeout = 30 * time.Second

	apiPath = "rest/code-coverage/1.0"

	// maxErrorBody bounds how much of an error response is kept.
	maxErrorBody = 64 << 10
)

// ErrInvalidHost is returned for hosts without an http:// or https:// scheme.
var ErrInvalidHost = errors.New("host must start with http:// or https://")

// Config holds the connection and target settings of the ingestion API.
type Config struct {
	Host       string
	User       string
	Password   string
	Token      string
	Timeout    time.Duration
	CommitID   string
	ProjectKey string
	RepoSlug   string
}

// Validate checks the settings without contacting the server.
func (c Config) Validate() error {
	lower := strings.ToLower(c.Host)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return fmt.Errorf("%w: %q", ErrInvalidHost, c.Host)
	}
	if c.CommitID == "" {
		return fmt.Errorf("commit id must not be empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// URL returns the endpoint for the configured commit:
// <host>/rest/code-coverage/1.0/[projects/<key>/repos/<slug>/]commits/<commit>.
// The project segment is only added when both key and slug are set.
func (c Config) URL() (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(strings.TrimSuffix(c.Host, "/"))
	sb.WriteString("/" + apiPath + "/")
	if c.ProjectKey != "" && c.RepoSlug != "" {
		sb.WriteString("projects/" + url.PathEscape(c.ProjectKey) + "/repos/" + url.PathEscape(c.RepoSlug) + "/")
	}
	sb.WriteString("commits/" + url.PathEscape(c.CommitID))

	u := sb.String()
	if _, err := url.Parse(u); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidHost, err)
	}
	return u, nil
}

// Error is returned when the API answers with a non-2xx status.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("the code coverage API responded with the unexpected status code %d", e.StatusCode)
	}
	return fmt.Sprintf("the code coverage API responded with the unexpected status code %d and body:\n%s", e.StatusCode, e.Body)
}

// Client publishes payloads for one commit.
type Client struct {
	cfg    Config
	client *http.Client
}

// NewClient creates a client for cfg. Redirects are followed.
func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// NewRequest builds the POST request carrying payload.
func (c *Client) NewRequest(ctx context.Context, payload Payload) (*http.Request, error) {
	endpoint, err := c.cfg.URL()
	if err != nil {
		return nil, err
	}

	body, err := payload.JSON()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	// User and password take precedence over a token.
	if c.cfg.User != "" && c.cfg.Password != "" {
		req.SetBasicAuth(c.cfg.User, c.cfg.Password)
	} else if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	return req, nil
}

// Publish sends payload in a single attempt.
func (c *Client) Publish(ctx context.Context, payload Payload) error {
	req, err := c.NewRequest(ctx, payload)
	if err != nil {
		return err
	}

	if logger.Enabled(logger.DEBUG) {
		body, _ := payload.JSON()
		logger.Debug("Sending code coverage to %s (request id %s) with body:\n%s", req.URL, req.Header.Get("X-Request-Id"), body)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{StatusCode: resp.StatusCode, Body: string(body)}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	logger.Debug("Code coverage API accepted %d files with status %d", len(payload.Files), resp.StatusCode)
	return nil
}
