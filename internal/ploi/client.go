package ploi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jbweber/homelab/ploi/internal/notify"
)

// DefaultBaseURL is the public Ploi API endpoint.
const DefaultBaseURL = "https://ploi.io/api"

// Options configures a Client.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Notifier   notify.Notifier
	Logger     *slog.Logger
}

// Client issues requests against the Ploi API. Every exported operation
// emits exactly one notification describing its outcome.
type Client struct {
	baseURL  string
	token    string
	http     *http.Client
	notifier notify.Notifier
	logger   *slog.Logger
}

// New creates a Client, filling unset options with defaults.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		token:    opts.Token,
		http:     opts.HTTPClient,
		notifier: opts.Notifier,
		logger:   opts.Logger.With(slog.String("component", "ploi")),
	}
}

// WithNotifier returns a copy of the client that reports to n.
func (c *Client) WithNotifier(n notify.Notifier) *Client {
	clone := *c
	clone.notifier = n
	return &clone
}

// do sends a request and returns the body of a 2xx response.
// Non-2xx responses are converted with classify.
func (c *Client) do(ctx context.Context, op, method, path string, readCall bool) ([]byte, error) {
	requestID := uuid.New().String()
	url := c.baseURL + path

	var reqBody io.Reader
	if method == http.MethodPost {
		reqBody = strings.NewReader("{}")
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, &Error{Op: op, Kind: KindNetwork, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	log := c.logger.With(slog.String("op", op), slog.String("request_id", requestID))
	log.Debug("sending request", slog.String("method", method), slog.String("url", url))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("request failed", slog.String("error", err.Error()))
		return nil, &Error{Op: op, Kind: KindNetwork, Err: fmt.Errorf("http do: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("failed to read response body", slog.String("error", err.Error()))
		return nil, &Error{Op: op, Kind: KindNetwork, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	log.Debug("received response",
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := classify(op, resp.StatusCode, body, readCall)
		log.Warn("request rejected", slog.Int("status", resp.StatusCode), slog.String("kind", string(apiErr.Kind)))
		return nil, apiErr
	}
	return body, nil
}

func (c *Client) success(ctx context.Context, title string) {
	c.notifier.Notify(ctx, notify.Success(title))
}

func (c *Client) failure(ctx context.Context, title, message string) {
	c.notifier.Notify(ctx, notify.Failure(title, message))
}

// readFailure reports a failed list/get call. Rejected credentials get the
// API key guidance instead of the generic title.
func (c *Client) readFailure(ctx context.Context, err error, generic string) {
	if KindOf(err) == KindAuth {
		c.failure(ctx, "Wrong API key used", "Please remove your API key in the preferences and enter a valid one")
		return
	}
	c.failure(ctx, generic, "")
}

// actionFailure reports a failed mutating call. When verbatim is set, a
// server supplied reason replaces the generic title.
func (c *Client) actionFailure(ctx context.Context, err error, generic string, verbatim bool) {
	if verbatim {
		if apiErr, ok := err.(*Error); ok && apiErr.Kind == KindResource && apiErr.Message != "" {
			c.failure(ctx, apiErr.Message, "")
			return
		}
	}
	c.failure(ctx, generic, "")
}
