// Package api is the REST client for the chat service.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/soyeahso/matchchat/internal/config"
	"github.com/soyeahso/matchchat/internal/domain"
	"github.com/soyeahso/matchchat/internal/logging"
	"github.com/soyeahso/matchchat/internal/version"
)

// Error is a non-2xx response from the service.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("api: HTTP %d: %s", e.Status, e.Message)
}

// Client talks to the chat REST endpoints with a bearer token.
// Read-only listing calls are retried on transient failures; the
// eligibility check is always a single round trip.
type Client struct {
	baseURL string
	token   string
	once    *http.Client
	retry   *retryablehttp.Client
	log     *logging.Logger
}

// New creates a client. baseURL is the API root, e.g. "https://host/api".
func New(baseURL, token string, timeout time.Duration, retries int, log *logging.Logger) *Client {
	log = log.Sub("api")
	httpClient := &http.Client{Timeout: timeout}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.RetryMax = max(0, retries)
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = leveledLogger{log}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		token:   token,
		once:    httpClient,
		retry:   rc,
		log:     log,
	}
}

// NewFromConfig creates a client from the api section of cfg.
func NewFromConfig(cfg config.Config, token string, log *logging.Logger) *Client {
	return New(cfg.API.BaseURL, token, cfg.APITimeout(), cfg.APIRetries(), log)
}

// CheckEligibility asks whether the user may chat with counterpartID.
func (c *Client) CheckEligibility(ctx context.Context, counterpartID string) (*domain.Eligibility, error) {
	req, err := c.newRequest(ctx, "chat/checkEligibility/"+url.PathEscape(counterpartID), nil)
	if err != nil {
		return nil, err
	}

	var out domain.Eligibility
	if err := c.do(c.once.Do, req, &out); err != nil {
		return nil, fmt.Errorf("checking eligibility: %w", err)
	}
	return &out, nil
}

// ChatList returns the conversation summaries in server order.
func (c *Client) ChatList(ctx context.Context) ([]domain.ConversationSummary, error) {
	req, err := c.newRequest(ctx, "chat/list", nil)
	if err != nil {
		return nil, err
	}

	var out []domain.ConversationSummary
	if err := c.do(c.retried, req, &out); err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	return out, nil
}

// History fetches one page of messages, oldest first.
func (c *Client) History(ctx context.Context, counterpartID string, page, limit int) (*domain.HistoryPage, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	req, err := c.newRequest(ctx, "chat/history/"+url.PathEscape(counterpartID), q)
	if err != nil {
		return nil, err
	}

	var out domain.HistoryPage
	if err := c.do(c.retried, req, &out); err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return &out, nil
}

// UnreadCount returns the total number of unread messages.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	req, err := c.newRequest(ctx, "chat/unreadCount", nil)
	if err != nil {
		return 0, err
	}

	var out domain.UnreadCount
	if err := c.do(c.retried, req, &out); err != nil {
		return 0, fmt.Errorf("counting unread: %w", err)
	}
	return out.UnreadCount, nil
}

func (c *Client) newRequest(ctx context.Context, path string, q url.Values) (*http.Request, error) {
	u := c.baseURL + "/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) retried(req *http.Request) (*http.Response, error) {
	rreq, err := retryablehttp.FromRequest(req)
	if err != nil {
		return nil, err
	}
	return c.retry.Do(rreq)
}

func (c *Client) do(send func(*http.Request) (*http.Response, error), req *http.Request, out any) error {
	start := time.Now()
	resp, err := send(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	c.log.Debug().
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// errorMessage extracts {"message": "..."} from an error body, falling back
// to the raw text.
func errorMessage(body []byte) string {
	var shaped struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &shaped) == nil {
		if shaped.Message != "" {
			return shaped.Message
		}
		if shaped.Error != "" {
			return shaped.Error
		}
	}
	return strings.TrimSpace(string(body))
}
