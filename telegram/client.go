package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public Bot API endpoint.
	DefaultBaseURL = "https://api.telegram.org"

	// DefaultTimeout bounds a single Bot API call.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is how often a call answered with 429 or a 5xx
	// status is repeated.
	DefaultMaxRetries = 5

	// DefaultRetryDelay is the first backoff delay. It doubles per retry.
	DefaultRetryDelay = 500 * time.Millisecond
)

// Client calls the Bot API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *slog.Logger

	maxRetries int
	retryDelay time.Duration
}

// Option configures a Client.
type Option func(*Client) error

// WithBaseURL points the client at another Bot API server.
// Default is DefaultBaseURL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		if baseURL == "" {
			return fmt.Errorf("base URL must not be empty")
		}
		c.baseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) error {
		if httpClient == nil {
			return fmt.Errorf("http client must not be nil")
		}
		c.httpClient = httpClient
		return nil
	}
}

// WithRetry sets how often a call answered with 429 or a 5xx status is
// retried and the first backoff delay. Zero retries disables retrying.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *Client) error {
		if maxRetries < 0 {
			return fmt.Errorf("max retries must not be negative, got %d", maxRetries)
		}
		if baseDelay < 0 {
			return fmt.Errorf("retry delay must not be negative, got %s", baseDelay)
		}
		c.maxRetries = maxRetries
		c.retryDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewClient creates a Bot API client for the bot with the given token.
func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}

	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    DefaultBaseURL,
		token:      token,
		logger:     slog.Default(),
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.logger = c.logger.With(slog.String("component", "telegram_client"))
	return c, nil
}

type response struct {
	OK          bool                `json:"ok"`
	Result      json.RawMessage     `json:"result,omitempty"`
	ErrorCode   int                 `json:"error_code,omitempty"`
	Description string              `json:"description,omitempty"`
	Parameters  *responseParameters `json:"parameters,omitempty"`
}

type responseParameters struct {
	RetryAfter int `json:"retry_after,omitempty"`
}

// call posts params as JSON to a Bot API method and decodes the result into out.
// out may be nil. Calls answered with 429 or a 5xx status are retried with
// exponential backoff, waiting at least as long as the server asks.
func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding %s params: %w", method, err)
	}

	delay := c.retryDelay
	for attempt := 1; ; attempt++ {
		err := c.post(ctx, method, body, out)
		var apiErr *APIError
		if err == nil || attempt > c.maxRetries || !errors.As(err, &apiErr) || !apiErr.temporary() {
			return err
		}

		wait := max(delay, apiErr.RetryAfter)
		c.logger.Warn("retrying bot api call",
			"method", method,
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"code", apiErr.Code,
			"wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

// post makes a single attempt at a Bot API call.
func (c *Client) post(ctx context.Context, method string, body []byte, out any) error {
	reqURL := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL carries the token; keep it out of the error.
		return fmt.Errorf("telegram %s: %w", method, unwrapURLError(err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s response: %w", method, err)
	}

	var decoded response
	if err := json.Unmarshal(data, &decoded); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			// Proxies answer outages with HTML.
			c.logger.Warn("bot api call failed", "method", method, "code", resp.StatusCode)
			return &APIError{Method: method, Code: resp.StatusCode, Description: http.StatusText(resp.StatusCode)}
		}
		return fmt.Errorf("decoding %s response (status %d): %w", method, resp.StatusCode, err)
	}
	if !decoded.OK {
		apiErr := &APIError{Method: method, Code: decoded.ErrorCode, Description: decoded.Description}
		if apiErr.Code == 0 {
			apiErr.Code = resp.StatusCode
		}
		if decoded.Parameters != nil {
			apiErr.RetryAfter = time.Duration(decoded.Parameters.RetryAfter) * time.Second
		}
		c.logger.Warn("bot api call failed", "method", method, "code", apiErr.Code, "description", apiErr.Description)
		return apiErr
	}

	c.logger.Debug("bot api call", "method", method)
	if out == nil || len(decoded.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}
	return nil
}

type sendMessageParams struct {
	ChatID      int64        `json:"chat_id"`
	Text        string       `json:"text"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type replyMarkup struct {
	RemoveKeyboard bool `json:"remove_keyboard"`
}

// SendMessage sends text to a chat and removes any custom keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (*Message, error) {
	params := sendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: &replyMarkup{RemoveKeyboard: true},
	}
	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AnswerInlineQuery are the parameters of answerInlineQuery.
type AnswerInlineQuery struct {
	InlineQueryID string                    `json:"inline_query_id"`
	Results       []InlineQueryResult       `json:"results"`
	CacheTime     *int                      `json:"cache_time,omitempty"`
	IsPersonal    bool                      `json:"is_personal,omitempty"`
	NextOffset    string                    `json:"next_offset"`
	Button        *InlineQueryResultsButton `json:"button,omitempty"`
}

// AnswerInlineQuery answers an inline query. A nil result list is sent as empty.
func (c *Client) AnswerInlineQuery(ctx context.Context, answer AnswerInlineQuery) error {
	if answer.Results == nil {
		answer.Results = []InlineQueryResult{}
	}
	return c.call(ctx, "answerInlineQuery", answer, nil)
}

type setWebhookParams struct {
	URL            string `json:"url"`
	MaxConnections int    `json:"max_connections,omitempty"`
}

// SetWebhook registers webhookURL as the destination of updates.
// maxConnections of zero keeps the server default.
func (c *Client) SetWebhook(ctx context.Context, webhookURL string, maxConnections int) error {
	return c.call(ctx, "setWebhook", setWebhookParams{URL: webhookURL, MaxConnections: maxConnections}, nil)
}

func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
