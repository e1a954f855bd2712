package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/microsoft/Agents-for-net-sub004/internal/retry"
	"github.com/microsoft/Agents-for-net-sub004/types"
)

// DefaultTimeout bounds a single HTTP attempt.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response is kept in the message.
const maxErrorBody = 4 << 10

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithRetryPolicy sets the retry policy for transient failures.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Client) {
		c.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Client posts activities to a channel's Bot Connector service.
type Client struct {
	http    *http.Client
	tokens  TokenProvider
	policy  retry.Policy
	retryer *retry.Retryer
	logger  *zap.Logger
}

// NewClient creates a connector client. A nil TokenProvider sends unauthenticated requests.
func NewClient(tokens TokenProvider, opts ...Option) *Client {
	c := &Client{
		http:   &http.Client{Timeout: DefaultTimeout},
		tokens: tokens,
		policy: retry.DefaultPolicy(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "connector"))
	if c.policy.ShouldRetry == nil {
		c.policy.ShouldRetry = IsTransient
	}
	c.retryer = retry.New(c.policy, c.logger)
	return c
}

// SendToConversation posts an activity to its conversation. When ReplyToID is
// set the activity is posted as a reply to that activity.
func (c *Client) SendToConversation(ctx context.Context, activity *types.Activity) (*types.ResourceResponse, error) {
	endpoint, err := ActivitiesURL(activity)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(activity)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "marshal activity").WithCause(err)
	}

	resp, err := retry.Do(ctx, c.retryer, func(ctx context.Context) (*types.ResourceResponse, error) {
		return c.post(ctx, endpoint, body)
	})
	if err != nil {
		c.logger.Warn("send to conversation failed",
			zap.String("channel_id", activity.ChannelID),
			zap.String("conversation_id", activity.Conversation.ID),
			zap.Error(err))
		return nil, err
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) (*types.ResourceResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "build request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, types.NewError(types.ErrUnauthorized, "acquire token").WithCause(err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, types.NewError(types.ErrUpstreamError, "connector request failed").
			WithCause(err).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, MapHTTPError(resp.StatusCode, strings.TrimSpace(string(data)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "read response").WithCause(err).WithRetryable(true)
	}
	out := &types.ResourceResponse{}
	if len(bytes.TrimSpace(data)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "decode resource response").WithCause(err)
	}
	return out, nil
}

// ActivitiesURL builds the conversation endpoint for an outgoing activity.
func ActivitiesURL(a *types.Activity) (string, error) {
	if a == nil {
		return "", types.NewError(types.ErrInvalidRequest, "activity is required")
	}
	if a.ServiceURL == "" {
		return "", types.NewError(types.ErrInvalidRequest, "activity has no serviceUrl")
	}
	if a.Conversation == nil || a.Conversation.ID == "" {
		return "", types.NewError(types.ErrInvalidRequest, "activity has no conversation")
	}
	base, err := url.Parse(a.ServiceURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", types.NewError(types.ErrInvalidRequest, fmt.Sprintf("invalid serviceUrl %q", a.ServiceURL))
	}

	endpoint := strings.TrimRight(a.ServiceURL, "/") +
		"/v3/conversations/" + url.PathEscape(a.Conversation.ID) + "/activities"
	if a.ReplyToID != "" {
		endpoint += "/" + url.PathEscape(a.ReplyToID)
	}
	return endpoint, nil
}

// MapHTTPError maps a connector status code to a typed error with the right retry flag.
func MapHTTPError(status int, msg string) *types.Error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	code := types.ErrUpstreamError
	retryable := status >= 500

	switch status {
	case http.StatusBadRequest, http.StatusNotFound:
		code = types.ErrInvalidRequest
	case http.StatusUnauthorized:
		code = types.ErrUnauthorized
	case http.StatusForbidden:
		code = types.ErrForbidden
	case http.StatusTooManyRequests:
		code = types.ErrRateLimited
		retryable = true
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = types.ErrUpstreamTimeout
		retryable = true
	case http.StatusServiceUnavailable:
		code = types.ErrServiceUnavailable
	}

	return types.NewError(code, msg).WithHTTPStatus(status).WithRetryable(retryable)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return types.IsRetryable(err)
}
