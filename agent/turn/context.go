package turn

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/microsoft/Agents-for-net-sub004/agent/streaming"
	"github.com/microsoft/Agents-for-net-sub004/types"
)

// Handler processes one inbound activity.
type Handler interface {
	OnTurn(ctx context.Context, tc *Context) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, tc *Context) error

// OnTurn implements Handler.
func (f HandlerFunc) OnTurn(ctx context.Context, tc *Context) error {
	return f(ctx, tc)
}

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStreamingOptions sets the options used when the turn's StreamingResponse is created.
func WithStreamingOptions(opts ...streaming.Option) Option {
	return func(c *Context) {
		c.streamOpts = append(c.streamOpts, opts...)
	}
}

// Context is the state of one turn: the inbound activity and the way replies
// reach the channel.
type Context struct {
	activity   *types.Activity
	sender     Sender
	logger     *zap.Logger
	streamOpts []streaming.Option

	mu        sync.Mutex
	stream    *streaming.StreamingResponse
	responded bool
}

// NewContext creates a turn for an inbound activity.
func NewContext(activity *types.Activity, sender Sender, opts ...Option) (*Context, error) {
	if activity == nil {
		return nil, types.NewError(types.ErrInvalidTurnContext, "inbound activity is required")
	}
	if sender == nil {
		return nil, types.NewError(types.ErrInvalidTurnContext, "sender is required")
	}

	c := &Context{
		activity: activity,
		sender:   sender,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(
		zap.String("component", "turn"),
		zap.String("channel_id", activity.ChannelID),
		zap.String("activity_id", activity.ID))
	return c, nil
}

// Activity returns the inbound activity.
func (c *Context) Activity() *types.Activity {
	return c.activity
}

// SendActivity fills in the routing fields from the inbound activity and
// hands the result to the sender. The caller's activity is not modified.
func (c *Context) SendActivity(ctx context.Context, activity *types.Activity) (*types.ResourceResponse, error) {
	if activity == nil {
		return nil, types.NewError(types.ErrInvalidRequest, "activity is required")
	}
	out := activity.Clone()
	ApplyReference(out, c.activity)

	resp, err := c.sender.Send(ctx, out)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.responded = true
	c.mu.Unlock()
	return resp, nil
}

// SendText sends a plain message.
func (c *Context) SendText(ctx context.Context, text string) (*types.ResourceResponse, error) {
	return c.SendActivity(ctx, &types.Activity{Type: types.ActivityTypeMessage, Text: text})
}

// StreamingResponse returns the turn's stream, creating it on first use.
func (c *Context) StreamingResponse() (*streaming.StreamingResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream != nil {
		return c.stream, nil
	}

	opts := append([]streaming.Option{streaming.WithLogger(c.logger)}, c.streamOpts...)
	s, err := streaming.NewStreamingResponse(c, opts...)
	if err != nil {
		return nil, err
	}
	c.stream = s
	return s, nil
}

// Responded reports whether anything was sent during the turn.
func (c *Context) Responded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responded
}

// Close ends a stream the handler left open and waits until its final
// message has been delivered. Safe to call when the handler already ended it.
func (c *Context) Close(ctx context.Context) error {
	c.mu.Lock()
	s := c.stream
	c.mu.Unlock()
	if s == nil {
		return nil
	}

	result, err := s.EndStream(ctx)
	if err != nil {
		return err
	}
	if result != streaming.ResultSuccess {
		c.logger.Warn("stream closed with non-success result", zap.Stringer("result", result))
	}
	return nil
}

// ApplyReference addresses out as a reply to in.
func ApplyReference(out, in *types.Activity) {
	if in == nil {
		return
	}
	if out.ChannelID == "" {
		out.ChannelID = in.ChannelID
	}
	if out.ServiceURL == "" {
		out.ServiceURL = in.ServiceURL
	}
	if out.Conversation == nil && in.Conversation != nil {
		conv := *in.Conversation
		out.Conversation = &conv
	}
	if out.From == nil && in.Recipient != nil {
		from := *in.Recipient
		out.From = &from
	}
	if out.Recipient == nil && in.From != nil {
		rcpt := *in.From
		out.Recipient = &rcpt
	}
	if out.ReplyToID == "" {
		out.ReplyToID = in.ID
	}
}
