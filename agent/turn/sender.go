package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/microsoft/Agents-for-net-sub004/types"
)

// Sender delivers outgoing activities to the channel.
type Sender interface {
	Send(ctx context.Context, activity *types.Activity) (*types.ResourceResponse, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, activity *types.Activity) (*types.ResourceResponse, error)

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, activity *types.Activity) (*types.ResourceResponse, error) {
	return f(ctx, activity)
}

// resourceID echoes a client-chosen id, or makes one up for transports that
// do not assign ids themselves.
func resourceID(a *types.Activity) *types.ResourceResponse {
	if a.ID != "" {
		return &types.ResourceResponse{ID: a.ID}
	}
	return &types.ResourceResponse{ID: uuid.NewString()}
}

// ============================================================
// Connector
// ============================================================

// ConversationClient posts activities to a channel's service URL.
type ConversationClient interface {
	SendToConversation(ctx context.Context, activity *types.Activity) (*types.ResourceResponse, error)
}

// ConnectorSender sends through the channel connector (normal delivery mode).
type ConnectorSender struct {
	client ConversationClient
}

// NewConnectorSender creates a ConnectorSender.
func NewConnectorSender(client ConversationClient) *ConnectorSender {
	return &ConnectorSender{client: client}
}

// Send implements Sender.
func (s *ConnectorSender) Send(ctx context.Context, activity *types.Activity) (*types.ResourceResponse, error) {
	return s.client.SendToConversation(ctx, activity)
}

// ============================================================
// Buffered (expectReplies)
// ============================================================

// BufferedSender collects activities to return in the HTTP response.
type BufferedSender struct {
	mu         sync.Mutex
	activities []*types.Activity
}

// NewBufferedSender creates an empty BufferedSender.
func NewBufferedSender() *BufferedSender {
	return &BufferedSender{}
}

// Send implements Sender.
func (s *BufferedSender) Send(_ context.Context, activity *types.Activity) (*types.ResourceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, activity.Clone())
	return resourceID(activity), nil
}

// Replies returns everything sent so far.
func (s *BufferedSender) Replies() *types.ExpectedReplies {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &types.ExpectedReplies{Activities: append([]*types.Activity{}, s.activities...)}
}

// ============================================================
// Server-Sent Events (stream delivery mode)
// ============================================================

// SSEEventActivity is the event name of each streamed activity.
const SSEEventActivity = "activity"

// SSESender writes each activity as a Server-Sent Event.
type SSESender struct {
	w       http.ResponseWriter
	flusher http.Flusher

	mu      sync.Mutex
	started bool
	ended   bool
}

// NewSSESender wraps w, which must support flushing.
func NewSSESender(w http.ResponseWriter) (*SSESender, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, types.NewError(types.ErrInternalError, "response writer does not support streaming")
	}
	return &SSESender{w: w, flusher: flusher}, nil
}

// Send implements Sender.
func (s *SSESender) Send(ctx context.Context, activity *types.Activity) (*types.ResourceResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(activity)
	if err != nil {
		return nil, fmt.Errorf("marshal activity: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, types.NewError(types.ErrStreamEnded, "event stream already ended")
	}
	s.writeHeaderLocked()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", SSEEventActivity, data); err != nil {
		return nil, types.NewError(types.ErrChannelSendFailed, "write event").WithCause(err)
	}
	s.flusher.Flush()
	return resourceID(activity), nil
}

// End writes the terminating event. Later sends fail, so nothing touches the
// response writer once the handler has returned.
func (s *SSESender) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.ended = true
	s.writeHeaderLocked()
	fmt.Fprint(s.w, "event: end\ndata: {}\n\n")
	s.flusher.Flush()
}

// Started reports whether the response headers were written.
func (s *SSESender) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *SSESender) writeHeaderLocked() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	s.w.WriteHeader(http.StatusOK)
}

// ============================================================
// WebSocket
// ============================================================

// WebSocketSender writes each activity as a JSON text frame. Writes are
// serialized because the connection does not allow concurrent writers.
type WebSocketSender struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// NewWebSocketSender wraps an established connection.
func NewWebSocketSender(conn *websocket.Conn) *WebSocketSender {
	return &WebSocketSender{conn: conn}
}

// Send implements Sender.
func (s *WebSocketSender) Send(ctx context.Context, activity *types.Activity) (*types.ResourceResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := wsjson.Write(ctx, s.conn, activity); err != nil {
		return nil, types.NewError(types.ErrChannelSendFailed, "websocket write").WithCause(err)
	}
	return resourceID(activity), nil
}
