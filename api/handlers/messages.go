package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/microsoft/Agents-for-net-sub004/agent/streaming"
	"github.com/microsoft/Agents-for-net-sub004/agent/turn"
	"github.com/microsoft/Agents-for-net-sub004/types"
)

// =============================================================================
// 💬 Messages Handler
// =============================================================================

// MessagesHandler 接收渠道投递的活动并执行一次对话轮次。
// 回复的投递方式由入站活动的 deliveryMode 决定：
//
//   - expectReplies：回复缓存在内存中，随 HTTP 响应一次性返回
//   - stream：回复以 SSE 事件逐条写回当前请求
//   - normal：回复通过连接器异步发送到渠道，请求立即返回 202
type MessagesHandler struct {
	agent      turn.Handler
	client     turn.ConversationClient
	streamOpts []streaming.Option
	logger     *zap.Logger

	closeTimeout   time.Duration
	originPatterns []string
}

// MessagesOption 配置 MessagesHandler
type MessagesOption func(*MessagesHandler)

// WithStreamingOptions 为每个轮次的流式回复设置选项
func WithStreamingOptions(opts ...streaming.Option) MessagesOption {
	return func(h *MessagesHandler) {
		h.streamOpts = append(h.streamOpts, opts...)
	}
}

// WithCloseTimeout 设置轮次结束时等待流式回复收尾的最长时间
func WithCloseTimeout(d time.Duration) MessagesOption {
	return func(h *MessagesHandler) {
		if d > 0 {
			h.closeTimeout = d
		}
	}
}

// WithOriginPatterns 设置 WebSocket 允许的跨域来源
func WithOriginPatterns(patterns ...string) MessagesOption {
	return func(h *MessagesHandler) {
		h.originPatterns = append(h.originPatterns, patterns...)
	}
}

// NewMessagesHandler 创建消息处理器。client 为 nil 时不支持 normal 投递模式。
func NewMessagesHandler(agent turn.Handler, client turn.ConversationClient, logger *zap.Logger, opts ...MessagesOption) *MessagesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &MessagesHandler{
		agent:        agent,
		client:       client,
		logger:       logger.With(zap.String("component", "messages_handler")),
		closeTimeout: streaming.DefaultEndStreamTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleMessages 处理 POST /api/messages
// @Summary 投递活动
// @Description 执行一次对话轮次，按 deliveryMode 返回回复
// @Tags 消息
// @Accept json
// @Produce json,text/event-stream
// @Success 200 {object} types.ExpectedReplies "expectReplies 模式的回复"
// @Success 202 "normal 模式已受理"
// @Failure 400 {object} Response "无效活动"
// @Router /api/messages [post]
func (h *MessagesHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteErrorMessage(w, r, http.StatusMethodNotAllowed, types.ErrInvalidRequest, "method not allowed", h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var activity types.Activity
	// 渠道会附带大量扩展字段，这里不使用严格模式
	if err := decodeBody(w, r, &activity, false, h.logger); err != nil {
		return
	}
	if err := validateActivity(&activity); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	ctx := withActivityContext(r.Context(), &activity)
	switch activity.EffectiveDeliveryMode() {
	case types.DeliveryModeExpectReplies:
		h.handleExpectReplies(ctx, w, r, &activity)
	case types.DeliveryModeStream:
		h.handleStream(ctx, w, r, &activity)
	default:
		h.handleNormal(ctx, w, r, &activity)
	}
}

func (h *MessagesHandler) handleExpectReplies(ctx context.Context, w http.ResponseWriter, r *http.Request, activity *types.Activity) {
	sender := turn.NewBufferedSender()
	if err := h.runTurn(ctx, activity, sender); err != nil {
		WriteError(w, r, ToAPIError(err), h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, sender.Replies())
}

func (h *MessagesHandler) handleStream(ctx context.Context, w http.ResponseWriter, r *http.Request, activity *types.Activity) {
	sender, err := turn.NewSSESender(w)
	if err != nil {
		WriteError(w, r, ToAPIError(err), h.logger)
		return
	}

	err = h.runTurn(ctx, activity, sender)
	if err != nil && !sender.Started() {
		WriteError(w, r, ToAPIError(err), h.logger)
		return
	}
	if err != nil {
		// 事件流已开始，只能记录日志后正常结束
		h.logger.Error("turn failed after event stream started", zap.Error(err))
	}
	sender.End()
}

func (h *MessagesHandler) handleNormal(ctx context.Context, w http.ResponseWriter, r *http.Request, activity *types.Activity) {
	if h.client == nil {
		WriteErrorMessage(w, r, http.StatusServiceUnavailable, types.ErrServiceUnavailable,
			"no connector configured for normal delivery", h.logger)
		return
	}
	if err := h.runTurn(ctx, activity, turn.NewConnectorSender(h.client)); err != nil {
		WriteError(w, r, ToAPIError(err), h.logger)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// HandleWebSocket 处理 GET /api/messages/ws。每个文本帧是一个活动，
// 按接收顺序逐个执行，回复以 JSON 文本帧写回同一连接。
func (h *MessagesHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	sender := turn.NewWebSocketSender(conn)
	ctx := r.Context()
	for {
		var activity types.Activity
		if err := wsjson.Read(ctx, conn, &activity); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return
			}
			h.logger.Warn("websocket read failed", zap.Error(err))
			conn.Close(websocket.StatusUnsupportedData, "invalid activity")
			return
		}
		if err := validateActivity(&activity); err != nil {
			h.logger.Warn("websocket activity rejected", zap.Error(err))
			conn.Close(websocket.StatusPolicyViolation, err.Message)
			return
		}

		if err := h.runTurn(withActivityContext(ctx, &activity), &activity, sender); err != nil {
			h.logger.Error("websocket turn failed", zap.Error(err))
			conn.Close(websocket.StatusInternalError, "turn failed")
			return
		}
	}
}

// =============================================================================
// 🔧 轮次执行
// =============================================================================

// runTurn 执行处理器并收尾未结束的流式回复
func (h *MessagesHandler) runTurn(ctx context.Context, activity *types.Activity, sender turn.Sender) error {
	tc, err := turn.NewContext(activity, sender,
		turn.WithLogger(h.logger),
		turn.WithStreamingOptions(h.streamOpts...))
	if err != nil {
		return err
	}

	start := time.Now()
	turnErr := h.agent.OnTurn(ctx, tc)

	closeCtx, cancel := context.WithTimeout(ctx, h.closeTimeout)
	defer cancel()
	closeErr := tc.Close(closeCtx)

	h.logger.Debug("turn completed",
		zap.String("activity_type", string(activity.Type)),
		zap.String("delivery_mode", string(activity.EffectiveDeliveryMode())),
		zap.Bool("responded", tc.Responded()),
		zap.Duration("duration", time.Since(start)),
		zap.Error(turnErr))

	if turnErr != nil {
		return turnErr
	}
	return closeErr
}

func validateActivity(a *types.Activity) *types.Error {
	if a.Type == "" {
		return types.NewError(types.ErrInvalidRequest, "activity type is required")
	}
	if a.Conversation == nil || a.Conversation.ID == "" {
		return types.NewError(types.ErrInvalidRequest, "activity conversation is required")
	}
	return nil
}

func withActivityContext(ctx context.Context, a *types.Activity) context.Context {
	if a.ChannelID != "" {
		ctx = types.WithChannelID(ctx, a.ChannelID)
	}
	if a.Conversation != nil {
		ctx = types.WithConversationID(ctx, a.Conversation.ID)
		if a.Conversation.TenantID != "" {
			ctx = types.WithTenantID(ctx, a.Conversation.TenantID)
		}
	}
	return ctx
}
