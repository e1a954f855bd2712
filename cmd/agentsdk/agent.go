package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/microsoft/Agents-for-net-sub004/agent/citations"
	"github.com/microsoft/Agents-for-net-sub004/agent/turn"
	"github.com/microsoft/Agents-for-net-sub004/types"
)

// =============================================================================
// 🤖 示例流式 Agent
// =============================================================================

// echoAgent 将用户输入逐词流式回显，演示状态更新、分块文本和引用
type echoAgent struct {
	wordDelay time.Duration
	logger    *zap.Logger
}

var _ turn.Handler = (*echoAgent)(nil)

func newEchoAgent(wordDelay time.Duration, logger *zap.Logger) *echoAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &echoAgent{
		wordDelay: wordDelay,
		logger:    logger.With(zap.String("component", "echo_agent")),
	}
}

// OnTurn 处理一轮消息。非流式渠道直接发送完整回复。
func (a *echoAgent) OnTurn(ctx context.Context, tc *turn.Context) error {
	in := tc.Activity()
	if in.Type != types.ActivityTypeMessage {
		a.logger.Debug("ignoring non-message activity", zap.String("type", string(in.Type)))
		return nil
	}

	answer := composeAnswer(in.Text)
	stream, err := tc.StreamingResponse()
	if err != nil {
		return err
	}
	if !stream.IsStreamingChannel() {
		_, err := tc.SendText(ctx, citations.FormatCitations(answer))
		return err
	}

	if err := stream.QueueInformativeUpdate(ctx, "Thinking..."); err != nil {
		return err
	}
	stream.AddCitation(citations.Citation{
		Title:   "Conversation transcript",
		Content: in.Text,
	})

	for _, word := range strings.SplitAfter(answer, " ") {
		if err := ctx.Err(); err != nil {
			return err
		}
		if a.wordDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(a.wordDelay):
			}
		}
		stream.QueueTextChunk(word)
	}

	result, err := stream.EndStream(ctx)
	if err != nil {
		return err
	}
	a.logger.Debug("reply streamed",
		zap.Stringer("result", result),
		zap.Int("updates", stream.UpdatesSent()))
	return nil
}

func composeAnswer(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "I did not receive any text."
	}
	return fmt.Sprintf("You said: %s [doc1]", text)
}
