// Copyright 2025-2026 AgentFlow Authors. All rights reserved.

// Package connector 实现 Bot Connector 出站客户端。
//
// Client.SendToConversation 将活动 POST 到
// {serviceUrl}/v3/conversations/{conversationId}/activities[/{replyToId}]，
// 携带 TokenProvider 提供的 Bearer 令牌。非 2xx 响应映射为 types.Error
// （429 可重试，5xx 可重试，401/403 不可重试），瞬时错误通过
// internal/retry 指数退避重试。
package connector
