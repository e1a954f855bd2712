// Copyright 2026 AgentFlow Authors

// Package turn 提供单次会话轮次（turn）的上下文与出站发送器。
//
// Context 持有入站活动，负责补全回复的路由字段（会话、收发方互换、
// serviceUrl、replyToId），并按需创建本轮唯一的 StreamingResponse。
// 发送器按 deliveryMode 选择：ConnectorSender（normal）、
// BufferedSender（expectReplies）、SSESender（stream）以及
// WebSocketSender（/api/messages/ws）。
package turn
