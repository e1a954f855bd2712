// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 Agents SDK 宿主程序入口。

# 概述

cmd/agentsdk 启动一个示例流式 Agent，通过 /api/messages 接收渠道活动，
按投递模式选择回复路径：normal 经连接器回发，expectReplies 在响应体中
返回，stream 以 SSE 推送，/api/messages/ws 走 WebSocket。

# 核心类型

  - Server: 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware: HTTP 中间件函数签名 func(http.Handler) http.Handler
  - echoAgent: 逐词流式回显的示例 Agent

# 主要能力

  - 子命令：serve、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、OTelTracing、
    MetricsMiddleware、RequestLogger、CORS、APIKeyAuth / JWTAuth、RateLimiter
  - 流式观测：Prometheus Collector 与 OTel StreamMetrics 同时接收流事件
  - 优雅关闭：信号监听 → 并行关闭 HTTP 与 Metrics → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
