// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供宿主进程 HTTP 端点的请求处理器实现。

# 概述

handlers 包实现活动接收、健康检查以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口。

# 核心类型

  - MessagesHandler: 接收渠道活动并执行对话轮次，按 deliveryMode 选择回复通道
  - HealthHandler: 服务健康检查（/health, /healthz, /ready）
  - Response: 统一 JSON 响应结构（success + data + error + timestamp）
  - ErrorInfo: 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter: 包装 http.ResponseWriter 以捕获状态码，透传 Flush/Hijack
  - HealthCheck: 可插拔健康检查接口

# 主要能力

  - 投递模式：expectReplies 缓存回复随响应返回；stream 以 SSE 逐条推送；
    normal 通过连接器异步发送并返回 202
  - WebSocket：HandleWebSocket 在单条连接上顺序处理多个活动
  - 轮次收尾：处理器返回后自动结束未关闭的流式回复
  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码自动映射（4xx/5xx）
*/
package handlers
