// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 Agents SDK 的共享协议类型。

# 概述

types 是最底层的公共包，不依赖任何内部包。活动（Activity）、实体（Entity）、
错误码与上下文键都定义于此，供 agent、connector、api 等上层模块共用。

# 核心类型

  - Activity: 渠道协议中的一条活动（message / typing / event / invoke）
  - DeliveryMode: normal、expectReplies、stream 三种投递模式
  - Entity: streaminfo 与 schema.org Message（AI 标签、引用）实体
  - ClientCitation: 引用的线上格式
  - Error / ErrorCode: 结构化错误，含 HTTP 状态码、Retryable 与渠道标记

# 主要能力

  - Context 传播：WithRequestID / WithTenantID / WithChannelID /
    WithConversationID / WithUserID / WithRoles
  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode
  - 深拷贝：Activity.Clone 保证发送方修改不影响已排队的活动
*/
package types
