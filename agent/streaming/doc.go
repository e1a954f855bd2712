// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 streaming 提供面向会话渠道的增量回复流式输出能力。

# 概述

StreamingResponse 绑定到一次 turn，把生成器（通常是 LLM）产生的文本
片段累积起来，按照渠道策略的节奏以"typing"活动重复发送完整的累计文本，
最后以一条 final 消息收尾。渠道策略由入站活动的 channelId、deliveryMode
和 agentic 标记一次性解析（见 agent/channels）。

# 核心接口

  - TurnContext：提供入站活动与 SendActivity 发送出口
  - Observer：流生命周期事件回调（开始、发送、失败、结束），默认 NopObserver

# 主要能力

  - 文本批处理：基于 llm/streaming.ChunkBatcher，相同内容不重复发送
  - 单发送协程：所有发送串行执行，未开始的文本更新会被更新的文本覆盖
  - 流 ID 稳定：客户端分配（uuid）或采用首个成功响应返回的 ID
  - 序列号：每次成功发送递增，Reset 后从 1 重新开始
  - 引用处理：[docN] 改写为 [N]，只附带当前文本中出现的引用
  - 结束超时：流开始时启动 EndStreamTimeout 计时器，到期自动结束
  - 渠道限速：策略设置 MinSendInterval 时使用 x/time/rate 控制发送间隔
  - 失败容忍：发送失败只记录 Warn 日志并通知 Observer，不影响流状态
*/
package streaming
