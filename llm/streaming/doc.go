// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 streaming 提供模型增量输出的节流原语。

# 概述

模型的 token 以高频增量到达，而渠道只能承受固定节奏的更新。
ChunkBatcher 将到达的分块累积为完整文本，并按固定间隔把累积值
推送给订阅者；同一间隔内的多个分块只产生一次推送。

# 核心类型

  - ChunkBatcher: 单 goroutine 驱动的累积节流器，命令通过通道串行处理

# 主要能力

  - 累积语义：每次推送携带从开始到当前的完整文本，而非增量
  - 动态间隔：SetInterval 在运行中调整节奏
  - 收尾：Complete 推送尚未发出的文本后停止；Dispose 直接丢弃
  - 多订阅者：Subscribe 返回取消函数，订阅者按注册顺序收到推送
*/
package streaming
