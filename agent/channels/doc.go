// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
包 channels 将渠道标识与投递模式映射为流式输出参数。

# 概述

不同渠道对增量更新的支持各不相同：Teams 由服务端分配流 ID 且限速
1 次/秒，Web Chat 与 Direct Line 由客户端预先生成流 ID，delivery mode
为 stream 的请求以 100ms 节奏推送，expectReplies 则完全不支持流式。
本包把这些规则收敛为一个纯函数，便于穷举测试。

# 核心接口

  - Resolve: (channelID, deliveryMode, isAgentic) → Policy，按优先级首条命中
  - ResolveActivity: 直接从入站 Activity 解析
  - Policy: 是否启用、批处理间隔、流 ID 分配方式、发送节流、channelData 镜像
*/
package channels
