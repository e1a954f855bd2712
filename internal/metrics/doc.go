// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖 HTTP 入口、
流式回复与出站连接器三个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，所有指标按 namespace 隔离。Collector 实现了
streaming.Observer，可直接通过 streaming.WithObserver 注入。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 流式指标：活跃流数量、开始/结束计数（按 result 分组）、
    流持续时间、已发送活动数与发送延迟（按 stream_type 分组）、
    发送失败计数（按错误码分组）。
  - 连接器指标：出站重试计数，RecordConnectorRetry 可直接
    作为 retry.Policy.OnRetry 使用。
*/
package metrics
