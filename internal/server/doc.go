// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。

# 概述

本包通过 Manager 封装 net/http.Server，统一管理监听、服务、
关闭与错误传播流程。配置证书后以 HTTPS 提供服务，内置
SIGINT/SIGTERM 信号处理。

# 核心类型

  - Manager：HTTP 服务器管理器，持有 http.Server、net.Listener
    与异步错误通道，提供 Start/Shutdown/WaitForShutdown
    等生命周期方法。
  - Config：服务器配置，包含监听地址、读写超时、空闲超时、
    最大请求头大小、优雅关闭超时与 TLS 证书路径。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 优雅关闭：Shutdown 在 ShutdownTimeout 内排空请求；仍未结束的
    长连接（SSE 流式回复、WebSocket）收到上下文取消后被强制关闭。
  - 信号监听：WaitForShutdown 监听 SIGINT/SIGTERM 并触发关闭。
  - 错误传播：Errors() 返回异步错误通道。
  - 状态查询：IsRunning/Addr/ListenAddr 提供运行状态与监听地址。
*/
package server
