// Package config 提供宿主进程的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（前缀 AGENTSDK）的顺序加载，
// 覆盖 HTTP 服务、流式回复、出站连接器、入站认证、日志与遥测。
package config
