// Package tlsutil 提供集中式 TLS 配置，供消息端点（HTTPS）和连接器的
// 出站请求共用（TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
