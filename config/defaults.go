// =============================================================================
// 📦 默认配置
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Streaming: DefaultStreamingConfig(),
		Connector: DefaultConnectorConfig(),
		Auth:      DefaultAuthConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        3978,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    0, // 流式回复可能持续到 EndStreamTimeout，不设写超时
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultStreamingConfig 返回默认流式配置
func DefaultStreamingConfig() StreamingConfig {
	return StreamingConfig{
		EndStreamTimeout:      2 * time.Minute, // Teams 的流式上限
		SendTimeout:           30 * time.Second,
		CitationSnippetLength: 480,
	}
}

// DefaultConnectorConfig 返回默认连接器配置
func DefaultConnectorConfig() ConnectorConfig {
	return ConnectorConfig{
		Timeout:      15 * time.Second,
		MaxRetries:   3,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// DefaultAuthConfig 返回默认认证配置（全部关闭）
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agents-sdk",
		SampleRate:   0.1,
	}
}
