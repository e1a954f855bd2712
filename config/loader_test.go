// 配置加载器测试。
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Loader 测试 ---

func TestLoader_LoadDefaults(t *testing.T) {
	cfg, err := NewLoader().WithEnvPrefix("AGENTSDK_TEST_NONE").Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 3978, cfg.Server.HTTPPort)
	assert.Equal(t, 2*time.Minute, cfg.Streaming.EndStreamTimeout)
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadFromYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlContent := `
server:
  http_port: 8888
  read_timeout: 60s
  cors_allowed_origins:
    - https://teams.microsoft.com

streaming:
  end_stream_timeout: 90s
  enable_generated_by_ai_label: true
  citation_snippet_length: 200

connector:
  max_retries: 5

auth:
  jwt:
    enabled: true
    secret: "s3cret"
    issuer: "https://api.botframework.com"

log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(configPath, []byte(yamlContent), 0o600))

	cfg, err := NewLoader().WithConfigPath(configPath).WithEnvPrefix("AGENTSDK_TEST_NONE").Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, 60*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"https://teams.microsoft.com"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.Streaming.EndStreamTimeout)
	assert.True(t, cfg.Streaming.EnableGeneratedByAILabel)
	assert.Equal(t, 200, cfg.Streaming.CitationSnippetLength)
	assert.Equal(t, 5, cfg.Connector.MaxRetries)
	assert.True(t, cfg.Auth.JWT.Enabled)
	assert.Equal(t, "s3cret", cfg.Auth.JWT.Secret)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 未在文件中出现的字段保留默认值
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
	assert.Equal(t, 30*time.Second, cfg.Streaming.SendTimeout)
}

func TestLoader_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultServerConfig().HTTPPort, cfg.Server.HTTPPort)
}

func TestLoader_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server: [not a map"), 0o600))

	_, err := NewLoader().WithConfigPath(configPath).Load()
	assert.Error(t, err)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  http_port: 8888\n"), 0o600))

	t.Setenv("SDKTEST_SERVER_HTTP_PORT", "7777")
	t.Setenv("SDKTEST_STREAMING_END_STREAM_TIMEOUT", "45s")
	t.Setenv("SDKTEST_STREAMING_ENABLE_FEEDBACK_LOOP", "true")
	t.Setenv("SDKTEST_AUTH_API_KEYS", "key-a, key-b,")
	t.Setenv("SDKTEST_AUTH_JWT_AUDIENCE", "app-id")
	t.Setenv("SDKTEST_TELEMETRY_SAMPLE_RATE", "0.5")

	cfg, err := NewLoader().WithConfigPath(configPath).WithEnvPrefix("SDKTEST").Load()
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.HTTPPort)
	assert.Equal(t, 45*time.Second, cfg.Streaming.EndStreamTimeout)
	assert.True(t, cfg.Streaming.EnableFeedbackLoop)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.Auth.APIKeys)
	assert.Equal(t, "app-id", cfg.Auth.JWT.Audience)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
}

func TestLoader_InvalidEnvValue(t *testing.T) {
	t.Setenv("SDKBAD_SERVER_HTTP_PORT", "not-a-number")
	_, err := NewLoader().WithEnvPrefix("SDKBAD").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SDKBAD_SERVER_HTTP_PORT")
}

func TestLoader_Validators(t *testing.T) {
	called := false
	_, err := NewLoader().WithEnvPrefix("AGENTSDK_TEST_NONE").WithValidator(func(c *Config) error {
		called = true
		return c.Validate()
	}).Load()
	require.NoError(t, err)
	assert.True(t, called)

	_, err = NewLoader().WithEnvPrefix("AGENTSDK_TEST_NONE").WithValidator(func(*Config) error {
		return assert.AnError
	}).Load()
	assert.ErrorIs(t, err, assert.AnError)
}

// --- Validate 测试 ---

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"bad http port", func(c *Config) { c.Server.HTTPPort = 70000 }, "invalid HTTP port"},
		{"port clash", func(c *Config) { c.Server.MetricsPort = c.Server.HTTPPort }, "must differ"},
		{"negative end stream timeout", func(c *Config) { c.Streaming.EndStreamTimeout = -time.Second }, "end_stream_timeout"},
		{"negative snippet", func(c *Config) { c.Streaming.CitationSnippetLength = -1 }, "citation_snippet_length"},
		{"jwt without keys", func(c *Config) { c.Auth.JWT.Enabled = true }, "jwt enabled"},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "invalid log level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
		{"bad sample rate", func(c *Config) { c.Telemetry.SampleRate = 1.5 }, "sample_rate"},
		{"bad connector timeout", func(c *Config) { c.Connector.Timeout = 0 }, "connector timeout"},
		{"tls key without cert", func(c *Config) { c.Server.TLSKeyFile = "key.pem" }, "tls_cert_file"},
		{"tls pair", func(c *Config) { c.Server.TLSCertFile, c.Server.TLSKeyFile = "cert.pem", "key.pem" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(":::"), 0o600))
	assert.Panics(t, func() { MustLoad(configPath) })
}
