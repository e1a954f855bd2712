package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/microsoft/Agents-for-net-sub004/agent/streaming"
	"github.com/microsoft/Agents-for-net-sub004/api/handlers"
	"github.com/microsoft/Agents-for-net-sub004/config"
	"github.com/microsoft/Agents-for-net-sub004/connector"
	"github.com/microsoft/Agents-for-net-sub004/internal/metrics"
	"github.com/microsoft/Agents-for-net-sub004/internal/retry"
	"github.com/microsoft/Agents-for-net-sub004/internal/server"
	"github.com/microsoft/Agents-for-net-sub004/internal/telemetry"
	"github.com/microsoft/Agents-for-net-sub004/internal/tlsutil"
)

// defaultWordDelay 示例 Agent 每个词之间的生成间隔
const defaultWordDelay = 50 * time.Millisecond

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 Agents SDK 的主服务器
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers
	namespace string

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Handlers
	healthHandler   *handlers.HealthHandler
	messagesHandler *handlers.MessagesHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, providers *telemetry.Providers) *Server {
	return &Server{
		cfg:       cfg,
		logger:    logger,
		telemetry: providers,
		namespace: "agentsdk",
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	handler, err := s.buildHandler()
	if err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	if err := s.startHTTPServer(handler); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// buildHandler 初始化指标、handlers 和中间件链
func (s *Server) buildHandler() (http.Handler, error) {
	s.metricsCollector = metrics.NewCollector(s.namespace, s.logger)
	if err := s.initHandlers(); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("/health", s.healthHandler.HandleLive)
	mux.HandleFunc("/healthz", s.healthHandler.HandleLive)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion)

	// 消息入口
	mux.HandleFunc("/api/messages", s.messagesHandler.HandleMessages)
	mux.HandleFunc("/api/messages/ws", s.messagesHandler.HandleWebSocket)

	return Chain(mux, s.middlewares()...), nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() error {
	s.healthHandler = handlers.NewHealthHandler(handlers.BuildInfo{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
	}, s.logger)

	tokens := connector.NewStaticTokenProvider(s.cfg.Connector.Token)
	client := connector.NewClient(tokens,
		connector.WithHTTPClient(tlsutil.SecureHTTPClient(s.cfg.Connector.Timeout)),
		connector.WithRetryPolicy(s.retryPolicy()),
		connector.WithLogger(s.logger),
	)

	s.healthHandler.RegisterCheck(handlers.TokenCheck(tokens))

	s.messagesHandler = handlers.NewMessagesHandler(
		newEchoAgent(defaultWordDelay, s.logger),
		client,
		s.logger,
		handlers.WithStreamingOptions(s.streamingOptions()...),
		handlers.WithCloseTimeout(s.cfg.Streaming.EndStreamTimeout),
		handlers.WithOriginPatterns(s.cfg.Server.CORSAllowedOrigins...),
	)

	s.logger.Info("Handlers initialized")
	return nil
}

func (s *Server) retryPolicy() retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxRetries = s.cfg.Connector.MaxRetries
	if s.cfg.Connector.InitialDelay > 0 {
		policy.InitialDelay = s.cfg.Connector.InitialDelay
	}
	if s.cfg.Connector.MaxDelay > 0 {
		policy.MaxDelay = s.cfg.Connector.MaxDelay
	}
	policy.OnRetry = s.metricsCollector.RecordConnectorRetry
	return policy
}

// streamingOptions 将配置映射为流式回复选项
func (s *Server) streamingOptions() []streaming.Option {
	observer := telemetry.MultiObserver{s.metricsCollector}
	if otelStreams := s.telemetry.StreamObserver(); otelStreams != nil {
		observer = append(observer, otelStreams)
	}

	sc := s.cfg.Streaming
	return []streaming.Option{
		streaming.WithEndStreamTimeout(sc.EndStreamTimeout),
		streaming.WithSendTimeout(sc.SendTimeout),
		streaming.WithGeneratedByAILabel(sc.EnableGeneratedByAILabel),
		streaming.WithFeedbackLoop(sc.EnableFeedbackLoop),
		streaming.WithCitationSnippetLength(sc.CitationSnippetLength),
		streaming.WithObserver(observer),
		streaming.WithTracer(s.telemetry.Tracer()),
	}
}

// middlewares 构建中间件链
func (s *Server) middlewares() []Middleware {
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}

	chain := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
	}
	if s.cfg.Telemetry.Enabled {
		chain = append(chain, OTelTracing())
	}
	chain = append(chain,
		MetricsMiddleware(s.metricsCollector),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.CORSAllowedOrigins),
	)

	auth := s.cfg.Auth
	rateKey := ClientIPKey
	switch {
	case auth.JWT.Enabled:
		chain = append(chain, JWTAuth(auth.JWT, skipAuthPaths, s.logger))
		rateKey = TenantKey
	case len(auth.APIKeys) > 0:
		chain = append(chain, APIKeyAuth(auth.APIKeys, skipAuthPaths, auth.AllowQueryAPIKey, s.logger))
	default:
		s.logger.Warn("no authentication configured, /api/messages is open")
	}

	if s.cfg.Server.RateLimitRPS > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.rateLimiterCancel = cancel
		chain = append(chain, RateLimiter(ctx,
			float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, rateKey, s.logger))
	}
	return chain
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) startHTTPServer(handler http.Handler) error {
	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		TLSCertFile:     s.cfg.Server.TLSCertFile,
		TLSKeyFile:      s.cfg.Server.TLSKeyFile,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务。HTTP 关闭会等待进行中的流结束。
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	// 先摘除就绪状态，进行中的流在 HTTP 关闭期间结束
	if s.healthHandler != nil {
		s.healthHandler.SetDraining()
	}

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	ctx := context.Background()
	var g errgroup.Group
	for name, m := range map[string]*server.Manager{"http": s.httpManager, "metrics": s.metricsManager} {
		if m == nil {
			continue
		}
		name, m := name, m
		g.Go(func() error {
			if err := m.Shutdown(ctx); err != nil {
				return fmt.Errorf("%s server shutdown: %w", name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("server shutdown error", zap.Error(err))
	}

	// 服务器关闭后再刷新遥测，确保最后的流指标被导出
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.telemetry.Shutdown(flushCtx); err != nil {
		s.logger.Error("telemetry shutdown error", zap.Error(err))
	}

	s.logger.Info("Graceful shutdown completed")
}
