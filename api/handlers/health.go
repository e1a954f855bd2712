package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/microsoft/Agents-for-net-sub004/connector"
)

// defaultReadyTimeout bounds one readiness evaluation across all checks.
const defaultReadyTimeout = 5 * time.Second

// =============================================================================
// 🏥 Agent 主机健康状态
// =============================================================================

// HealthCheck is one readiness dependency of the agent host.
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// BuildInfo 构建信息，由 main 在启动时注入
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// HealthStatus 健康状态响应
type HealthStatus struct {
	Status    string                 `json:"status"` // "healthy", "draining", "unhealthy"
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单个检查结果
type CheckResult struct {
	Status  string `json:"status"` // "pass", "fail"
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// HealthHandler serves liveness, readiness and build information.
//
// Readiness turns false once SetDraining is called so that load balancers
// stop routing new turns while open streams are still being finished.
type HealthHandler struct {
	logger   *zap.Logger
	build    BuildInfo
	started  time.Time
	timeout  time.Duration
	draining atomic.Bool

	mu     sync.RWMutex
	checks []HealthCheck
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(build BuildInfo, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:  logger.With(zap.String("component", "health")),
		build:   build,
		started: time.Now(),
		timeout: defaultReadyTimeout,
	}
}

// RegisterCheck adds a readiness dependency.
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, check)
}

// SetDraining marks the host as shutting down. Liveness is unaffected.
func (h *HealthHandler) SetDraining() {
	if !h.draining.Swap(true) {
		h.logger.Info("host draining, readiness disabled")
	}
}

// =============================================================================
// 🎯 HTTP 处理程序
// =============================================================================

// HandleLive serves /health and /healthz. The process answering is enough.
func (h *HealthHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(h.started).Round(time.Second).String(),
	})
}

// HandleReady serves /ready and /readyz. Checks run concurrently under one
// deadline; any failure or a draining host answers 503.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.mu.RLock()
	checks := append([]HealthCheck(nil), h.checks...)
	h.mu.RUnlock()

	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, check := range checks {
		i, check := i, check
		g.Go(func() error {
			results[i] = h.runCheck(ctx, check)
			return nil
		})
	}
	_ = g.Wait()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckResult, len(checks)),
	}
	code := http.StatusOK
	for i, check := range checks {
		status.Checks[check.Name()] = results[i]
		if results[i].Status != "pass" {
			status.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	if h.draining.Load() {
		status.Status = "draining"
		code = http.StatusServiceUnavailable
	}

	WriteJSON(w, code, status)
}

func (h *HealthHandler) runCheck(ctx context.Context, check HealthCheck) CheckResult {
	start := time.Now()
	err := check.Check(ctx)
	latency := time.Since(start)

	result := CheckResult{Status: "pass", Latency: latency.String()}
	if err != nil {
		result.Status = "fail"
		result.Message = err.Error()
		h.logger.Warn("readiness check failed",
			zap.String("check", check.Name()),
			zap.Error(err),
			zap.Duration("latency", latency))
	}
	return result
}

// HandleVersion serves /version.
func (h *HealthHandler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, h.build)
}

// =============================================================================
// 🔧 内置检查
// =============================================================================

// CheckFunc 以函数形式实现的健康检查
type CheckFunc struct {
	name  string
	check func(ctx context.Context) error
}

// NewCheck 创建函数式健康检查
func NewCheck(name string, check func(ctx context.Context) error) *CheckFunc {
	return &CheckFunc{name: name, check: check}
}

func (c *CheckFunc) Name() string { return c.name }

func (c *CheckFunc) Check(ctx context.Context) error { return c.check(ctx) }

// errNoConnectorToken 连接器没有可用令牌时，正常投递模式的回复无法发出
var errNoConnectorToken = errors.New("connector token not configured")

// TokenCheck reports whether the connector can authenticate outgoing
// activities. Normal delivery turns fail without a token.
func TokenCheck(tokens connector.TokenProvider) *CheckFunc {
	return NewCheck("connector_token", func(ctx context.Context) error {
		token, err := tokens.Token(ctx)
		if err != nil {
			return err
		}
		if token == "" {
			return errNoConnectorToken
		}
		return nil
	})
}
