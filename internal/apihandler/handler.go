package apihandler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/xolotl-project/xolotl/internal/config"
	"github.com/xolotl-project/xolotl/pkg/registry"
)

// RegisterRequest 服务注册请求
type RegisterRequest struct {
	ServiceName string            `json:"service_name"`
	Environment string            `json:"environment"`
	Address     string            `json:"address"`
	Tags        map[string]string `json:"tags"`
}

// HeartbeatRequest 服务心跳请求
type HeartbeatRequest struct {
	ServiceName string `json:"service_name"`
	Environment string `json:"environment"`
}

// ApiResponse 表示通用API响应
type ApiResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// EntryResponse 服务实例的响应结构，health字段为读取时派生
type EntryResponse struct {
	ID            string                `json:"id"`
	ServiceName   string                `json:"service_name"`
	Environment   string                `json:"environment"`
	Address       string                `json:"address"`
	Tags          map[string]string     `json:"tags"`
	RegisteredAt  time.Time             `json:"registered_at"`
	LastHeartbeat time.Time             `json:"last_heartbeat"`
	Health        registry.HealthStatus `json:"health"`
}

// Server 表示服务目录HTTP API服务
type Server struct {
	echo     *echo.Echo
	cfg      *config.Config
	logger   config.Logger
	registry registry.ServiceRegistry
	policy   registry.HealthPolicy
}

// NewServer 创建一个新的HTTP API服务
//
// 注册表由调用方构造并注入，便于在测试中使用独立实例。
func NewServer(cfg *config.Config, logger config.Logger, reg registry.ServiceRegistry) *Server {
	e := echo.New()
	e.HideBanner = true

	// 添加中间件
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	s := &Server{
		echo:     e,
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		policy: registry.HealthPolicy{
			HealthyWindow: cfg.Health.HealthyWindow,
			StaleWindow:   cfg.Health.StaleWindow,
		},
	}

	s.registerRoutes()

	return s
}

// registerRoutes 注册API路由
func (s *Server) registerRoutes() {
	// 健康检查
	s.echo.GET("/health", s.healthCheck)

	// 服务目录
	s.echo.GET("/services", s.listServices)
	s.echo.POST("/services", s.registerService)
	s.echo.GET("/services/:name/:environment", s.resolveService)
	s.echo.DELETE("/services/:name/:environment", s.deregisterServiceInEnvironment)
	s.echo.DELETE("/services/:name", s.deregisterService)
	s.echo.PUT("/services/heartbeat", s.updateHeartbeat)
}

// ServeHTTP 实现http.Handler，便于测试和嵌入
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start 启动服务（非阻塞）
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.ListenAddress, s.cfg.Server.Port)
	s.logger.Info("启动服务目录API服务", zap.String("address", addr))

	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			s.logger.Error("服务目录API服务启动失败", zap.Error(err))
		}
	}()

	return nil
}

// Shutdown 优雅关闭服务
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// 返回成功响应
func successResponse(code int, message string, data interface{}) *ApiResponse {
	return &ApiResponse{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// 返回错误响应
func errorResponse(code int, message string) *ApiResponse {
	return &ApiResponse{
		Code:    code,
		Message: message,
	}
}

// registryErrorResponse 将注册表错误映射为HTTP响应
func (s *Server) registryErrorResponse(c echo.Context, err error) error {
	switch registry.ErrorCode(err) {
	case registry.ErrAlreadyExists:
		return c.JSON(http.StatusConflict, errorResponse(http.StatusConflict, err.Error()))
	case registry.ErrNotFound:
		return c.JSON(http.StatusNotFound, errorResponse(http.StatusNotFound, err.Error()))
	case registry.ErrInvalidArgument:
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, err.Error()))
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse(http.StatusInternalServerError, err.Error()))
	}
}

// entryResponse 构造服务实例响应
func (s *Server) entryResponse(entry *registry.ServiceEntry, now time.Time) *EntryResponse {
	tags := entry.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return &EntryResponse{
		ID:            entry.ID,
		ServiceName:   entry.ServiceName,
		Environment:   entry.Environment,
		Address:       entry.Address.String(),
		Tags:          tags,
		RegisteredAt:  entry.RegisteredAt,
		LastHeartbeat: entry.LastHeartbeat,
		Health:        s.policy.Evaluate(entry, now),
	}
}

// entryResponses 构造服务实例列表响应
func (s *Server) entryResponses(entries []*registry.ServiceEntry) []*EntryResponse {
	now := time.Now()
	responses := make([]*EntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, s.entryResponse(entry, now))
	}
	return responses
}

// healthCheck 健康检查
func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "xolotl-directory-api",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// listServices 获取所有服务实例列表
func (s *Server) listServices(c echo.Context) error {
	entries, err := s.registry.List(c.Request().Context())
	if err != nil {
		return s.registryErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, s.entryResponses(entries))
}

// registerService 注册服务实例
func (s *Server) registerService(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
	}

	// 校验必填字段
	if req.ServiceName == "" {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "服务名称不能为空"))
	}
	if req.Address == "" {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "服务地址不能为空"))
	}

	// 生成服务实例，ID和时间戳在此处创建
	entry := registry.NewServiceEntry(req.ServiceName, req.Environment, registry.ServiceAddress(req.Address), req.Tags)

	if err := s.registry.Register(c.Request().Context(), entry); err != nil {
		return s.registryErrorResponse(c, err)
	}

	s.logger.Info("服务注册成功",
		zap.String("id", entry.ID),
		zap.String("service_name", entry.ServiceName),
		zap.String("environment", entry.Environment))

	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "服务注册成功", map[string]interface{}{
		"id":            entry.ID,
		"registered_at": entry.RegisteredAt,
	}))
}

// resolveService 根据服务名和环境查询服务实例
func (s *Server) resolveService(c echo.Context) error {
	name := c.Param("name")
	environment := c.Param("environment")

	entries, err := s.registry.Resolve(c.Request().Context(), name, environment)
	if err != nil {
		return s.registryErrorResponse(c, err)
	}

	// 空结果返回404而不是空数组
	if len(entries) == 0 {
		return c.JSON(http.StatusNotFound, errorResponse(http.StatusNotFound,
			fmt.Sprintf("未找到服务: %s/%s", name, environment)))
	}

	return c.JSON(http.StatusOK, s.entryResponses(entries))
}

// deregisterServiceInEnvironment 注销指定环境下的服务实例
func (s *Server) deregisterServiceInEnvironment(c echo.Context) error {
	name := c.Param("name")
	environment := c.Param("environment")

	if err := s.registry.Deregister(c.Request().Context(), name, environment); err != nil {
		return s.registryErrorResponse(c, err)
	}

	s.logger.Info("服务注销成功",
		zap.String("service_name", name),
		zap.String("environment", environment))

	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "服务注销成功", nil))
}

// deregisterService 注销服务名在所有环境下的实例
func (s *Server) deregisterService(c echo.Context) error {
	name := c.Param("name")

	if err := s.registry.Deregister(c.Request().Context(), name, ""); err != nil {
		return s.registryErrorResponse(c, err)
	}

	s.logger.Info("服务全环境注销成功", zap.String("service_name", name))

	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "服务注销成功", nil))
}

// updateHeartbeat 更新服务心跳
func (s *Server) updateHeartbeat(c echo.Context) error {
	var req HeartbeatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "无效的请求参数: "+err.Error()))
	}

	if req.ServiceName == "" {
		return c.JSON(http.StatusBadRequest, errorResponse(http.StatusBadRequest, "服务名称不能为空"))
	}

	if err := s.registry.Heartbeat(c.Request().Context(), req.ServiceName, req.Environment); err != nil {
		return s.registryErrorResponse(c, err)
	}

	return c.JSON(http.StatusOK, successResponse(http.StatusOK, "心跳更新成功", nil))
}
