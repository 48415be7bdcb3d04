package http

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"chartlens/internal/analysis"
	"chartlens/internal/gateway/database"
	"chartlens/internal/health"
	"chartlens/internal/logger"
	"chartlens/internal/probe"
	"chartlens/internal/types"
)

// 中文说明：
// HTTP 传输层。健康与探针端点永远返回结构化 JSON 描述部分失败，
// 只有真正的传输层故障才允许裸 500。

type ServerConfig struct {
	Addr     string
	Analysis *analysis.Service
	Health   *health.Aggregator
	Probe    *probe.Runner
	ProbeLog *database.ProbeLogStore // 可为 nil
}

type Server struct {
	cfg    ServerConfig
	engine *gin.Engine
	srv    *nethttp.Server
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Analysis == nil || cfg.Health == nil || cfg.Probe == nil {
		return nil, fmt.Errorf("HTTP 服务依赖未就绪")
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{cfg: cfg, engine: engine}
	api := engine.Group("/api/analysis")
	api.GET("/health", s.handleHealth)
	api.GET("/probe", s.handleProbe)
	api.GET("/probe/history", s.handleProbeHistory)
	engine.POST("/api/analysis", s.handleAnalyze)

	s.srv = &nethttp.Server{Addr: cfg.Addr, Handler: engine}
	return s, nil
}

func (s *Server) Addr() string { return s.cfg.Addr }

// Start 启动监听并在 ctx 取消时优雅退出。
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Handler 暴露底层处理器，便于测试挂到 httptest 上。
func (s *Server) Handler() nethttp.Handler { return s.engine }

func (s *Server) handleHealth(c *gin.Context) {
	k, _ := strconv.Atoi(c.Query("k"))
	status := s.cfg.Health.Check(c.Request.Context(), k)
	c.JSON(nethttp.StatusOK, status)
}

func (s *Server) handleProbe(c *gin.Context) {
	report := s.cfg.Probe.Run(c.Request.Context())
	// 断言失败仍是 200；探针自身的传输级故障才是 500
	if report.Err != "" {
		c.JSON(nethttp.StatusInternalServerError, report)
		return
	}
	c.JSON(nethttp.StatusOK, report)
}

func (s *Server) handleProbeHistory(c *gin.Context) {
	if s.cfg.ProbeLog == nil {
		c.JSON(nethttp.StatusOK, gin.H{"enabled": false, "runs": []database.ProbeRunRecord{}})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	runs, err := s.cfg.ProbeLog.ListRecent(c.Request.Context(), limit)
	if err != nil {
		logger.Errorf("读取探针历史失败: %v", err)
		c.JSON(nethttp.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []database.ProbeRunRecord{}
	}
	c.JSON(nethttp.StatusOK, gin.H{"enabled": true, "runs": runs})
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req types.AnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(nethttp.StatusBadRequest, types.AnalysisResponse{Success: false, Error: "请求体不是合法 JSON: " + err.Error()})
		return
	}
	resp, err := s.cfg.Analysis.Analyze(c.Request.Context(), req)
	if err != nil {
		status := nethttp.StatusInternalServerError
		if errors.Is(err, analysis.ErrModelCall) {
			status = nethttp.StatusBadGateway
		}
		logger.Warnf("分析请求失败: %v", err)
		c.JSON(status, types.AnalysisResponse{Success: false, Error: err.Error()})
		return
	}
	c.JSON(nethttp.StatusOK, resp)
}

// ProbeTargetURL 推导探针应指向的分析入口地址。
// 显式配置优先；否则按监听地址指回本进程。
func ProbeTargetURL(configured, listenAddr string) string {
	if u := strings.TrimSpace(configured); u != "" {
		return u
	}
	host := listenAddr
	if strings.HasPrefix(host, ":") {
		host = "127.0.0.1" + host
	}
	return "http://" + host + "/api/analysis"
}
