package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"chartlens/internal/analysis"
	clcfg "chartlens/internal/config"
	"chartlens/internal/gateway/database"
	"chartlens/internal/gateway/mapgen"
	"chartlens/internal/gateway/provider"
	"chartlens/internal/gateway/retrieval"
	"chartlens/internal/health"
	"chartlens/internal/imageref"
	"chartlens/internal/logger"
	"chartlens/internal/probe"
	"chartlens/internal/prompt"
	transporthttp "chartlens/internal/transport/http"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 服务与周期巡检。
type App struct {
	cfg      *clcfg.Config
	server   *transporthttp.Server
	prober   *probe.Runner
	probeLog *database.ProbeLogStore
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *clcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// AppBuilder 把配置装配为可运行的 App。
type AppBuilder struct {
	cfg *clcfg.Config
}

func NewAppBuilder(cfg *clcfg.Config) *AppBuilder {
	return &AppBuilder{cfg: cfg}
}

// Build 构建全部组件。所有进程级配置在此注入，组件构造后只读。
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	cfg := b.cfg

	pm := prompt.NewManager(cfg.Prompt.Dir)
	if err := pm.Load(); err != nil {
		return nil, fmt.Errorf("加载提示词模板失败: %w", err)
	}
	if content, ok := pm.Get(cfg.Prompt.SystemTemplate); ok {
		logger.Infof("✓ 提示词模板 '%s' 已就绪，长度=%d 字符", cfg.Prompt.SystemTemplate, len([]rune(content)))
	} else {
		return nil, fmt.Errorf("未找到提示词模板 '%s'（配置缺陷）", cfg.Prompt.SystemTemplate)
	}

	roots := imageref.Roots{
		Uploads: cfg.Server.UploadsDir,
		Public:  cfg.Server.PublicDir,
		Private: cfg.Server.PrivateDir,
	}
	resolver := imageref.FromStrategy(cfg.Resolver.Strategy, roots, cfg.Server.BaseURL)
	logger.Infof("✓ 图像引用策略=%s", strings.ToLower(cfg.Resolver.Strategy))

	assembler := prompt.NewAssembler(resolver)
	tracer := prompt.Tracer{Enabled: cfg.Prompt.Debug}
	if cfg.Prompt.Debug {
		logger.Infof("✓ 提示词诊断已开启")
	}

	searcher := retrieval.NewHTTPClient(cfg.Retrieval.APIURL, time.Duration(cfg.Retrieval.TimeoutSeconds)*time.Second)
	maps := mapgen.NewClient(
		cfg.MapGen.DepthURL, cfg.MapGen.EdgeURL, cfg.MapGen.GradientURL,
		cfg.Server.PublicDir, cfg.MapGen.ReferenceImage,
		time.Duration(cfg.MapGen.TimeoutSeconds)*time.Second,
	)
	model := &provider.OpenAIVisionClient{
		BaseURL:      cfg.Model.APIURL,
		APIKey:       cfg.Model.APIKey,
		ModelName:    cfg.Model.Model,
		Timeout:      time.Duration(cfg.Model.TimeoutSeconds) * time.Second,
		ExtraHeaders: cfg.Model.Headers,
	}

	svc := &analysis.Service{
		Prompts:        pm,
		SystemTemplate: cfg.Prompt.SystemTemplate,
		Assembler:      assembler,
		Tracer:         tracer,
		Searcher:       searcher,
		Model:          model,
		DefaultK:       cfg.Retrieval.DefaultK,
	}
	agg := &health.Aggregator{
		ModelName:      cfg.Model.Model,
		Maps:           maps,
		Searcher:       searcher,
		Prompts:        pm,
		SystemTemplate: cfg.Prompt.SystemTemplate,
		Assembler:      assembler,
		ReferenceImage: cfg.MapGen.ReferenceImage,
		DefaultK:       cfg.Retrieval.DefaultK,
	}

	var probeLog *database.ProbeLogStore
	if path := strings.TrimSpace(cfg.Probe.LogPath); path != "" {
		store, err := database.NewProbeLogStore(path)
		if err != nil {
			return nil, err
		}
		probeLog = store
		logger.Infof("✓ 探针历史写入 %s", path)
	}

	prober := probe.NewRunner(
		transporthttp.ProbeTargetURL(cfg.Probe.TargetURL, cfg.App.HTTPAddr),
		cfg.Probe.ExpectedSimilarCount,
		time.Duration(cfg.Probe.TimeoutSeconds)*time.Second,
		probeLog,
	)

	server, err := transporthttp.NewServer(transporthttp.ServerConfig{
		Addr:     cfg.App.HTTPAddr,
		Analysis: svc,
		Health:   agg,
		Probe:    prober,
		ProbeLog: probeLog,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 HTTP 服务失败: %w", err)
	}
	logger.Infof("✓ HTTP 接口监听 %s", server.Addr())

	return &App{cfg: cfg, server: server, prober: prober, probeLog: probeLog}, nil
}

// Run 启动 HTTP 服务与（可选的）周期探针巡检。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := a.server.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Warnf("HTTP 服务停止: %v", err)
			return err
		}
		return nil
	})

	if interval := a.cfg.Probe.IntervalSeconds; interval > 0 {
		group.Go(func() error {
			ticker := time.NewTicker(time.Duration(interval) * time.Second)
			defer ticker.Stop()
			logger.Infof("✓ 周期探针已启用，每 %d 秒巡检一次", interval)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					a.prober.Run(ctx)
				}
			}
		})
	}

	err := group.Wait()
	a.Close()
	return err
}

// Close 释放持有的资源。
func (a *App) Close() {
	if a.probeLog != nil {
		if err := a.probeLog.Close(); err != nil {
			logger.Warnf("关闭探针日志库失败: %v", err)
		}
	}
}
