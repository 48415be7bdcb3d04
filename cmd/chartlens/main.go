package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chartlens/internal/app"
	clcfg "chartlens/internal/config"
	"chartlens/internal/logger"
)

// 入口程序：
// 1) 加载 TOML 配置
// 2) 构建应用（提示词模板/图像归一化策略/协作方网关/HTTP 服务）
// 3) 运行至收到退出信号
func main() {
	cfgPath := os.Getenv("CHARTLENS_CONFIG")
	if cfgPath == "" {
		cfgPath = "configs/config.toml"
	}

	cfg, err := clcfg.Load(cfgPath)
	if err != nil {
		log.Fatalf("读取配置失败: %v", err)
	}
	logger.SetLevel(cfg.App.LogLevel)
	logger.Infof("✓ 配置加载成功（环境=%s，监听=%s，归一化策略=%s）",
		cfg.App.Env, cfg.App.HTTPAddr, cfg.Resolver.Strategy)

	application, err := app.NewApp(cfg)
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("运行失败: %v", err)
	}
	logger.Infof("已退出")
}
