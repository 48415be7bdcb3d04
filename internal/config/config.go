package config

import (
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// 配置结构体（进程启动时加载一次，此后只读；组件在构造期注入所需分节）
type Config struct {
	App struct {
		Env      string `toml:"env"`
		LogLevel string `toml:"log_level"`
		HTTPAddr string `toml:"http_addr"`
	} `toml:"app"`

	Server struct {
		// BaseURL 对外可达的服务根地址；resolver.strategy=base_url 时用于拼接绝对图像 URL
		BaseURL    string `toml:"base_url"`
		UploadsDir string `toml:"uploads_dir"`
		PublicDir  string `toml:"public_dir"`
		PrivateDir string `toml:"private_dir"`
	} `toml:"server"`

	Resolver struct {
		// Strategy 图像引用归一化策略：inline（读文件内联为 data URI，默认）
		// 或 base_url（改写为 BaseURL 下的绝对 URL，要求模型可回源）
		Strategy string `toml:"strategy"`
	} `toml:"resolver"`

	Prompt struct {
		Dir            string `toml:"dir"`
		SystemTemplate string `toml:"system_template"`
		Debug          bool   `toml:"debug"` // 开启后输出提示词指纹/长度/图像计数等诊断日志
	} `toml:"prompt"`

	Model struct {
		APIURL         string            `toml:"api_url"`
		APIKey         string            `toml:"api_key"`
		Model          string            `toml:"model"`
		TimeoutSeconds int               `toml:"timeout_seconds"`
		Headers        map[string]string `toml:"headers"`
	} `toml:"model"`

	Retrieval struct {
		APIURL         string `toml:"api_url"`
		TimeoutSeconds int    `toml:"timeout_seconds"`
		DefaultK       int    `toml:"default_k"`
	} `toml:"retrieval"`

	MapGen struct {
		DepthURL       string `toml:"depth_url"`
		EdgeURL        string `toml:"edge_url"`
		GradientURL    string `toml:"gradient_url"`
		TimeoutSeconds int    `toml:"timeout_seconds"`
		// ReferenceImage 健康检查用的基准图（服务器相对路径）；
		// 未配置生成服务 URL 时按其衍生图文件是否存在判断就绪
		ReferenceImage string `toml:"reference_image"`
	} `toml:"mapgen"`

	Probe struct {
		// TargetURL 留空时探针指向本进程自身的 /api/analysis
		TargetURL            string `toml:"target_url"`
		ExpectedSimilarCount int    `toml:"expected_similar_count"`
		TimeoutSeconds       int    `toml:"timeout_seconds"`
		IntervalSeconds      int    `toml:"interval_seconds"` // >0 时周期性自动巡检
		LogPath              string `toml:"log_path"`         // 留空则不落盘探针历史
	} `toml:"probe"`
}

// Load 读取并解析 TOML 配置文件，并设置缺省值与基本校验
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 TOML 失败: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// 默认值设置
func applyDefaults(c *Config) {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":8080"
	}
	if c.Server.UploadsDir == "" {
		c.Server.UploadsDir = "data/uploads"
	}
	if c.Server.PublicDir == "" {
		c.Server.PublicDir = "data/public"
	}
	if c.Server.PrivateDir == "" {
		c.Server.PrivateDir = "data/private"
	}
	if c.Resolver.Strategy == "" {
		c.Resolver.Strategy = "inline"
	}
	if c.Prompt.Dir == "" {
		c.Prompt.Dir = "prompts"
	}
	if c.Prompt.SystemTemplate == "" {
		c.Prompt.SystemTemplate = "default"
	}
	if c.Model.TimeoutSeconds <= 0 {
		c.Model.TimeoutSeconds = 120
	}
	if c.Retrieval.TimeoutSeconds <= 0 {
		c.Retrieval.TimeoutSeconds = 30
	}
	if c.Retrieval.DefaultK <= 0 {
		c.Retrieval.DefaultK = 3
	}
	if c.MapGen.TimeoutSeconds <= 0 {
		c.MapGen.TimeoutSeconds = 10
	}
	if c.Probe.ExpectedSimilarCount <= 0 {
		c.Probe.ExpectedSimilarCount = 3
	}
	if c.Probe.TimeoutSeconds <= 0 {
		c.Probe.TimeoutSeconds = 60
	}
}

// 基础校验
func validate(c *Config) error {
	switch strings.ToLower(c.Resolver.Strategy) {
	case "inline", "base_url":
	default:
		return fmt.Errorf("非法 resolver.strategy: %s（仅支持 inline / base_url）", c.Resolver.Strategy)
	}
	if strings.EqualFold(c.Resolver.Strategy, "base_url") && strings.TrimSpace(c.Server.BaseURL) == "" {
		return fmt.Errorf("resolver.strategy=base_url 时必须配置 server.base_url")
	}
	if c.Model.Model == "" {
		return fmt.Errorf("model.model 不能为空")
	}
	if c.Retrieval.APIURL == "" {
		return fmt.Errorf("retrieval.api_url 不能为空")
	}
	if c.Retrieval.DefaultK > 50 {
		return fmt.Errorf("retrieval.default_k 需在 [1,50]")
	}
	if c.Probe.IntervalSeconds < 0 {
		return fmt.Errorf("probe.interval_seconds 不能为负")
	}
	return nil
}
