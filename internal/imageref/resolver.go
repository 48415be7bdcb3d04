package imageref

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"chartlens/internal/logger"
)

// 中文说明：
// 图像引用归一化。入参可能是三种形态之一：
//   1) data URI（已内联）  2) 绝对 URL  3) 服务器相对路径
// 前两种原样返回（幂等）；相对路径按命名空间映射到磁盘，再按策略
// 内联为 data URI 或改写为对外可达的绝对 URL。
// 资产缺失一律返回 absent（ok=false），调用方按“跳过该图”降级，绝不中断装配。

// Resolver 把任意图像引用归一化为模型可直接消费的形态。
// ok=false 表示该引用无法落地（资产缺失/不可读），调用方应省略该图。
type Resolver interface {
	Resolve(ctx context.Context, ref string) (resolved string, ok bool)
}

// Roots 三个文件命名空间的磁盘根目录（进程启动时确定，此后只读）。
type Roots struct {
	Uploads string // /uploads/** → 用户上传原图
	Public  string // 其余以 / 开头的路径 → 生成的衍生图等公开资产
	Private string // 裸路径 → 私有命名空间
}

// StrategyInline / StrategyBaseURL 为 resolver.strategy 的两个合法取值。
const (
	StrategyInline  = "inline"
	StrategyBaseURL = "base_url"
)

// FromStrategy 按配置选择归一化策略。未识别的策略回退 inline（更安全：
// 不要求模型能访问本服务源站）。
func FromStrategy(strategy string, roots Roots, baseURL string) Resolver {
	if strings.EqualFold(strings.TrimSpace(strategy), StrategyBaseURL) {
		return &BaseURLResolver{Roots: roots, BaseURL: baseURL}
	}
	return &InlineResolver{Roots: roots}
}

// IsInline 判断引用是否已是内联 data URI。
func IsInline(ref string) bool { return strings.HasPrefix(ref, "data:") }

// IsAbsoluteURL 判断引用是否已是绝对 URL。
func IsAbsoluteURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// localPath 把服务器相对路径映射到磁盘路径及其对外 URL 路径。
func (r Roots) localPath(ref string) (diskPath string, urlPath string, private bool) {
	switch {
	case strings.HasPrefix(ref, "/uploads/"):
		return filepath.Join(r.Uploads, strings.TrimPrefix(ref, "/uploads/")), ref, false
	case strings.HasPrefix(ref, "/"):
		return filepath.Join(r.Public, strings.TrimPrefix(ref, "/")), ref, false
	default:
		return filepath.Join(r.Private, ref), "", true
	}
}

// InlineResolver 读取底层资产并编码为自包含的 data URI。
// 默认策略：产出不依赖外部可达性，模型无需回源。
type InlineResolver struct {
	Roots Roots
}

func (s *InlineResolver) Resolve(ctx context.Context, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	if IsInline(ref) || IsAbsoluteURL(ref) {
		return ref, true
	}
	if err := ctx.Err(); err != nil {
		return "", false
	}
	diskPath, _, _ := s.Roots.localPath(ref)
	data, err := os.ReadFile(diskPath)
	if err != nil {
		logger.Warnf("图像引用解析失败（按省略降级）: %s: %v", ref, err)
		return "", false
	}
	return EncodeDataURI(ContentTypeFor(diskPath), data), true
}

// BaseURLResolver 把相对路径改写为 BaseURL 下的绝对 URL。
// 要求部署方保证模型侧能访问 BaseURL；私有命名空间不对外暴露，仍走内联。
// 改写前先确认资产存在，避免向模型递出死链。
type BaseURLResolver struct {
	Roots   Roots
	BaseURL string
}

func (s *BaseURLResolver) Resolve(ctx context.Context, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	if IsInline(ref) || IsAbsoluteURL(ref) {
		return ref, true
	}
	if err := ctx.Err(); err != nil {
		return "", false
	}
	diskPath, urlPath, private := s.Roots.localPath(ref)
	if private {
		inline := &InlineResolver{Roots: s.Roots}
		return inline.Resolve(ctx, ref)
	}
	if _, err := os.Stat(diskPath); err != nil {
		logger.Warnf("图像引用解析失败（按省略降级）: %s: %v", ref, err)
		return "", false
	}
	return strings.TrimRight(s.BaseURL, "/") + urlPath, true
}

// EncodeDataURI 组合 Content-Type 与字节为内联载荷。
func EncodeDataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
