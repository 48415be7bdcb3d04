package mapgen

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"chartlens/internal/imageref"
	"chartlens/internal/logger"
	"chartlens/internal/types"
)

// 中文说明：
// 衍生图生成协作方网关。深度/边缘/梯度图由外部生成服务产出并写入
// 公开资产目录，本侧只消费两类信号：
//   1) 就绪性：生成服务是否可用（健康检查用）
//   2) 路径约定：某张上传主图对应的衍生图引用
// 本组件不生成任何图。

type Kind string

const (
	KindDepth    Kind = "depth"
	KindEdge     Kind = "edge"
	KindGradient Kind = "gradient"
)

// Readiness 衍生图就绪性信号。
type Readiness interface {
	Ready(ctx context.Context, kind Kind) bool
}

// Client 衍生图网关实现。配置了生成服务 URL 时 ping 其 /health；
// 否则退化为检查基准图的衍生文件是否存在于公开资产目录。
type Client struct {
	DepthURL       string
	EdgeURL        string
	GradientURL    string
	PublicDir      string
	ReferenceImage string
	Timeout        time.Duration
	httpc          *http.Client
}

func NewClient(depthURL, edgeURL, gradientURL, publicDir, referenceImage string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		DepthURL:       depthURL,
		EdgeURL:        edgeURL,
		GradientURL:    gradientURL,
		PublicDir:      publicDir,
		ReferenceImage: referenceImage,
		Timeout:        timeout,
		httpc:          &http.Client{Timeout: timeout},
	}
}

func (c *Client) urlFor(kind Kind) string {
	switch kind {
	case KindDepth:
		return c.DepthURL
	case KindEdge:
		return c.EdgeURL
	case KindGradient:
		return c.GradientURL
	}
	return ""
}

// Ready 判断某类衍生图当前是否可产出。任何失败都只意味着“未就绪”，不报错。
func (c *Client) Ready(ctx context.Context, kind Kind) bool {
	if url := strings.TrimSpace(c.urlFor(kind)); url != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(url, "/")+"/health", nil)
		if err != nil {
			return false
		}
		resp, err := c.httpc.Do(req)
		if err != nil {
			logger.Debugf("衍生图服务 %s 健康检查失败: %v", kind, err)
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode/100 == 2
	}
	// 无服务地址时按基准图的衍生文件存在性判断
	ref := DerivativeRef(c.ReferenceImage, kind)
	if ref == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(c.PublicDir, strings.TrimPrefix(ref, "/")))
	return err == nil
}

// DerivativesFor 按产出约定补全一张主图的衍生图引用。
// 仅服务器相对路径的主图有衍生图；内联/外链主图无从定位，返回空槽位。
func DerivativesFor(primary string) types.TargetChart {
	t := types.TargetChart{Image: primary}
	if primary == "" || imageref.IsInline(primary) || imageref.IsAbsoluteURL(primary) {
		return t
	}
	t.DepthMap = DerivativeRef(primary, KindDepth)
	t.EdgeMap = DerivativeRef(primary, KindEdge)
	t.GradientMap = DerivativeRef(primary, KindGradient)
	return t
}

// DerivativeRef 产出约定：/uploads/x.png → /maps/<kind>/x.png。
func DerivativeRef(primary string, kind Kind) string {
	if primary == "" || imageref.IsInline(primary) || imageref.IsAbsoluteURL(primary) {
		return ""
	}
	return "/maps/" + string(kind) + "/" + path.Base(primary)
}
