package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"

	"chartlens/internal/logger"
	"chartlens/internal/pkg/text"
)

// 中文说明：
// 提示词诊断：仅在配置开启时输出系统提示词指纹（用于跨请求变更检测，
// 不落全文）、长度、有界前缀、图像片段数、调试标记是否在场。
// 只读不改载荷；日志失败不能拖垮请求，panic 一律吞掉并告警。

// markerRe 调试标记格式，探针注入与诊断检测共用同一模式。
var markerRe = regexp.MustCompile(`\[TRACE:[0-9a-fA-F-]+\]`)

// Marker 生成带相关标识的调试标记文本。
func Marker(id string) string { return "[TRACE:" + id + "]" }

// HasMarker 判断文本中是否出现调试标记。
func HasMarker(s string) bool { return markerRe.MatchString(s) }

// Tracer 提示词诊断器。Enabled 在构造期注入（来自 prompt.debug 配置），此后只读。
type Tracer struct {
	Enabled bool
}

// Trace 输出一条载荷诊断日志；关闭时为零开销空操作。
func (t Tracer) Trace(label string, p Payload) {
	if !t.Enabled {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("提示词诊断失败（已忽略，不影响请求）: %v", r)
		}
	}()
	logger.LogPromptPayload(label, fmt.Sprintf(
		"指纹=%s 系统长度=%d 前缀=%q 图像数=%d 标记在场=%v",
		Fingerprint(p.System), len(p.System), text.Truncate(p.System, 120),
		p.ImagePartCount(), HasMarker(p.UserText())))
}

// Fingerprint 返回内容的定长指纹（sha256 前 16 个十六进制字符）。
func Fingerprint(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:16]
}
