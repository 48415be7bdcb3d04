package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"

	"chartlens/internal/gateway/database"
	"chartlens/internal/logger"
	"chartlens/internal/pkg/jsonutil"
	"chartlens/internal/prompt"
	"chartlens/internal/types"
)

// 中文说明：
// 一致性探针：以最小合成载荷走真实分析入口（不绕行、不打桩），
// 对响应结构逐项断言。所有断言无论先后成败都会执行并逐项上报；
// 传输层/结构性错误是探针级硬失败，与单项断言失败分开呈现。

// 断言名常量，报告与测试共同引用。
const (
	CheckHTTPSuccess    = "http_success"
	CheckSimilarPresent = "similar_charts_present"
	CheckSimilarCount   = "similar_charts_count"
	CheckSimilarityNum  = "similarity_numeric"
)

// tinyPNG 1x1 透明 PNG，探针的合成目标图。
const tinyPNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mP8z8BQDwAEhQGAhKmMIQAAAABJRU5ErkJggg=="

// Check 单项断言结果。
type Check struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Detail string `json:"detail,omitempty"`
}

// Report 一次巡检的完整结果。Err 非空表示探针级硬失败
// （传输错误/响应不可解析），此时各断言同样逐项给出（均为失败）。
type Report struct {
	CorrelationID string    `json:"correlationId"`
	StartedAt     time.Time `json:"startedAt"`
	DurationMS    int64     `json:"durationMs"`
	Checks        []Check   `json:"checks"`
	Passed        bool      `json:"passed"`
	Err           string    `json:"err,omitempty"`
}

// Runner 探针执行器。Log 可为 nil（不落盘历史）。
type Runner struct {
	TargetURL string // 分析入口完整地址
	Expected  int    // 期望的相似图表条数
	Timeout   time.Duration
	Log       *database.ProbeLogStore
	httpc     *http.Client
}

func NewRunner(targetURL string, expected int, timeout time.Duration, log *database.ProbeLogStore) *Runner {
	if expected <= 0 {
		expected = 3
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Runner{
		TargetURL: targetURL,
		Expected:  expected,
		Timeout:   timeout,
		Log:       log,
		httpc:     &http.Client{Timeout: timeout},
	}
}

// Run 执行一次端到端冒烟巡检。
func (r *Runner) Run(ctx context.Context) Report {
	correlationID := uuid.NewString()
	started := time.Now()
	report := Report{CorrelationID: correlationID, StartedAt: started}

	body, err := r.invoke(ctx, correlationID)
	if err != nil {
		report.Err = err.Error()
		report.Checks = failAllChecks("探针请求未完成")
	} else {
		report.Checks = evaluate(body, r.Expected)
		report.Passed = allPassed(report.Checks)
	}
	report.DurationMS = time.Since(started).Milliseconds()

	r.persist(ctx, report)
	if report.Passed {
		logger.Infof("✓ 探针巡检通过 correlation=%s 耗时=%dms", correlationID, report.DurationMS)
	} else {
		logger.Warnf("探针巡检未通过 correlation=%s err=%q checks=%s", correlationID, report.Err, jsonutil.Compact(report.Checks))
	}
	return report
}

// invoke 通过生产同款入口发送合成载荷；任何传输/解析错误即硬失败。
func (r *Runner) invoke(ctx context.Context, correlationID string) (map[string]any, error) {
	reqBody := types.AnalysisRequest{
		Content: []types.ContentPart{
			{Type: "text", Text: prompt.Marker(correlationID) + " 探针冒烟校验，请忽略本次请求的分析内容。"},
			{Type: "image_url", ImageURL: &types.ImageURL{URL: tinyPNG}},
		},
		EnableFullAnalysis: false,
		ConversationID:     correlationID,
	}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.TargetURL, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body, nil
}

// evaluate 逐项断言响应结构。单项失败不影响其余断言执行。
func evaluate(body map[string]any, expected int) []Check {
	checks := make([]Check, 0, 4)

	success, _ := body["success"].(bool)
	checks = append(checks, check(CheckHTTPSuccess, success, "响应未标记 success=true"))

	similars, present := body["similarCharts"].([]any)
	checks = append(checks, check(CheckSimilarPresent, present, "similarCharts 缺失或不是序列"))

	countOK := present && len(similars) == expected
	checks = append(checks, Check{
		Name: CheckSimilarCount, Pass: countOK,
		Detail: countDetail(present, len(similars), expected, countOK),
	})

	checks = append(checks, similarityCheck(similars, present))
	return checks
}

func similarityCheck(similars []any, present bool) Check {
	if !present {
		return check(CheckSimilarityNum, false, "similarCharts 缺失，无法校验相似度")
	}
	for i, item := range similars {
		rec, ok := item.(map[string]any)
		if !ok {
			return check(CheckSimilarityNum, false, detailAt(i, "元素不是对象"))
		}
		raw, ok := rec["similarity"]
		if !ok {
			return check(CheckSimilarityNum, false, detailAt(i, "similarity 缺失"))
		}
		num, ok := raw.(float64)
		if !ok {
			return check(CheckSimilarityNum, false, detailAt(i, "similarity 不是数值"))
		}
		if math.IsNaN(num) || math.IsInf(num, 0) {
			return check(CheckSimilarityNum, false, detailAt(i, "similarity 非有限数"))
		}
	}
	return Check{Name: CheckSimilarityNum, Pass: true}
}

func (r *Runner) persist(ctx context.Context, report Report) {
	if r.Log == nil {
		return
	}
	rec := database.ProbeRunRecord{
		CorrelationID: report.CorrelationID,
		StartedAt:     report.StartedAt,
		DurationMS:    report.DurationMS,
		Passed:        report.Passed,
		Detail:        jsonutil.Compact(report.Checks),
	}
	if err := r.Log.Append(ctx, rec); err != nil {
		logger.Warnf("探针记录落盘失败: %v", err)
	}
}

func check(name string, pass bool, failDetail string) Check {
	c := Check{Name: name, Pass: pass}
	if !pass {
		c.Detail = failDetail
	}
	return c
}

func countDetail(present bool, got, expected int, pass bool) string {
	if pass {
		return ""
	}
	if !present {
		return "similarCharts 缺失，无法计数"
	}
	return fmt.Sprintf("期望 %d 条，实际 %d 条", expected, got)
}

func detailAt(i int, msg string) string {
	return fmt.Sprintf("第 %d 条: %s", i+1, msg)
}

func failAllChecks(reason string) []Check {
	names := []string{CheckHTTPSuccess, CheckSimilarPresent, CheckSimilarCount, CheckSimilarityNum}
	out := make([]Check, 0, len(names))
	for _, name := range names {
		out = append(out, Check{Name: name, Pass: false, Detail: reason})
	}
	return out
}

func allPassed(checks []Check) bool {
	for _, c := range checks {
		if !c.Pass {
			return false
		}
	}
	return true
}
