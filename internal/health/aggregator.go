package health

import (
	"context"
	"fmt"
	"unicode/utf8"

	"chartlens/internal/gateway/mapgen"
	"chartlens/internal/gateway/retrieval"
	"chartlens/internal/logger"
	"chartlens/internal/pkg/text"
	"chartlens/internal/prompt"
	"chartlens/internal/types"
)

// 中文说明：
// 健康聚合：不做完整模型调用，用与生产一致的解析/装配原语干跑一遍，
// 回答“流水线是否端到端接通”。各分节独立降级：某个协作方出错只影响
// 自己的分节，整体报告照常产出。每次请求现算，不持久化。

// Status 健康报告。
type Status struct {
	Model               string    `json:"model"`
	MapsReady           MapsReady `json:"mapsReady"`
	RAG                 RAGStatus `json:"rag"`
	MergedPromptPreview string    `json:"mergedPromptPreview"`
	MergedPromptLength  int       `json:"mergedPromptLength"`
}

type MapsReady struct {
	Depth    bool `json:"depth"`
	Edge     bool `json:"edge"`
	Gradient bool `json:"gradient"`
}

type RAGStatus struct {
	K      int      `json:"k"`
	Found  int      `json:"found"`
	Sample []string `json:"sample"`
	Error  string   `json:"error,omitempty"`
}

// 报告中标识符样本与提示词前缀的上界。
const (
	sampleLimit  = 3
	previewLimit = 200
)

type Aggregator struct {
	ModelName      string
	Maps           mapgen.Readiness
	Searcher       retrieval.Searcher
	Prompts        *prompt.Manager
	SystemTemplate string
	Assembler      *prompt.Assembler
	ReferenceImage string
	DefaultK       int
}

// Check 产出一份健康报告。k<=0 时采用配置默认值。
func (a *Aggregator) Check(ctx context.Context, k int) Status {
	if k <= 0 {
		k = a.DefaultK
	}
	status := Status{
		Model: a.ModelName,
		MapsReady: MapsReady{
			Depth:    a.Maps.Ready(ctx, mapgen.KindDepth),
			Edge:     a.Maps.Ready(ctx, mapgen.KindEdge),
			Gradient: a.Maps.Ready(ctx, mapgen.KindGradient),
		},
		RAG: a.checkRAG(ctx, k),
	}
	status.MergedPromptPreview, status.MergedPromptLength = a.checkMergedPrompt(ctx)
	return status
}

// checkRAG 调用检索协作方并汇总条数与标识符样本；失败只记录，不中断。
func (a *Aggregator) checkRAG(ctx context.Context, k int) RAGStatus {
	out := RAGStatus{K: k, Sample: []string{}}
	results, err := a.Searcher.Search(ctx, a.ReferenceImage, k)
	if err != nil {
		logger.Warnf("健康检查：相似检索失败: %v", err)
		out.Error = err.Error()
		return out
	}
	out.Found = len(results)
	for i, rec := range results {
		if i >= sampleLimit {
			break
		}
		out.Sample = append(out.Sample, sampleID(i, rec))
	}
	return out
}

// checkMergedPrompt 对基准目标干跑一次装配，回显合并文本的前缀与全长。
// 这只是诊断回声，不引入新的合并算法。
func (a *Aggregator) checkMergedPrompt(ctx context.Context) (string, int) {
	system, ok := a.Prompts.Get(a.SystemTemplate)
	if !ok {
		logger.Warnf("健康检查：提示词模板 '%s' 缺失", a.SystemTemplate)
		return "", 0
	}
	target := mapgen.DerivativesFor(a.ReferenceImage)
	payload, err := a.Assembler.Assemble(ctx, system, "", target, nil, false)
	if err != nil {
		logger.Warnf("健康检查：装配干跑失败: %v", err)
		return "", 0
	}
	merged := payload.MergedText()
	return text.Truncate(merged, previewLimit), utf8.RuneCountInString(merged)
}

func sampleID(i int, rec types.SimilarChart) string {
	if rec.Chart.ID != "" {
		return rec.Chart.ID
	}
	if rec.Chart.Instrument != "" || rec.Chart.Timeframe != "" {
		return fmt.Sprintf("%s@%s", rec.Chart.Instrument, rec.Chart.Timeframe)
	}
	return fmt.Sprintf("#%d", i+1)
}
