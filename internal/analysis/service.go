package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"chartlens/internal/gateway/mapgen"
	"chartlens/internal/gateway/provider"
	"chartlens/internal/gateway/retrieval"
	"chartlens/internal/logger"
	"chartlens/internal/prompt"
	"chartlens/internal/types"
)

// 中文说明：
// 分析入口服务：解析请求片段 → 检索相似图表 → 装配两消息载荷 →
// 诊断 → 调用模型。检索失败按降级处理（空相似列表 + retrievalError），
// 模型失败与配置缺陷则作为错误上抛，由传输层区分状态码。

// ErrModelCall 标记模型协作方失败，传输层据此返回 502。
var ErrModelCall = errors.New("模型调用失败")

type Service struct {
	Prompts        *prompt.Manager
	SystemTemplate string
	Assembler      *prompt.Assembler
	Tracer         prompt.Tracer
	Searcher       retrieval.Searcher
	Model          provider.ChatClient
	DefaultK       int
}

// Analyze 处理一次分析请求。
func (s *Service) Analyze(ctx context.Context, req types.AnalysisRequest) (types.AnalysisResponse, error) {
	system, ok := s.Prompts.Get(s.SystemTemplate)
	if !ok || strings.TrimSpace(system) == "" {
		return types.AnalysisResponse{}, fmt.Errorf("提示词模板 '%s' 缺失（配置缺陷）", s.SystemTemplate)
	}

	injected, primary := splitContent(req.Content)
	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	k := req.K
	if k <= 0 {
		k = s.DefaultK
	}

	resp := types.AnalysisResponse{
		SimilarCharts:  []types.SimilarChart{},
		ConversationID: conversationID,
	}

	// 检索失败不终止分析：空相似列表继续装配，错误显式带回
	similars, err := s.Searcher.Search(ctx, primary, k)
	if err != nil {
		logger.Warnf("相似检索失败（按空结果降级）: %v", err)
		resp.RetrievalError = err.Error()
		similars = nil
	}

	target := mapgen.DerivativesFor(primary)
	payload, err := s.Assembler.Assemble(ctx, system, injected, target, similars, req.EnableFullAnalysis)
	if err != nil {
		return types.AnalysisResponse{}, err
	}
	s.Tracer.Trace(s.Model.Model(), payload)

	answer, err := s.Model.Call(ctx, payload)
	if err != nil {
		return types.AnalysisResponse{}, fmt.Errorf("%w: %v", ErrModelCall, err)
	}

	resp.Success = true
	resp.Analysis = answer
	if similars != nil {
		resp.SimilarCharts = similars
	}
	return resp, nil
}

// splitContent 提取请求片段：文本片段按空行合并为注入文本，
// 首个 image_url 片段作为目标主图引用。
func splitContent(parts []types.ContentPart) (injected string, primary string) {
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p.Type {
		case "text":
			if strings.TrimSpace(p.Text) != "" {
				texts = append(texts, p.Text)
			}
		case "image_url":
			if primary == "" && p.ImageURL != nil && strings.TrimSpace(p.ImageURL.URL) != "" {
				primary = p.ImageURL.URL
			}
		}
	}
	return strings.Join(texts, "\n\n"), primary
}
