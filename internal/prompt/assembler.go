package prompt

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"chartlens/internal/imageref"
	"chartlens/internal/types"
)

// 中文说明：
// 消息装配器：把目标图表 + 相似图表列表装配为规范两消息载荷。
// 图像片段固定顺序：目标主图、深度、边缘、梯度，之后每条相似记录
// 按输入顺序依次附主图、深度、边缘、梯度。单图解析失败只跳过该图，
// 绝不中断装配、绝不打乱其余片段顺序；同一输入必然产出同一顺序。

// userInstruction user 消息的固定指令行。
const userInstruction = "请结合目标图表及其机器视觉衍生图（深度/边缘/梯度），" +
	"对照随附的相似历史图表进行形态识别与走势分析。"

// Assembler 持有归一化策略；自身无状态，可并发使用。
type Assembler struct {
	Resolver imageref.Resolver
}

func NewAssembler(r imageref.Resolver) *Assembler {
	return &Assembler{Resolver: r}
}

// Assemble 装配两消息载荷。basePrompt 缺失是上游配置缺陷，返回错误；
// 其余任何字段缺失都按省略降级。fullAnalysis=false 时相似图表只附主图。
func (a *Assembler) Assemble(ctx context.Context, basePrompt, injected string, target types.TargetChart, similars []types.SimilarChart, fullAnalysis bool) (Payload, error) {
	if strings.TrimSpace(basePrompt) == "" {
		return Payload{}, fmt.Errorf("系统提示词为空（配置缺陷，请检查提示词模板）")
	}

	refs := collectRefs(target, similars, fullAnalysis)
	resolved := a.resolveAll(ctx, refs)

	parts := make([]Part, 0, len(resolved)+1)
	parts = append(parts, Part{Kind: PartText, Text: buildUserText(injected, similars)})
	for _, ref := range resolved {
		if ref == "" {
			continue
		}
		parts = append(parts, Part{Kind: PartImage, ImageRef: ref})
	}
	return Payload{System: basePrompt, Parts: parts}, nil
}

// collectRefs 按固定优先级展开全部图像槽位（含空槽位，占位保序）。
func collectRefs(target types.TargetChart, similars []types.SimilarChart, fullAnalysis bool) []string {
	refs := make([]string, 0, 4+4*len(similars))
	slots := target.ImageRefs()
	refs = append(refs, slots[:]...)
	for _, rec := range similars {
		slots := rec.Chart.ImageRefs()
		if fullAnalysis {
			refs = append(refs, slots[:]...)
		} else {
			refs = append(refs, slots[0], "", "", "")
		}
	}
	return refs
}

// resolveAll 并发解析全部槽位，再按原下标回填，保持固定顺序。
// 槽位之间无顺序约束，只有最终列表有。
func (a *Assembler) resolveAll(ctx context.Context, refs []string) []string {
	out := make([]string, len(refs))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(8)
	for i, ref := range refs {
		if strings.TrimSpace(ref) == "" {
			continue
		}
		i, ref := i, ref
		group.Go(func() error {
			if resolved, ok := a.Resolver.Resolve(ctx, ref); ok {
				out[i] = resolved
			}
			return nil
		})
	}
	// 解析器从不返回错误，Wait 仅用于汇合
	_ = group.Wait()
	return out
}

// buildUserText 组装 user 文本片段：固定指令行 + 相似图表清单 + 注入文本。
// 注入文本为空白时不参与拼接（连空行也不留）；非空时原样保留，
// 其中可能携带调用方的调试标记，绝不截断。
func buildUserText(injected string, similars []types.SimilarChart) string {
	sections := []string{userInstruction}
	if section := renderSimilarSection(similars); section != "" {
		sections = append(sections, section)
	}
	if strings.TrimSpace(injected) != "" {
		sections = append(sections, injected)
	}
	return strings.Join(sections, "\n\n")
}

// renderSimilarSection 把检索元信息写入文本片段，编号与附图顺序一致。
func renderSimilarSection(similars []types.SimilarChart) string {
	if len(similars) == 0 {
		return ""
	}
	lines := make([]string, 0, len(similars)+1)
	lines = append(lines, fmt.Sprintf("已检索到 %d 张相似历史图表（按相似度降序，附图顺序与编号一致）：", len(similars)))
	for i, rec := range similars {
		line := fmt.Sprintf("%d. 相似度=%.4f", i+1, rec.Similarity)
		if rec.Chart.Instrument != "" {
			line += " 标的=" + rec.Chart.Instrument
		}
		if rec.Chart.Timeframe != "" {
			line += " 周期=" + rec.Chart.Timeframe
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
