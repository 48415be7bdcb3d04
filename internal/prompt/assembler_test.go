package prompt

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartlens/internal/types"
)

// staticResolver 确定性假解析器：可标记任意引用为缺失。
type staticResolver struct {
	missing map[string]bool
}

func (r staticResolver) Resolve(_ context.Context, ref string) (string, bool) {
	if r.missing[ref] {
		return "", false
	}
	return "resolved:" + ref, true
}

func newAssembler(missing ...string) *Assembler {
	m := map[string]bool{}
	for _, ref := range missing {
		m[ref] = true
	}
	return NewAssembler(staticResolver{missing: m})
}

func fullTarget() types.TargetChart {
	return types.TargetChart{Image: "t-img", DepthMap: "t-depth", EdgeMap: "t-edge", GradientMap: "t-grad"}
}

func fullSimilar(prefix string, sim float64) types.SimilarChart {
	return types.SimilarChart{
		Chart: types.ChartMeta{
			Image:       prefix + "-img",
			DepthMap:    prefix + "-depth",
			EdgeMap:     prefix + "-edge",
			GradientMap: prefix + "-grad",
		},
		Similarity: sim,
	}
}

func imageRefs(p Payload) []string {
	var out []string
	for _, part := range p.Parts {
		if part.Kind == PartImage {
			out = append(out, part.ImageRef)
		}
	}
	return out
}

func TestAssemble_OrderingInvariant(t *testing.T) {
	a := newAssembler()
	similars := []types.SimilarChart{fullSimilar("s1", 0.91), fullSimilar("s2", 0.88)}

	payload, err := a.Assemble(context.Background(), "base", "", fullTarget(), similars, true)
	require.NoError(t, err)

	require.NotEmpty(t, payload.Parts)
	assert.Equal(t, PartText, payload.Parts[0].Kind, "user 首个片段必须是文本")

	want := []string{
		"resolved:t-img", "resolved:t-depth", "resolved:t-edge", "resolved:t-grad",
		"resolved:s1-img", "resolved:s1-depth", "resolved:s1-edge", "resolved:s1-grad",
		"resolved:s2-img", "resolved:s2-depth", "resolved:s2-edge", "resolved:s2-grad",
	}
	assert.Equal(t, want, imageRefs(payload), "4+4N 固定顺序，与相似度取值无关")
}

func TestAssemble_DeterministicAcrossRuns(t *testing.T) {
	a := newAssembler()
	similars := []types.SimilarChart{fullSimilar("s1", 0.5), fullSimilar("s2", 0.99)}
	first, err := a.Assemble(context.Background(), "base", "注入", fullTarget(), similars, true)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := a.Assemble(context.Background(), "base", "注入", fullTarget(), similars, true)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestAssemble_OmissionInvariant(t *testing.T) {
	a := newAssembler()
	base, err := a.Assemble(context.Background(), "base", "注入文本", fullTarget(), nil, true)
	require.NoError(t, err)

	target := fullTarget()
	target.DepthMap = ""
	dropped, err := a.Assemble(context.Background(), "base", "注入文本", target, nil, true)
	require.NoError(t, err)

	assert.Equal(t, base.Parts[0], dropped.Parts[0], "文本片段的存在与位置不受图像缺失影响")
	assert.Equal(t, base.ImagePartCount()-1, dropped.ImagePartCount())
	assert.Equal(t, []string{"resolved:t-img", "resolved:t-edge", "resolved:t-grad"}, imageRefs(dropped))
}

func TestAssemble_ResolutionFailureSkipsOnlyThatImage(t *testing.T) {
	a := newAssembler("t-edge")
	payload, err := a.Assemble(context.Background(), "base", "", fullTarget(), nil, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"resolved:t-img", "resolved:t-depth", "resolved:t-grad"}, imageRefs(payload))
}

func TestAssemble_TwoPartScenario(t *testing.T) {
	// 目标只有主图 + 一条只有主图的相似记录 → 恰好 2 个图像片段
	a := newAssembler()
	target := types.TargetChart{Image: "t-img"}
	similars := []types.SimilarChart{{Chart: types.ChartMeta{Image: "s-img"}, Similarity: 0.7}}

	payload, err := a.Assemble(context.Background(), "base", "", target, similars, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"resolved:t-img", "resolved:s-img"}, imageRefs(payload))
}

func TestAssemble_MarkerPreservedVerbatim(t *testing.T) {
	a := newAssembler()
	injected := "前置说明\n" + Marker("3d1a2f88-0000-4444-aaaa-bbbbccccdddd") + "\n后置说明"
	payload, err := a.Assemble(context.Background(), "base", injected, fullTarget(), nil, false)
	require.NoError(t, err)
	assert.Contains(t, payload.UserText(), injected, "注入文本原样保留，不截断不改写")
	assert.True(t, HasMarker(payload.UserText()))
}

func TestAssemble_EmptyInjectedContributesNothing(t *testing.T) {
	a := newAssembler()
	payload, err := a.Assemble(context.Background(), "base", "   \n  ", types.TargetChart{}, nil, false)
	require.NoError(t, err)
	text := payload.UserText()
	assert.Equal(t, userInstruction, text, "空白注入不产生空行")
	assert.False(t, strings.HasSuffix(text, "\n\n"))
}

func TestAssemble_SystemIsBasePromptVerbatim(t *testing.T) {
	a := newAssembler()
	base := "系统提示词全文\n带换行  带尾随空格 "
	payload, err := a.Assemble(context.Background(), base, "", types.TargetChart{}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, base, payload.System)
}

func TestAssemble_EmptyBasePromptIsConfigDefect(t *testing.T) {
	a := newAssembler()
	_, err := a.Assemble(context.Background(), "   ", "x", fullTarget(), nil, false)
	require.Error(t, err)
}

func TestAssemble_QuickAnalysisSkipsSimilarDerivatives(t *testing.T) {
	a := newAssembler()
	similars := []types.SimilarChart{fullSimilar("s1", 0.9)}
	payload, err := a.Assemble(context.Background(), "base", "", fullTarget(), similars, false)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"resolved:t-img", "resolved:t-depth", "resolved:t-edge", "resolved:t-grad",
		"resolved:s1-img",
	}, imageRefs(payload))
}

func TestAssemble_SimilarOrderNeverResorted(t *testing.T) {
	// 相似度升序输入也必须按输入顺序出图
	a := newAssembler()
	similars := []types.SimilarChart{
		{Chart: types.ChartMeta{Image: "low"}, Similarity: 0.1},
		{Chart: types.ChartMeta{Image: "high"}, Similarity: 0.9},
	}
	payload, err := a.Assemble(context.Background(), "base", "", types.TargetChart{}, similars, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"resolved:low", "resolved:high"}, imageRefs(payload))
}

func TestAssemble_SimilarMetadataRenderedIntoText(t *testing.T) {
	a := newAssembler()
	similars := []types.SimilarChart{
		{Chart: types.ChartMeta{Image: "s", Instrument: "BTCUSDT", Timeframe: "4h"}, Similarity: 0.8765},
	}
	payload, err := a.Assemble(context.Background(), "base", "", types.TargetChart{}, similars, false)
	require.NoError(t, err)
	text := payload.UserText()
	assert.Contains(t, text, "0.8765")
	assert.Contains(t, text, "BTCUSDT")
	assert.Contains(t, text, "4h")
}
