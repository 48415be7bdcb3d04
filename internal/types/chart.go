package types

// 中文说明：
// 跨组件共享的图表数据结构。所有字段均为“图像引用”：
// data URI、绝对 URL 或服务器相对路径三者之一，由 imageref 统一归一化。
// 字段缺失（空串）表示该图不存在，流水线按“跳过该图”降级，不报错。

// TargetChart 本次分析的目标图表及其衍生图。
type TargetChart struct {
	Image       string `json:"image,omitempty"`
	DepthMap    string `json:"depthMap,omitempty"`
	EdgeMap     string `json:"edgeMap,omitempty"`
	GradientMap string `json:"gradientMap,omitempty"`
}

// ChartMeta 相似图表的元信息（检索引擎返回）。
type ChartMeta struct {
	ID          string `json:"id,omitempty"`
	Image       string `json:"image,omitempty"`
	DepthMap    string `json:"depthMap,omitempty"`
	EdgeMap     string `json:"edgeMap,omitempty"`
	GradientMap string `json:"gradientMap,omitempty"`
	Timeframe   string `json:"timeframe,omitempty"`
	Instrument  string `json:"instrument,omitempty"`
}

// SimilarChart 带相似度的检索结果。列表按相似度降序到达，
// 流水线各环节必须保持输入顺序，不得重排。
type SimilarChart struct {
	Chart      ChartMeta `json:"chart"`
	Similarity float64   `json:"similarity"`
}

// ImageRefs 返回一张相似图表的四个图像槽位（固定顺序：主图、深度、边缘、梯度）。
func (m ChartMeta) ImageRefs() [4]string {
	return [4]string{m.Image, m.DepthMap, m.EdgeMap, m.GradientMap}
}

// ImageRefs 返回目标图表的四个图像槽位（固定顺序：主图、深度、边缘、梯度）。
func (t TargetChart) ImageRefs() [4]string {
	return [4]string{t.Image, t.DepthMap, t.EdgeMap, t.GradientMap}
}
