package types

// AnalysisRequest 分析入口的请求体。content 为有序的多模态片段，
// 第一个 image_url 片段视为目标主图。
type AnalysisRequest struct {
	Content            []ContentPart `json:"content"`
	EnableFullAnalysis bool          `json:"enableFullAnalysis,omitempty"`
	ConversationID     string        `json:"conversationId,omitempty"`
	K                  int           `json:"k,omitempty"`
}

// ContentPart 请求中的单个片段：type 为 "text" 或 "image_url"。
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// AnalysisResponse 分析入口的响应体。协作方失败不静默吞掉：
// 检索失败时 similarCharts 为空且 retrievalError 给出原因。
type AnalysisResponse struct {
	Success        bool           `json:"success"`
	Analysis       string         `json:"analysis,omitempty"`
	SimilarCharts  []SimilarChart `json:"similarCharts"`
	ConversationID string         `json:"conversationId,omitempty"`
	RetrievalError string         `json:"retrievalError,omitempty"`
	Error          string         `json:"error,omitempty"`
}
