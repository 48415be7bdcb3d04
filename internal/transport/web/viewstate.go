package web

import "strings"

// 中文说明：
// 前端视图状态的服务端模型：三态视图（分析/历史/提示词）只有确定的
// 正向循环切换；划词注入浮层是独立的两态开关，随文本选区出现与清空。
// 与核心流水线无任何依赖。

type Mode int

const (
	ModeAnalysis Mode = iota
	ModeHistory
	ModePrompts
)

func (m Mode) String() string {
	switch m {
	case ModeAnalysis:
		return "analysis"
	case ModeHistory:
		return "history"
	case ModePrompts:
		return "prompts"
	}
	return "analysis"
}

// Next 正向循环：analysis → history → prompts → analysis。
func (m Mode) Next() Mode {
	switch m {
	case ModeAnalysis:
		return ModeHistory
	case ModeHistory:
		return ModePrompts
	default:
		return ModeAnalysis
	}
}

type Overlay int

const (
	OverlayHidden Overlay = iota
	OverlayShown
)

// ViewState 单个会话的视图状态。
type ViewState struct {
	Mode      Mode
	Overlay   Overlay
	Selection string
}

// CycleMode 切换到下一个视图。
func (s *ViewState) CycleMode() { s.Mode = s.Mode.Next() }

// SetSelection 文本选区事件：非空选区展示浮层，空选区等价于清空。
func (s *ViewState) SetSelection(text string) {
	if strings.TrimSpace(text) == "" {
		s.ClearSelection()
		return
	}
	s.Selection = text
	s.Overlay = OverlayShown
}

// ClearSelection 清空选区并隐藏浮层。
func (s *ViewState) ClearSelection() {
	s.Selection = ""
	s.Overlay = OverlayHidden
}
