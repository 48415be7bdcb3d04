package prompt

// 中文说明：
// 两消息载荷的规范形态：恰好一条 system（纯文本）+ 恰好一条 user（有序片段）。
// user 的第一个片段必须是文本片段，图像片段按固定优先级依次排列。

type PartKind int

const (
	PartText PartKind = iota
	PartImage
)

// Part user 消息中的单个片段。Kind=PartImage 时 ImageRef 为已归一化引用
// （data URI 或绝对 URL）；Kind=PartText 时仅 Text 有效。
type Part struct {
	Kind     PartKind
	Text     string
	ImageRef string
}

// Payload 规范两消息载荷。System 即 system 消息全文，Parts 即 user 消息。
type Payload struct {
	System string
	Parts  []Part
}

// ImagePartCount 统计 user 消息中的图像片段数。
func (p Payload) ImagePartCount() int {
	n := 0
	for _, part := range p.Parts {
		if part.Kind == PartImage {
			n++
		}
	}
	return n
}

// UserText 返回 user 消息首个文本片段内容（装配保证其存在且位于首位）。
func (p Payload) UserText() string {
	for _, part := range p.Parts {
		if part.Kind == PartText {
			return part.Text
		}
	}
	return ""
}

// MergedText 返回 system 与 user 文本以空行拼接后的全文，
// 供健康诊断回显长度与前缀（只是诊断回声，不是新的合并算法）。
func (p Payload) MergedText() string {
	user := p.UserText()
	if p.System == "" {
		return user
	}
	if user == "" {
		return p.System
	}
	return p.System + "\n\n" + user
}
