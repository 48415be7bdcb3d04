package text

// Truncate 按符文数截断字符串，截断时追加省略号。
// 以符文为单位，避免把多字节字符切在中间。
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
