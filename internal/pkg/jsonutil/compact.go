package jsonutil

import "encoding/json"

// Compact 把任意值序列化为单行 JSON 字符串；失败时返回空串。
// 用于日志与落盘记录，不用于线协议。
func Compact(v any) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(buf)
}
