package imageref

import (
	"path/filepath"
	"strings"
)

// 已知栅格/矢量图扩展名到 Content-Type 的映射。
// 刻意不用 mime.TypeByExtension：其结果依赖宿主机 /etc/mime.types，
// 而引用归一化必须在任意部署环境下产出一致结果。
var contentTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".svg":  "image/svg+xml",
}

const defaultContentType = "image/png"

// ContentTypeFor 依据文件扩展名返回 Content-Type，未识别时回退最常见的 PNG。
func ContentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	return defaultContentType
}
