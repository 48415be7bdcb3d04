package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Manager 管理提示词模板目录：启动时一次性加载 *.md / *.txt，
// 模板名为去扩展名的文件名。加载后只读。
type Manager struct {
	dir       string
	templates map[string]string
}

func NewManager(dir string) *Manager {
	return &Manager{dir: dir, templates: map[string]string{}}
}

// Load 扫描目录并加载全部模板。目录不存在视为配置缺陷。
func (m *Manager) Load() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("读取提示词目录失败: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".md" && ext != ".txt" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, e.Name()))
		if err != nil {
			return fmt.Errorf("读取提示词模板 %s 失败: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		m.templates[name] = strings.TrimSpace(string(data))
	}
	return nil
}

// Get 返回指定名称的模板内容。
func (m *Manager) Get(name string) (string, bool) {
	content, ok := m.templates[name]
	return content, ok
}
