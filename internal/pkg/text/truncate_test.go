package text

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "whole", Truncate("whole", 0), "max<=0 表示不截断")
}

func TestTruncate_RuneSafe(t *testing.T) {
	got := Truncate("跳空高开后回补缺口", 4)
	assert.Equal(t, "跳空高开...", got)
	assert.True(t, utf8.ValidString(got))
}
