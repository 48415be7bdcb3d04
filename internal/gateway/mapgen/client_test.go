package mapgen

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivativeRef_Convention(t *testing.T) {
	assert.Equal(t, "/maps/depth/chart.png", DerivativeRef("/uploads/chart.png", KindDepth))
	assert.Equal(t, "/maps/edge/chart.png", DerivativeRef("/uploads/chart.png", KindEdge))
	assert.Equal(t, "/maps/gradient/chart.png", DerivativeRef("/uploads/chart.png", KindGradient))
}

func TestDerivativeRef_NoDerivativesForInlineOrAbsolute(t *testing.T) {
	assert.Empty(t, DerivativeRef("data:image/png;base64,AAAA", KindDepth))
	assert.Empty(t, DerivativeRef("https://x.example.com/a.png", KindDepth))
	assert.Empty(t, DerivativeRef("", KindDepth))
}

func TestDerivativesFor(t *testing.T) {
	target := DerivativesFor("/uploads/chart.png")
	assert.Equal(t, "/uploads/chart.png", target.Image)
	assert.Equal(t, "/maps/depth/chart.png", target.DepthMap)
	assert.Equal(t, "/maps/edge/chart.png", target.EdgeMap)
	assert.Equal(t, "/maps/gradient/chart.png", target.GradientMap)

	inline := DerivativesFor("data:image/png;base64,AAAA")
	assert.Empty(t, inline.DepthMap)
	assert.Empty(t, inline.EdgeMap)
	assert.Empty(t, inline.GradientMap)
}

func TestReady_ViaServiceHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "", t.TempDir(), "/uploads/ref.png", time.Second)
	assert.True(t, c.Ready(context.Background(), KindDepth))
	// edge 未配置服务地址，且基准衍生文件不存在
	assert.False(t, c.Ready(context.Background(), KindEdge))
}

func TestReady_ViaFileFallback(t *testing.T) {
	public := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(public, "maps", "depth"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(public, "maps", "depth", "ref.png"), []byte("x"), 0o644))

	c := NewClient("", "", "", public, "/uploads/ref.png", time.Second)
	assert.True(t, c.Ready(context.Background(), KindDepth))
	assert.False(t, c.Ready(context.Background(), KindGradient))
}

func TestReady_UnreachableServiceIsNotReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL, "", "", t.TempDir(), "", time.Second)
	assert.False(t, c.Ready(context.Background(), KindDepth))
}
