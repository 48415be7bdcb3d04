package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chartlens/internal/types"
)

// 中文说明：
// 相似检索协作方网关。相似度如何计算、图表如何入库均属外部引擎职责，
// 本侧只负责调用与结果透传：结果按引擎给出的顺序原样返回，不重排。

// Searcher 相似图表检索接口。found 条数可以少于 k，属正常情况。
type Searcher interface {
	Search(ctx context.Context, imageRef string, k int) ([]types.SimilarChart, error)
}

// HTTPClient 对接检索引擎的 HTTP 实现。
type HTTPClient struct {
	APIURL  string
	Timeout time.Duration
	httpc   *http.Client
}

func NewHTTPClient(apiURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		APIURL:  strings.TrimRight(apiURL, "/"),
		Timeout: timeout,
		httpc:   &http.Client{Timeout: timeout},
	}
}

type searchRequest struct {
	Image string `json:"image"`
	K     int    `json:"k"`
}

type searchResponse struct {
	Results []types.SimilarChart `json:"results"`
}

// Search 调用检索引擎，返回按相似度降序的结果列表。
func (c *HTTPClient) Search(ctx context.Context, imageRef string, k int) ([]types.SimilarChart, error) {
	if k <= 0 {
		k = 3
	}
	body, err := json.Marshal(searchRequest{Image: imageRef, K: k})
	if err != nil {
		return nil, fmt.Errorf("序列化检索请求失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("检索引擎调用失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("检索引擎返回异常状态: %s", resp.Status)
	}
	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("解析检索结果失败: %w", err)
	}
	return out.Results, nil
}
