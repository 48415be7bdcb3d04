package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chartlens/internal/logger"
	"chartlens/internal/prompt"
)

// 中文说明：
// 视觉模型协作方网关（OpenAI 兼容 chat/completions）。
// 模型响应如何解析不在本系统职责内，这里只透传文本内容。

// ChatClient 模型调用边界。载荷已是规范两消息形态，网关只做线格式转换。
type ChatClient interface {
	Call(ctx context.Context, payload prompt.Payload) (string, error)
	Model() string
}

type OpenAIVisionClient struct {
	BaseURL      string
	APIKey       string
	ModelName    string
	Timeout      time.Duration
	MaxRetries   int
	ExtraHeaders map[string]string
}

func (c *OpenAIVisionClient) Model() string { return c.ModelName }

func (c *OpenAIVisionClient) Call(ctx context.Context, payload prompt.Payload) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}

	bodyBytes := buildChatBodyBytes(c.ModelName, payload)
	httpc := &http.Client{Timeout: timeout}
	return c.doChatCompletions(ctx, httpc, c.chatCompletionsURL(), bodyBytes, maxRetries)
}

func (c *OpenAIVisionClient) chatCompletionsURL() string {
	url := strings.TrimRight(c.BaseURL, "/")
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

// buildChatBodyBytes 把规范两消息载荷转换为 OpenAI 线格式：
// 恰好一条 system + 一条 user；user 内容按装配顺序展开，不改动、不重排。
func buildChatBodyBytes(model string, payload prompt.Payload) []byte {
	content := make([]map[string]any, 0, len(payload.Parts))
	for _, part := range payload.Parts {
		switch part.Kind {
		case prompt.PartText:
			content = append(content, map[string]any{"type": "text", "text": part.Text})
		case prompt.PartImage:
			if strings.TrimSpace(part.ImageRef) == "" {
				continue
			}
			content = append(content, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": part.ImageRef},
			})
		}
	}
	body := map[string]any{
		"model": model,
		"messages": []map[string]any{
			{"role": "system", "content": payload.System},
			{"role": "user", "content": content},
		},
		"temperature": 0.4,
		"max_tokens":  4096,
	}
	b, _ := json.Marshal(body)
	return b
}

func (c *OpenAIVisionClient) doChatCompletions(ctx context.Context, httpc *http.Client, url string, body []byte, maxRetries int) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt == 0 {
			logger.Debugf("[AI] 请求: POST %s headers=%v 载荷=%d字节", url, c.headersForLog(), len(body))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		for k, v := range c.headers() {
			req.Header.Set(k, v)
		}
		resp, err := httpc.Do(req)
		if err != nil {
			lastErr = err
			break
		}

		if resp.StatusCode/100 == 2 {
			content, err := decodeChatContent(resp)
			if err != nil {
				lastErr = err
				break
			}
			return content, nil
		}

		msg := parseError(resp)
		lastErr = fmt.Errorf("status=%d: %s", resp.StatusCode, msg)
		if shouldRetry(resp.StatusCode) && attempt < maxRetries {
			wait := parseRetryAfter(resp.Header.Get("Retry-After"), attempt)
			time.Sleep(wait)
			continue
		}
		break
	}
	return "", lastErr
}

func decodeChatContent(resp *http.Response) (string, error) {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("[AI] response body close failed: %v", cerr)
		}
	}()
	var r struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", err
	}
	if len(r.Choices) == 0 {
		return "", fmt.Errorf("empty choices")
	}
	return r.Choices[0].Message.Content, nil
}

func (c *OpenAIVisionClient) headers() map[string]string {
	out := map[string]string{"Content-Type": "application/json"}
	if c.APIKey != "" {
		out["Authorization"] = fmt.Sprintf("Bearer %s", c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		out[k] = v
	}
	return out
}

func (c *OpenAIVisionClient) headersForLog() map[string]string {
	out := map[string]string{}
	for k, v := range c.headers() {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "auth") || strings.Contains(lk, "key") || strings.Contains(lk, "token") {
			if len(v) > 4 {
				out[k] = "****" + v[len(v)-4:]
			} else {
				out[k] = "****"
			}
			continue
		}
		out[k] = v
	}
	return out
}

func parseError(resp *http.Response) string {
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Debugf("[AI] response body close failed: %v", cerr)
		}
	}()
	var eresp struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&eresp); err == nil && strings.TrimSpace(eresp.Error.Message) != "" {
		return eresp.Error.Message
	}
	return resp.Status
}

func shouldRetry(code int) bool {
	return code == 429 || code == 500 || code == 502 || code == 503 || code == 504
}

func parseRetryAfter(v string, attempt int) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	base := 800 * time.Millisecond
	wait := base << attempt
	if wait > 8*time.Second {
		wait = 8 * time.Second
	}
	return wait
}
