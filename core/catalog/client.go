// Package catalog 无状态的曲目解析客户端，走节点的请求/响应端点。
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"springlink/core/node"
	"springlink/logger"
	"springlink/model"
)

// DefaultSearchPrefix 非 URL 查询的默认搜索源
const DefaultSearchPrefix = "yt"

// ErrEmptyResult 节点没有返回任何响应体
var ErrEmptyResult = errors.New("no results found")

var absoluteURL = regexp.MustCompile(`^https?://`)

// Client 曲目解析/解码客户端。无状态，可被多个会话共享。
type Client struct {
	http *http.Client
}

// NewClient 创建客户端。节点无响应时请求在 timeout 后失败，
// 不会无限期挂起。
func NewClient(timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// Resolve 解析查询。非绝对 URL 会被改写为 "<prefix>search:<query>"。
func (c *Client) Resolve(ctx context.Context, cfg node.Config, query, sourcePrefix string) (*model.LoadResult, error) {
	if !absoluteURL.MatchString(query) {
		prefix := sourcePrefix
		if prefix == "" {
			prefix = DefaultSearchPrefix
		}
		query = fmt.Sprintf("%ssearch:%s", prefix, query)
	}

	endpoint := fmt.Sprintf("%s/loadtracks?identifier=%s", cfg.RESTURL(), url.QueryEscape(query))
	body, status, err := c.get(ctx, cfg, endpoint)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, ErrEmptyResult
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("loadtracks returned status %d", status)
	}

	var result model.LoadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("malformed loadtracks response: %w", err)
	}

	logger.Debug("resolved query",
		logger.String("node", cfg.Key()),
		logger.String("loadType", string(result.LoadType)),
		logger.Int("tracks", len(result.Tracks)))
	return &result, nil
}

// Decode 解码不透明曲目令牌。节点侧失败（5xx）返回 nil 而非错误。
func (c *Client) Decode(ctx context.Context, cfg node.Config, token string) (*model.TrackInfo, error) {
	endpoint := fmt.Sprintf("%s/decodetrack?track=%s", cfg.RESTURL(), url.QueryEscape(token))
	body, status, err := c.get(ctx, cfg, endpoint)
	if err != nil {
		return nil, err
	}
	if status >= http.StatusInternalServerError {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("decodetrack returned status %d", status)
	}

	var info model.TrackInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("malformed decodetrack response: %w", err)
	}
	return &info, nil
}

func (c *Client) get(ctx context.Context, cfg node.Config, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", cfg.Password)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("node request failed: %w", err)
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return buf, resp.StatusCode, nil
}
