package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/holepuncher/holepuncher/internal/config"
	"github.com/holepuncher/holepuncher/internal/version"
)

// ErrCrossOrigin 表示 same-origin 模式下请求了其它源。
var ErrCrossOrigin = errors.New("cross-origin request rejected")

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// Options 描述 Client 的构建参数。
type Options struct {
	// Origin 是相对 URL 的基准，也是同源判断的依据；为空时所有绝对 URL 视为同源，
	// 但 same-origin 凭证策略不会附带 Cookie 或 Bearer 凭证。
	Origin string
	// Timeout 为 0 时不设置超时，挂起的上游请求会一直等待。
	Timeout     time.Duration
	BearerToken string
	// HTTPClient 可选，测试时注入 httptest 的客户端。
	HTTPClient *http.Client
}

// Client 执行单次上游请求，不做重试。
type Client struct {
	http        *http.Client
	origin      *url.URL
	credentials *credentialStore
}

// New 根据 Options 构造 Client。
func New(opts Options) (*Client, error) {
	var origin *url.URL
	if opts.Origin != "" {
		parsed, err := url.Parse(opts.Origin)
		if err != nil {
			return nil, fmt.Errorf("parse origin: %w", err)
		}
		if !parsed.IsAbs() || parsed.Host == "" {
			return nil, fmt.Errorf("origin must be absolute: %s", opts.Origin)
		}
		parsed.Path = "/"
		parsed.RawQuery = ""
		parsed.Fragment = ""
		origin = parsed
	}

	creds, err := newCredentialStore(opts.BearerToken)
	if err != nil {
		return nil, err
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   opts.Timeout,
			Transport: defaultTransport.Clone(),
		}
	}

	return &Client{
		http:        httpClient,
		origin:      origin,
		credentials: creds,
	}, nil
}

// NewFromConfig 返回与配置一致的共享 Client。
func NewFromConfig(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return New(Options{})
	}
	return New(Options{
		Origin:      cfg.Puncher.Origin,
		Timeout:     cfg.Puncher.UpstreamTimeout.DurationValue(),
		BearerToken: cfg.Puncher.BearerToken,
	})
}

// Timeout 返回底层 http.Client 的超时设置。
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}

// RequestKey 返回 rawURL 对应的缓存键。
func (c *Client) RequestKey(rawURL string) (string, error) {
	return RequestKey(c.origin, rawURL)
}

// Fetch 对 rawURL 发起一次 GET。非 2xx 状态不视为错误，由调用方检查 Response.OK。
// no-cors 模式下的跨域响应会被替换为不透明响应（状态 0、无正文）。
func (c *Client) Fetch(ctx context.Context, rawURL string, policy Policy) (*Response, error) {
	target, err := Resolve(c.origin, rawURL)
	if err != nil {
		return nil, err
	}

	same := c.origin == nil || sameOrigin(c.origin, target)
	if policy.Mode == ModeSameOrigin && !same {
		return nil, fmt.Errorf("%w: %s", ErrCrossOrigin, target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	if !same {
		req.Header.Set("Origin", c.originString())
	}

	// 未配置 Origin 时无法确认同源，same-origin 凭证策略不附带凭证。
	credentialed := policy.includeCredentials(same && c.origin != nil)
	if credentialed {
		if err := c.credentials.attach(req); err != nil {
			return nil, err
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if credentialed {
		c.credentials.remember(target, resp)
	}

	if !same && policy.Mode == ModeNoCORS {
		_, _ = io.Copy(io.Discard, resp.Body)
		return opaqueResponse(target.String()), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	header := http.Header{}
	CopyHeaders(header, resp.Header)
	result := NewResponse(target.String(), resp.StatusCode, header, body)
	if resp.Status != "" {
		result.Status = resp.Status
	}

	if !same {
		if err := checkCORS(resp.Header, c.originString(), credentialed); err != nil {
			return nil, err
		}
		result.Type = ResponseCORS
	}
	return result, nil
}

func (c *Client) originString() string {
	if c.origin == nil {
		return ""
	}
	return c.origin.Scheme + "://" + c.origin.Host
}

// hopByHopHeaders 定义 RFC 7230 中禁止代理转发的头部，缓存快照中同样剔除。
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
	"Proxy-Connection":    {}, // 非标准字段，但部分代理仍使用
	"Set-Cookie":          {},
}

// CopyHeaders 将 src 中允许保存的头复制到 dst，自动忽略 hop-by-hop 与 Set-Cookie。
func CopyHeaders(dst, src http.Header) {
	for key, values := range src {
		if IsHopByHopHeader(key) {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

// IsHopByHopHeader reports whether the header should be stripped from snapshots.
func IsHopByHopHeader(key string) bool {
	_, ok := hopByHopHeaders[textproto.CanonicalMIMEHeaderKey(key)]
	return ok
}
