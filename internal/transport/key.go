package transport

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// ErrRelativeURL 表示未配置 Origin 时无法解析相对地址。
var ErrRelativeURL = errors.New("relative url requires an origin")

// Resolve 将 rawURL 相对 origin 解析为绝对地址，并去掉 fragment。
func Resolve(origin *url.URL, rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, errors.New("empty url")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	if !parsed.IsAbs() {
		if origin == nil {
			return nil, fmt.Errorf("%w: %s", ErrRelativeURL, rawURL)
		}
		parsed = origin.ResolveReference(parsed)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("url %q has no host", rawURL)
	}

	normalized := *parsed
	normalized.Fragment = ""
	normalized.RawFragment = ""
	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = canonicalHost(normalized.Scheme, normalized.Host)
	if normalized.Path == "" {
		normalized.Path = "/"
	}
	return &normalized, nil
}

// RequestKey 返回 "GET <normalized-url>" 形式的请求标识，缓存读写都以此为键。
// 只区分 URL，不考虑 Vary 等请求头。
func RequestKey(origin *url.URL, rawURL string) (string, error) {
	target, err := Resolve(origin, rawURL)
	if err != nil {
		return "", err
	}
	return http.MethodGet + " " + target.String(), nil
}

func canonicalHost(scheme, host string) string {
	host = strings.ToLower(host)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		return strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		return strings.TrimSuffix(host, ":443")
	}
	return host
}

func sameOrigin(a, b *url.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		canonicalHost(strings.ToLower(a.Scheme), a.Host) == canonicalHost(strings.ToLower(b.Scheme), b.Host)
}
