package transport

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
)

// ErrCORS 表示 cors 模式下上游未授权当前 Origin 读取响应。
var ErrCORS = errors.New("cors check failed")

// credentialStore 汇总 Cookie 与 Bearer 凭证，仅在策略允许时附加到请求上。
type credentialStore struct {
	jar    http.CookieJar
	tokens oauth2.TokenSource
}

func newCredentialStore(bearerToken string) (*credentialStore, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	store := &credentialStore{jar: jar}
	if token := strings.TrimSpace(bearerToken); token != "" {
		store.tokens = oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		})
	}
	return store, nil
}

// attach 写入 Cookie 与 Authorization 头。
func (s *credentialStore) attach(req *http.Request) error {
	if s == nil {
		return nil
	}
	if s.jar != nil {
		for _, cookie := range s.jar.Cookies(req.URL) {
			req.AddCookie(cookie)
		}
	}
	if s.tokens != nil {
		token, err := s.tokens.Token()
		if err != nil {
			return fmt.Errorf("obtain bearer token: %w", err)
		}
		token.SetAuthHeader(req)
	}
	return nil
}

// remember 保存上游下发的 Cookie，后续带凭证的请求会自动携带。
func (s *credentialStore) remember(target *url.URL, resp *http.Response) {
	if s == nil || s.jar == nil {
		return
	}
	if cookies := resp.Cookies(); len(cookies) > 0 {
		s.jar.SetCookies(target, cookies)
	}
}

// checkCORS 校验 Access-Control-Allow-Origin；带凭证时不接受通配符。
func checkCORS(header http.Header, origin string, credentialed bool) error {
	allowed := strings.TrimSpace(header.Get("Access-Control-Allow-Origin"))
	switch {
	case allowed == "*" && !credentialed:
		return nil
	case allowed != "" && strings.EqualFold(strings.TrimRight(allowed, "/"), origin):
		if credentialed && !strings.EqualFold(header.Get("Access-Control-Allow-Credentials"), "true") {
			return fmt.Errorf("%w: credentials not allowed for %s", ErrCORS, origin)
		}
		return nil
	default:
		return fmt.Errorf("%w: origin %s not allowed (got %q)", ErrCORS, origin, allowed)
	}
}
