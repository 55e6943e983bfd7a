package transport

import (
	"net/url"
	"testing"
)

func TestRequestKeyNormalization(t *testing.T) {
	origin, _ := url.Parse("https://www.example.com/")

	testCases := []struct {
		name string
		raw  string
		want string
	}{
		{"relative path", "/a.html", "GET https://www.example.com/a.html"},
		{"default port and case", "HTTPS://WWW.Example.com:443/a.html", "GET https://www.example.com/a.html"},
		{"fragment dropped", "/a.html#top", "GET https://www.example.com/a.html"},
		{"query kept", "/a.html?v=2", "GET https://www.example.com/a.html?v=2"},
		{"empty path", "http://other.test", "GET http://other.test/"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := RequestKey(origin, tc.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestRequestKeyRejectsUnsupportedScheme(t *testing.T) {
	if _, err := RequestKey(nil, "ftp://example.com/file"); err == nil {
		t.Fatalf("ftp scheme should be rejected")
	}
	if _, err := RequestKey(nil, "   "); err == nil {
		t.Fatalf("empty url should be rejected")
	}
}

func TestResponseCloneIsIndependent(t *testing.T) {
	resp := NewResponse("https://example.com/", 200, nil, []byte("body"))
	resp.Header.Set("X-A", "1")

	dup := resp.Clone()
	dup.Header.Set("X-A", "2")

	if resp.Header.Get("X-A") != "1" {
		t.Fatalf("clone header mutation leaked into original")
	}
	if dup.Text() != "body" || resp.Text() != "body" {
		t.Fatalf("bodies should both read fully")
	}
	b := dup.Bytes()
	b[0] = 'X'
	if dup.Text() != "body" {
		t.Fatalf("Bytes must return a copy")
	}
}

func TestParsePolicy(t *testing.T) {
	policy, err := ParsePolicy("", "")
	if err != nil || policy != DefaultPolicy() {
		t.Fatalf("empty values should yield default policy, got %+v (%v)", policy, err)
	}
	if _, err := ParsePolicy("navigate", ""); err == nil {
		t.Fatalf("unknown mode should fail")
	}
	policy, err = ParsePolicy("cors", "include")
	if err != nil || policy.Mode != ModeCORS || policy.Credentials != CredentialsInclude {
		t.Fatalf("unexpected policy %+v (%v)", policy, err)
	}
}
