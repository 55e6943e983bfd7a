package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// ResponseType 对应 fetch Response.type：同源、跨域可读或不透明。
type ResponseType string

const (
	ResponseBasic  ResponseType = "basic"
	ResponseCORS   ResponseType = "cors"
	ResponseOpaque ResponseType = "opaque"
)

// Response 是缓冲后的上游响应快照。正文为不可变字节切片，
// 每次读取都会得到独立的 Reader，因此多个订阅者可以并发消费。
type Response struct {
	URL        string
	StatusCode int
	Status     string
	Header     http.Header
	Type       ResponseType
	body       []byte
}

// NewResponse 构建响应快照，body 会被复制一份。
func NewResponse(url string, statusCode int, header http.Header, body []byte) *Response {
	if header == nil {
		header = http.Header{}
	}
	return &Response{
		URL:        url,
		StatusCode: statusCode,
		Status:     fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
		Header:     header.Clone(),
		Type:       ResponseBasic,
		body:       append([]byte(nil), body...),
	}
}

// opaqueResponse 模拟 no-cors 跨域响应：状态 0、无头、无正文。
func opaqueResponse(url string) *Response {
	return &Response{
		URL:    url,
		Header: http.Header{},
		Type:   ResponseOpaque,
	}
}

// OK 报告状态码是否位于 200-299。
func (r *Response) OK() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode <= 299
}

// Clone 返回一份独立的副本，修改副本的 Header 不影响原响应。
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	dup := *r
	dup.Header = r.Header.Clone()
	dup.body = append([]byte(nil), r.body...)
	return &dup
}

// Body 返回一个新的正文 Reader。
func (r *Response) Body() io.ReadCloser {
	return io.NopCloser(bytes.NewReader(r.body))
}

// Bytes 返回正文副本。
func (r *Response) Bytes() []byte {
	return append([]byte(nil), r.body...)
}

// Text 以字符串形式返回正文。
func (r *Response) Text() string {
	return string(r.body)
}

// Len 返回正文长度。
func (r *Response) Len() int {
	return len(r.body)
}
