package puncher

import "github.com/holepuncher/holepuncher/internal/transport"

// 事件名称。
const (
	EventBeforeFetch = "before_fetch"
	EventFetchData   = "fetch_data"
	EventFlush       = "flush"
	// EventFetchError 仅在 Options.ReportErrors 开启时触发。
	EventFetchError = "fetch_error"
)

// BeforeFetch 在缓存未命中、发起请求前触发。
type BeforeFetch struct {
	Context any
}

// FetchData 在拿到可用响应后触发；Response 是独立副本。
type FetchData struct {
	Response *transport.Response
	Context  any
	Cached   bool
}

// Flush 在缓存被清空后触发。
type Flush struct{}

// FetchError 描述一次失败的抓取；StatusCode 为 0 表示传输层错误或不透明响应。
type FetchError struct {
	URL        string
	Context    any
	StatusCode int
	Err        error
}
