package puncher

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/holepuncher/holepuncher/internal/cache"
	"github.com/holepuncher/holepuncher/internal/events"
	"github.com/holepuncher/holepuncher/internal/logging"
	"github.com/holepuncher/holepuncher/internal/transport"
)

var (
	// ErrUnsuccessfulResponse 表示上游返回了非 2xx（或不透明）响应。
	ErrUnsuccessfulResponse = errors.New("unsuccessful response")
	// ErrNoTransport 表示未注入 Transport。
	ErrNoTransport = errors.New("transport unavailable")
)

// Puncher 协调一次次独立的 查缓存 → 回源 → 写缓存 流程，自身不持有持久状态。
// 按调用点创建，也可以复用来批量抓取。
type Puncher struct {
	deps         Deps
	store        *cache.CacheStore
	events       *events.Hub
	policy       transport.Policy
	diag         *logging.Diagnostics
	reportErrors bool

	writes sync.WaitGroup

	flushMu      sync.Mutex
	flushDeleted bool
	flushErr     error
}

// New 基于共享依赖与开关构造 Puncher。
func New(deps Deps, opts Options) *Puncher {
	return &Puncher{
		deps:         deps,
		store:        cache.NewCacheStore(deps.Backend, deps.storeName(), opts.LocalCache),
		events:       events.NewHub(deps.Logger),
		policy:       deps.policy(),
		diag:         logging.NewDiagnostics(deps.Logger, opts.Verbose),
		reportErrors: opts.ReportErrors,
	}
}

// Events 返回事件注册表。
func (p *Puncher) Events() *events.Hub {
	return p.events
}

// On 是 Events().On 的简写。
func (p *Puncher) On(name string, handler events.Handler) events.Registration {
	return p.events.On(name, handler)
}

// CacheEnabled 报告本实例是否会读写缓存。
func (p *Puncher) CacheEnabled() bool {
	return p.store.Supported()
}

// Fetch 返回 rawURL 的响应，缓存优先；失败时返回 nil，错误不会向外传播。
// reqCtx 原样回传给事件订阅者，用于关联调用点。
func (p *Puncher) Fetch(ctx context.Context, rawURL string, reqCtx any) *transport.Response {
	key, keyErr := p.requestKey(rawURL)
	if keyErr != nil {
		p.diag.Error("request key unavailable, skipping cache", keyErr, logrus.Fields{"url": rawURL})
	} else if cached := p.lookup(ctx, key, rawURL); cached != nil {
		p.diag.Log("Event fetch_data", logging.FetchFields(rawURL, true))
		p.events.Fire(EventFetchData, FetchData{Response: cached, Context: reqCtx, Cached: true})
		return cached.Clone()
	}

	p.diag.Log("Event before_fetch", logging.FetchFields(rawURL, false))
	p.events.Fire(EventBeforeFetch, BeforeFetch{Context: reqCtx})

	if p.deps.Transport == nil {
		p.fail(rawURL, reqCtx, 0, ErrNoTransport)
		return nil
	}

	resp, err := p.deps.Transport.Fetch(ctx, rawURL, p.policy)
	if err != nil {
		p.fail(rawURL, reqCtx, 0, err)
		return nil
	}
	if !resp.OK() {
		p.fail(rawURL, reqCtx, resp.StatusCode, fmt.Errorf("%w: status %d (%s)", ErrUnsuccessfulResponse, resp.StatusCode, resp.Type))
		return nil
	}

	dup := resp.Clone()
	p.diag.Log("Event fetch_data", logging.FetchFields(rawURL, false))
	p.events.Fire(EventFetchData, FetchData{Response: dup, Context: reqCtx, Cached: false})

	if keyErr == nil {
		p.storeAsync(ctx, key, rawURL, resp)
	}
	return dup
}

// Flush 通过同名的新句柄删除整个缓存，然后触发 flush 事件。
// 与 LocalCache 开关无关；进行中的写入不会被取消。
func (p *Puncher) Flush(ctx context.Context) {
	fresh := cache.NewCacheStore(p.deps.Backend, p.deps.storeName(), true)
	deleted, err := fresh.Delete(ctx)
	if err != nil {
		p.diag.Error("cache delete failed", err, logrus.Fields{"store": fresh.Name()})
	}
	p.flushMu.Lock()
	p.flushDeleted, p.flushErr = deleted, err
	p.flushMu.Unlock()
	p.diag.Log("Event flush", nil)
	p.events.Fire(EventFlush, Flush{})
}

// FlushResult 返回最近一次 Flush 的删除结果：存储是否存在以及后端错误。
// 未调用过 Flush 时返回 false, nil。
func (p *Puncher) FlushResult() (bool, error) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()
	return p.flushDeleted, p.flushErr
}

// Wait 阻塞到所有后台缓存写入完成。Fetch 本身从不等待写入。
func (p *Puncher) Wait() {
	p.writes.Wait()
}

func (p *Puncher) requestKey(rawURL string) (string, error) {
	if p.deps.Transport == nil {
		return "", ErrNoTransport
	}
	return p.deps.Transport.RequestKey(rawURL)
}

func (p *Puncher) lookup(ctx context.Context, key, rawURL string) *transport.Response {
	cached, err := p.store.Get(ctx, key)
	if err != nil {
		p.diag.Error("cache lookup failed", err, logrus.Fields{"url": rawURL})
		return nil
	}
	return cached
}

// storeAsync 在后台写入原始响应；写入使用脱离调用方取消信号的 context。
func (p *Puncher) storeAsync(ctx context.Context, key, rawURL string, resp *transport.Response) {
	if !p.store.Supported() {
		return
	}
	writeCtx := context.WithoutCancel(ctx)
	p.writes.Add(1)
	go func() {
		defer p.writes.Done()
		if err := p.store.Put(writeCtx, key, resp); err != nil {
			p.diag.Error("cache write failed", err, logrus.Fields{"url": rawURL})
		}
	}()
}

func (p *Puncher) fail(rawURL string, reqCtx any, status int, err error) {
	p.diag.Error("fetch failed", err, logrus.Fields{"url": rawURL, "status": status})
	if !p.reportErrors {
		return
	}
	p.events.Fire(EventFetchError, FetchError{
		URL:        rawURL,
		Context:    reqCtx,
		StatusCode: status,
		Err:        err,
	})
}
