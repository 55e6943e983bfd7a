package punch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/holepuncher/holepuncher/internal/events"
	"github.com/holepuncher/holepuncher/internal/puncher"
)

// DefaultURLAttribute 是占位元素上保存片段地址的属性。
const DefaultURLAttribute = "data-url"

// maxConcurrentFetches 限制 All 同时进行的上游请求数。
const maxConcurrentFetches = 8

// One 抓取 url 并把正文写入 id 为 elementID 的元素；抓取失败时元素保持原样。
func One(ctx context.Context, deps puncher.Deps, doc *Document, url, elementID string, opts puncher.Options) *puncher.Puncher {
	p := puncher.New(deps, opts)
	target := doc.ElementByID(elementID)
	placeholder := &Placeholder{URL: url, Selection: target, doc: doc}

	if resp := p.Fetch(ctx, url, placeholder); resp != nil {
		doc.SetInnerHTML(target, resp.Text())
	}
	return p
}

// All 为 selector 命中的每个元素抓取 urlAttr 指向的片段并填充。
// 返回前等待所有抓取结束，但不等待缓存写入。
func All(ctx context.Context, deps puncher.Deps, doc *Document, selector, urlAttr string, opts puncher.Options) *puncher.Puncher {
	p := puncher.New(deps, opts)
	Fill(ctx, p, doc, selector, urlAttr)
	return p
}

// Fill 复用已有的 Puncher 批量填充占位元素，返回填充处理器的注册句柄。
// 填充通过 fetch_data 事件完成，因此缓存命中与回源走同一路径；属性为空的元素会被跳过。
// 处理器只写入属于 doc 的占位元素，同一 Puncher 先后填充多个文档时互不干扰。
func Fill(ctx context.Context, p *puncher.Puncher, doc *Document, selector, urlAttr string) events.Registration {
	if urlAttr == "" {
		urlAttr = DefaultURLAttribute
	}
	if selector == "" {
		selector = "[" + urlAttr + "]"
	}

	reg := p.On(puncher.EventFetchData, func(e events.Event) {
		data, ok := e.Detail.(puncher.FetchData)
		if !ok || data.Response == nil {
			return
		}
		placeholder, ok := data.Context.(*Placeholder)
		if !ok || placeholder.Owner() != doc {
			return
		}
		doc.SetInnerHTML(placeholder.Selection, data.Response.Clone().Text())
	})

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)
	for _, placeholder := range doc.Placeholders(selector, urlAttr) {
		if placeholder.URL == "" {
			continue
		}
		g.Go(func() error {
			p.Fetch(ctx, placeholder.URL, placeholder)
			return nil
		})
	}
	_ = g.Wait()
	return reg
}

// Flush 清空共享缓存并触发 flush 事件。
func Flush(ctx context.Context, deps puncher.Deps, opts puncher.Options) *puncher.Puncher {
	p := puncher.New(deps, opts)
	p.Flush(ctx)
	return p
}
