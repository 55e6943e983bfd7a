package punch

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// Document 是可并发填充的 HTML 文档；所有 DOM 修改都在锁内完成。
type Document struct {
	mu  sync.Mutex
	doc *goquery.Document
}

// Placeholder 是等待填充的元素及其来源 URL，作为事件 Context 回传。
type Placeholder struct {
	URL       string
	Selection *goquery.Selection

	doc *Document
}

// Owner 返回占位元素所属的文档。
func (p *Placeholder) Owner() *Document {
	if p == nil {
		return nil
	}
	return p.doc
}

// ParseDocument 解析 HTML 文档。
func ParseDocument(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Document{doc: doc}, nil
}

// ParseString 是 ParseDocument 的字符串版本。
func ParseString(html string) (*Document, error) {
	return ParseDocument(strings.NewReader(html))
}

// ElementByID 返回 id 完全匹配的第一个元素，不经过 CSS 转义。
func (d *Document) ElementByID(id string) *goquery.Selection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Find("[id]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		value, _ := s.Attr("id")
		return value == id
	}).First()
}

// Placeholders 返回 selector 命中的元素及其 attr 属性值。
func (d *Document) Placeholders(selector, attr string) []*Placeholder {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*Placeholder
	d.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		value, _ := s.Attr(attr)
		out = append(out, &Placeholder{
			URL:       strings.TrimSpace(value),
			Selection: s,
			doc:       d,
		})
	})
	return out
}

// SetInnerHTML 用 html 替换 sel 的子节点。
func (d *Document) SetInnerHTML(sel *goquery.Selection, html string) {
	if sel == nil || sel.Length() == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	sel.SetHtml(html)
}

// InnerHTML 返回 sel 当前的内部 HTML。
func (d *Document) InnerHTML(sel *goquery.Selection) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return sel.Html()
}

// Render 输出完整文档。
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Html()
}
