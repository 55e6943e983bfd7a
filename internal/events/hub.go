package events

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Event 是派发给订阅者的结构化事件，Detail 即 Fire 时传入的 payload。
type Event struct {
	Name   string
	Detail any
}

// Handler 处理单个事件。
type Handler func(Event)

type subscription struct {
	id      uint64
	handler Handler
}

// Hub 是进程内的 名称 → 有序处理器列表 注册表。
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string][]subscription
	logger logrus.FieldLogger
}

// NewHub 创建空注册表；logger 可为空，仅用于记录处理器 panic。
func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		subs:   make(map[string][]subscription),
		logger: logger,
	}
}

// Registration 是 On 返回的注册句柄。
type Registration struct {
	hub  *Hub
	name string
	id   uint64
}

// Remove 注销处理器，重复调用无副作用。
func (r Registration) Remove() {
	if r.hub == nil {
		return
	}
	r.hub.off(r.name, r.id)
}

// On 为 name 注册处理器；同名处理器按注册顺序执行。
func (h *Hub) On(name string, handler Handler) Registration {
	if name == "" || handler == nil {
		return Registration{}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.subs[name] = append(h.subs[name], subscription{id: id, handler: handler})
	return Registration{hub: h, name: name, id: id}
}

func (h *Hub) off(name string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[name]
	for i, sub := range list {
		if sub.id != id {
			continue
		}
		next := make([]subscription, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(h.subs, name)
		} else {
			h.subs[name] = next
		}
		return
	}
}

// Fire 同步执行 Fire 时刻已注册的处理器；没有订阅者时静默返回。
// 单个处理器 panic 不会影响后续处理器。
func (h *Hub) Fire(name string, detail any) {
	h.mu.RLock()
	list := h.subs[name]
	h.mu.RUnlock()

	event := Event{Name: name, Detail: detail}
	for _, sub := range list {
		h.dispatch(sub.handler, event)
	}
}

func (h *Hub) dispatch(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil && h.logger != nil {
			h.logger.WithFields(logrus.Fields{
				"action": "event_dispatch",
				"event":  event.Name,
			}).Warn(fmt.Sprintf("event handler panic: %v", r))
		}
	}()
	handler(event)
}

// Count 返回 name 当前的订阅者数量。
func (h *Hub) Count(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[name])
}

// Snapshot 返回每个事件名的订阅者数量，供诊断接口输出。
func (h *Hub) Snapshot() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string]int, len(h.subs))
	for name, list := range h.subs {
		out[name] = len(list)
	}
	return out
}
