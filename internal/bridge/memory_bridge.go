// memory_bridge.go
// 核心职责：进程内回环通道实现
// 1. 不依赖外部消息队列，适合测试与本地演示
// 2. Publish 记录出站事件并回调模拟对端
// 3. Deliver 注入入站事件，模拟远端推送
package bridge

import (
	"context"
	"sync"

	"kama_support_chat/pkg/errorx"
)

// PublishedEvent 记录一次出站发布
type PublishedEvent struct {
	Event string
	Data  []byte
}

// MemoryBridge 进程内通道实现
type MemoryBridge struct {
	*dispatcher

	mu        sync.Mutex
	connected bool
	published []PublishedEvent
	onPublish func(eventName string, data []byte) // 模拟对端，可为空
}

// NewMemoryBridge 创建进程内通道，初始为连通状态
func NewMemoryBridge() *MemoryBridge {
	return &MemoryBridge{
		dispatcher: newDispatcher(),
		connected:  true,
	}
}

// SetOnPublish 设置模拟对端回调，在每次 Publish 后同步触发
func (b *MemoryBridge) SetOnPublish(h func(eventName string, data []byte)) {
	b.mu.Lock()
	b.onPublish = h
	b.mu.Unlock()
}

// Publish 发布出站事件
func (b *MemoryBridge) Publish(ctx context.Context, eventName string, payload any) error {
	raw, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	b.mu.Lock()
	if !b.connected {
		b.mu.Unlock()
		return errorx.ErrDisconnected
	}
	b.published = append(b.published, PublishedEvent{Event: eventName, Data: raw})
	h := b.onPublish
	b.mu.Unlock()

	if h != nil {
		h(eventName, raw)
	}
	return nil
}

// Deliver 注入一个入站事件，模拟远端推送
func (b *MemoryBridge) Deliver(eventName string, payload any) error {
	raw, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	b.dispatch(eventName, raw)
	return nil
}

// Published 返回出站事件记录快照
func (b *MemoryBridge) Published() []PublishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]PublishedEvent, len(b.published))
	copy(out, b.published)
	return out
}

// SetConnected 切换连通状态并通知状态订阅者
func (b *MemoryBridge) SetConnected(connected bool) {
	b.mu.Lock()
	changed := b.connected != connected
	b.connected = connected
	b.mu.Unlock()
	if changed {
		b.notifyState(connected)
	}
}

// Subscribe 注册入站事件处理器
func (b *MemoryBridge) Subscribe(eventName string, h Handler) (Subscription, error) {
	return b.subscribe(eventName, h), nil
}

// OnStateChange 注册连接状态变化回调
func (b *MemoryBridge) OnStateChange(h func(bool)) Subscription {
	return b.onStateChange(h)
}

// Connected 返回通道当前是否连通
func (b *MemoryBridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

// Close 关闭通道
func (b *MemoryBridge) Close() error {
	b.SetConnected(false)
	return nil
}
