package bridge

import (
	"encoding/json"
	"sync"

	"kama_support_chat/pkg/errorx"

	"github.com/google/uuid"
)

// marshalPayload 序列化出站事件载荷，nil 载荷对应空消息体
func marshalPayload(payload any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeInvalidParam, "事件载荷序列化失败")
	}
	return raw, nil
}

// dispatcher 各 Bridge 实现共用的事件分发表
// 事件名 → 订阅 id → 处理器；订阅 id 用 uuid 保证会话内唯一
type dispatcher struct {
	mu        sync.RWMutex
	handlers  map[string]map[string]Handler
	stateSubs map[string]func(bool)
}

func newDispatcher() *dispatcher {
	return &dispatcher{
		handlers:  make(map[string]map[string]Handler),
		stateSubs: make(map[string]func(bool)),
	}
}

// subscription 订阅句柄实现，Cancel 幂等
type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Cancel() {
	s.once.Do(s.cancel)
}

func (d *dispatcher) subscribe(eventName string, h Handler) Subscription {
	id := uuid.NewString()
	d.mu.Lock()
	if d.handlers[eventName] == nil {
		d.handlers[eventName] = make(map[string]Handler)
	}
	d.handlers[eventName][id] = h
	d.mu.Unlock()

	return &subscription{cancel: func() {
		d.mu.Lock()
		delete(d.handlers[eventName], id)
		d.mu.Unlock()
	}}
}

func (d *dispatcher) onStateChange(h func(bool)) Subscription {
	id := uuid.NewString()
	d.mu.Lock()
	d.stateSubs[id] = h
	d.mu.Unlock()

	return &subscription{cancel: func() {
		d.mu.Lock()
		delete(d.stateSubs, id)
		d.mu.Unlock()
	}}
}

// dispatch 将事件载荷分发给当前注册的所有处理器
// 先在锁内拷贝处理器列表，避免处理器内再订阅/退订造成死锁
func (d *dispatcher) dispatch(eventName string, data []byte) {
	d.mu.RLock()
	hs := make([]Handler, 0, len(d.handlers[eventName]))
	for _, h := range d.handlers[eventName] {
		hs = append(hs, h)
	}
	d.mu.RUnlock()

	for _, h := range hs {
		h(data)
	}
}

func (d *dispatcher) notifyState(connected bool) {
	d.mu.RLock()
	hs := make([]func(bool), 0, len(d.stateSubs))
	for _, h := range d.stateSubs {
		hs = append(hs, h)
	}
	d.mu.RUnlock()

	for _, h := range hs {
		h(connected)
	}
}
