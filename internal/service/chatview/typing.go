// typing.go
// 核心职责：去抖的对端输入指示
// 仅响应客服角色的输入事件；收到后置真并重启过期定时器，
// 最新一次事件的定时器决定过期时刻
package chatview

import (
	"sync"
	"time"

	"kama_support_chat/internal/model"
	"kama_support_chat/pkg/constants"
)

// TypingIndicator 对端输入指示器
type TypingIndicator struct {
	mu       sync.Mutex
	active   bool
	expiry   time.Duration
	timer    *time.Timer
	onChange func(bool)
	closed   bool
}

// NewTypingIndicator 创建指示器
// expiry <= 0 时取默认过期时间；onChange 可为空
func NewTypingIndicator(expiry time.Duration, onChange func(bool)) *TypingIndicator {
	if expiry <= 0 {
		expiry = constants.TYPING_EXPIRY
	}
	return &TypingIndicator{
		expiry:   expiry,
		onChange: onChange,
	}
}

// HandleTyping 处理输入事件
// 非客服角色的事件忽略；置真并重启过期定时器（去抖）
func (t *TypingIndicator) HandleTyping(senderType string) {
	if senderType != string(model.RoleAgent) {
		return
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	changed := !t.active
	t.active = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.expiry, t.expire)
	onChange := t.onChange
	t.mu.Unlock()

	if changed && onChange != nil {
		onChange(true)
	}
}

// HandleStopTyping 处理显式停止输入事件：立即置假并取消定时器
func (t *TypingIndicator) HandleStopTyping() {
	t.setInactive()
}

// Active 返回指示器当前状态
func (t *TypingIndicator) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Close 取消未触发的定时器，之后状态不再变化
// 视图销毁时必须调用，避免悬挂回调在销毁后改写状态
func (t *TypingIndicator) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// expire 过期定时器触发：指示器自动熄灭
func (t *TypingIndicator) expire() {
	t.setInactive()
}

func (t *TypingIndicator) setInactive() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	changed := t.active
	t.active = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	onChange := t.onChange
	t.mu.Unlock()

	if changed && onChange != nil {
		onChange(false)
	}
}
