// presence.go
// 核心职责：从离散 presence 事件推导对端客服的三态状态
// online / away / offline，初始 offline
package chatview

import (
	"sync"
	"time"

	"kama_support_chat/pkg/constants"
)

// Status 对端客服的展示状态
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
)

// PresenceTracker 对端状态跟踪器
// away 由空闲定时器产生：online 状态下超过 awayIdle 没有客服事件则降级为 away，
// 任何再次上线的事件恢复 online 并重置计时
type PresenceTracker struct {
	mu        sync.Mutex
	status    Status
	awayIdle  time.Duration
	idleTimer *time.Timer
	onChange  func(Status)
	closed    bool
}

// NewPresenceTracker 创建跟踪器，初始状态 offline
// onChange 可为空，状态变化时回调
func NewPresenceTracker(awayIdle time.Duration, onChange func(Status)) *PresenceTracker {
	if awayIdle <= 0 {
		awayIdle = constants.AWAY_IDLE_TIMEOUT
	}
	return &PresenceTracker{
		status:   StatusOffline,
		awayIdle: awayIdle,
		onChange: onChange,
	}
}

// AgentOnline 客服上线事件
func (p *PresenceTracker) AgentOnline() {
	p.setOnline()
}

// AgentOffline 客服下线事件
func (p *PresenceTracker) AgentOffline() {
	p.setOffline()
}

// UserOnline 泛化的用户上线广播
// 仅当对端自身在线标记已为 true 时才升级为 online，
// 防止无关用户的上线广播串扰本会话状态
func (p *PresenceTracker) UserOnline(partnerOnline bool) {
	if !partnerOnline {
		return
	}
	p.setOnline()
}

// UserOffline 泛化的用户下线广播，无条件置 offline
func (p *PresenceTracker) UserOffline() {
	p.setOffline()
}

// Status 返回当前状态
func (p *PresenceTracker) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Close 停止空闲定时器，之后状态不再变化
func (p *PresenceTracker) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.stopIdleTimerLocked()
}

func (p *PresenceTracker) setOnline() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	changed := p.status != StatusOnline
	p.status = StatusOnline
	p.resetIdleTimerLocked()
	onChange := p.onChange
	p.mu.Unlock()

	if changed && onChange != nil {
		onChange(StatusOnline)
	}
}

func (p *PresenceTracker) setOffline() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	changed := p.status != StatusOffline
	p.status = StatusOffline
	p.stopIdleTimerLocked()
	onChange := p.onChange
	p.mu.Unlock()

	if changed && onChange != nil {
		onChange(StatusOffline)
	}
}

// resetIdleTimerLocked 重置空闲降级定时器，须持锁调用
func (p *PresenceTracker) resetIdleTimerLocked() {
	p.stopIdleTimerLocked()
	p.idleTimer = time.AfterFunc(p.awayIdle, p.idleExpired)
}

func (p *PresenceTracker) stopIdleTimerLocked() {
	if p.idleTimer != nil {
		p.idleTimer.Stop()
		p.idleTimer = nil
	}
}

// idleExpired 空闲定时器触发：online 降级为 away
func (p *PresenceTracker) idleExpired() {
	p.mu.Lock()
	if p.closed || p.status != StatusOnline {
		p.mu.Unlock()
		return
	}
	p.status = StatusAway
	p.idleTimer = nil
	onChange := p.onChange
	p.mu.Unlock()

	if onChange != nil {
		onChange(StatusAway)
	}
}
