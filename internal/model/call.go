package model

import "time"

// CallKind 通话类型
type CallKind string

const (
	CallVoice CallKind = "voice"
	CallVideo CallKind = "video"
)

// CallStatus 通话状态机状态
// 合法迁移：idle → connecting → active → idle
type CallStatus string

const (
	CallIdle       CallStatus = "idle"
	CallConnecting CallStatus = "connecting"
	CallActive     CallStatus = "active"
)

// CallState 当前通话会话快照
// 同一时刻至多存在一个通话会话
type CallState struct {
	Status    CallStatus `json:"status"`
	Kind      CallKind   `json:"kind,omitempty"`
	StartedAt time.Time  `json:"started_at,omitempty"` // 仅 active 状态有效
	Elapsed   int        `json:"elapsed"`              // 已接通秒数
}
