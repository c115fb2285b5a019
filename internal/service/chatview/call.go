// call.go
// 核心职责：模拟音视频通话生命周期的状态机
// idle → connecting → active → idle，不涉及真实媒体传输
// 本地挂断只重置状态并通知通道；带权威时长的通话记录
// 仅在收到远端 call_ended 事件时追加
package chatview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kama_support_chat/internal/bridge"
	"kama_support_chat/internal/event"
	"kama_support_chat/internal/model"
	"kama_support_chat/pkg/constants"
	"kama_support_chat/pkg/errorx"
	"kama_support_chat/pkg/util/snowflake"

	"go.uber.org/zap"
)

// CallController 通话状态机控制器
// 同一时刻至多一个通话会话，connecting/active 期间拒绝再次发起
type CallController struct {
	mu           sync.Mutex
	state        model.CallState
	connectDelay time.Duration
	tickEvery    time.Duration
	connectTimer *time.Timer
	ticker       *time.Ticker
	tickDone     chan struct{}
	closed       bool

	ch          bridge.Bridge
	localUserId int64
	partner     func() *model.Partner
	appendLog   func(model.Message)
	onChange    func(model.CallState)
}

// NewCallController 创建通话控制器
// partner 返回当前会话对端（可能尚未解析）；appendLog 把通话记录写入消息列表；
// connectDelay/tickEvery <= 0 时取默认值；onChange 可为空
func NewCallController(
	ch bridge.Bridge,
	localUserId int64,
	partner func() *model.Partner,
	appendLog func(model.Message),
	connectDelay, tickEvery time.Duration,
	onChange func(model.CallState),
) *CallController {
	if connectDelay <= 0 {
		connectDelay = constants.CALL_CONNECT_DELAY
	}
	if tickEvery <= 0 {
		tickEvery = constants.CALL_TICK
	}
	return &CallController{
		state:        model.CallState{Status: model.CallIdle},
		connectDelay: connectDelay,
		tickEvery:    tickEvery,
		ch:           ch,
		localUserId:  localUserId,
		partner:      partner,
		appendLog:    appendLog,
		onChange:     onChange,
	}
}

// Initiate 发起通话
// 前置条件：对端已解析、通道连通、当前无通话；满足后 idle→connecting，
// 通知通道并启动模拟接通定时器
func (c *CallController) Initiate(ctx context.Context, kind model.CallKind) error {
	if kind != model.CallVoice && kind != model.CallVideo {
		return errorx.ErrInvalidParam
	}
	p := c.partner()
	if p == nil {
		return errorx.ErrNoPartner
	}
	if !c.ch.Connected() {
		return errorx.ErrDisconnected
	}

	c.mu.Lock()
	if c.closed || c.state.Status != model.CallIdle {
		c.mu.Unlock()
		return errorx.ErrCallState
	}
	c.state = model.CallState{Status: model.CallConnecting, Kind: kind}
	c.connectTimer = time.AfterFunc(c.connectDelay, c.connected)
	onChange := c.onChange
	snapshot := c.state
	c.mu.Unlock()

	if err := c.ch.Publish(ctx, event.InitiateCallOut, event.InitiateCallPayload{
		Kind:   kind,
		ToId:   p.Id,
		FromId: c.localUserId,
	}); err != nil {
		// 通知失败则回滚到 idle，不进入半挂起的 connecting 状态
		c.mu.Lock()
		c.stopTimersLocked()
		c.state = model.CallState{Status: model.CallIdle}
		c.mu.Unlock()
		return errorx.Wrap(err, errorx.CodeSendFailed, "发起通话通知失败")
	}

	if onChange != nil {
		onChange(snapshot)
	}
	return nil
}

// connected 模拟接通定时器触发：connecting→active
// 记录开始时间，启动每秒计时，并追加"通话开始"记录
func (c *CallController) connected() {
	c.mu.Lock()
	if c.closed || c.state.Status != model.CallConnecting {
		c.mu.Unlock()
		return
	}
	c.state.Status = model.CallActive
	c.state.StartedAt = time.Now()
	c.state.Elapsed = 0
	c.connectTimer = nil

	c.ticker = time.NewTicker(c.tickEvery)
	c.tickDone = make(chan struct{})
	go c.tickLoop(c.ticker, c.tickDone)

	kind := c.state.Kind
	snapshot := c.state
	onChange := c.onChange
	appendLog := c.appendLog
	c.mu.Unlock()

	label := "Voice"
	if kind == model.CallVideo {
		label = "Video"
	}
	appendLog(model.Message{
		Id:         snowflake.GenerateID(),
		Content:    fmt.Sprintf("%s call started", label),
		SenderRole: model.RoleBot,
		Kind:       model.KindCallLog,
		CreatedAt:  time.Now(),
		IsRead:     true,
		CallKind:   kind,
	})
	if onChange != nil {
		onChange(snapshot)
	}
}

// tickLoop 每个计时步长递增已接通秒数
func (c *CallController) tickLoop(ticker *time.Ticker, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.closed || c.state.Status != model.CallActive {
				c.mu.Unlock()
				return
			}
			c.state.Elapsed++
			snapshot := c.state
			onChange := c.onChange
			c.mu.Unlock()

			if onChange != nil {
				onChange(snapshot)
			}
		}
	}
}

// End 本地挂断：active/connecting → idle，取消计时并通知通道
// 不在本地追加通话记录，带时长的记录由远端 call_ended 事件产生
func (c *CallController) End(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || c.state.Status == model.CallIdle {
		c.mu.Unlock()
		return nil
	}
	c.stopTimersLocked()
	c.state = model.CallState{Status: model.CallIdle}
	snapshot := c.state
	onChange := c.onChange
	c.mu.Unlock()

	if p := c.partner(); p != nil {
		if err := c.ch.Publish(ctx, event.EndCallOut, event.EndCallPayload{
			ToId:   p.Id,
			FromId: c.localUserId,
		}); err != nil {
			zap.L().Error("end call notify failed", zap.Error(err))
		}
	}
	if onChange != nil {
		onChange(snapshot)
	}
	return nil
}

// HandleRemoteEnded 远端通话结束事件：携带权威时长
// 追加格式化时长的通话记录并重置状态
func (c *CallController) HandleRemoteEnded(duration int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	kind := c.state.Kind
	if kind == "" {
		kind = model.CallVoice
	}
	c.stopTimersLocked()
	c.state = model.CallState{Status: model.CallIdle}
	snapshot := c.state
	onChange := c.onChange
	appendLog := c.appendLog
	c.mu.Unlock()

	label := "Voice"
	if kind == model.CallVideo {
		label = "Video"
	}
	appendLog(model.Message{
		Id:           snowflake.GenerateID(),
		Content:      fmt.Sprintf("%s call ended - Duration: %dm %ds", label, duration/60, duration%60),
		SenderRole:   model.RoleBot,
		Kind:         model.KindCallLog,
		CreatedAt:    time.Now(),
		IsRead:       true,
		CallDuration: duration,
		CallKind:     kind,
	})
	if onChange != nil {
		onChange(snapshot)
	}
}

// State 返回当前通话状态快照
func (c *CallController) State() model.CallState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close 停止所有定时器，之后状态不再变化
func (c *CallController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.stopTimersLocked()
	c.state = model.CallState{Status: model.CallIdle}
}

// stopTimersLocked 取消接通定时器与通话计时，须持锁调用
func (c *CallController) stopTimersLocked() {
	if c.connectTimer != nil {
		c.connectTimer.Stop()
		c.connectTimer = nil
	}
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.tickDone != nil {
		close(c.tickDone)
		c.tickDone = nil
	}
}
