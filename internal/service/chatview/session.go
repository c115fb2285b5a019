// session.go
// 核心职责：支持会话视图的装配与生命周期
// 1. 打开时加入会话、拉取摘要与历史、注册全部事件订阅
// 2. 入站事件在边界处解码校验后驱动各组件
// 3. 销毁时逐个释放订阅句柄并取消所有定时器，
//    在途请求的完成回调先检查存活标记再改写状态
package chatview

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"kama_support_chat/internal/bridge"
	"kama_support_chat/internal/event"
	"kama_support_chat/internal/model"
	"kama_support_chat/pkg/constants"
	"kama_support_chat/pkg/errorx"

	"go.uber.org/zap"
)

// Options 会话装配参数
// 时间类参数为零值时取 pkg/constants 中的默认值
type Options struct {
	Bridge      bridge.Bridge
	Api         SupportAPI
	LocalUserId int64

	HistoryLimit int
	TypingExpiry time.Duration
	ConnectDelay time.Duration
	CallTick     time.Duration
	AwayIdle     time.Duration

	// UI 回调，均可为空；在事件协程上同步调用，不得阻塞
	OnStatusChange func(Status)
	OnTypingChange func(bool)
	OnCallChange   func(model.CallState)
	OnMessage      func(model.Message)
	OnConnectivity func(bool)
	OnIncomingCall func(kind model.CallKind, fromId int64)
	OnReadReceipt  func(ids []int64)
}

// Session 支持会话视图
// 状态迁移由互斥锁串行化：定时器与通道回调在 Go 中是独立协程，
// 锁即原设计中"唯一写者"的事件循环
type Session struct {
	opts Options

	store    *MessageStore
	presence *PresenceTracker
	typing   *TypingIndicator
	call     *CallController
	composer *Composer

	mu         sync.Mutex
	partner    *model.Partner
	viewCount  int
	replyCount int
	sending    bool

	closed atomic.Bool
	subs   []bridge.Subscription
}

// Open 打开支持会话视图
// 摘要拉取失败只记录日志（对端未解析时发送被拒）；
// 历史拉取失败降级为空会话而不是整体失败
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.Bridge == nil || opts.Api == nil {
		return nil, errorx.ErrInvalidParam
	}
	if opts.LocalUserId == 0 {
		return nil, errorx.New(errorx.CodeInvalidParam, "本地用户标识缺失")
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = constants.HISTORY_LIMIT
	}

	s := &Session{
		opts:     opts,
		store:    NewMessageStore(),
		composer: NewComposer(),
	}
	s.presence = NewPresenceTracker(opts.AwayIdle, opts.OnStatusChange)
	s.typing = NewTypingIndicator(opts.TypingExpiry, opts.OnTypingChange)
	s.call = NewCallController(
		opts.Bridge,
		opts.LocalUserId,
		s.Partner,
		s.appendMessage,
		opts.ConnectDelay,
		opts.CallTick,
		opts.OnCallChange,
	)

	// 加入支持会话
	if err := opts.Bridge.Publish(ctx, event.JoinSupport, event.JoinSupportPayload{UserId: opts.LocalUserId}); err != nil {
		zap.L().Error("join support conversation failed", zap.Error(err))
	}

	// 拉取会话摘要
	if summary, err := opts.Api.GetSupportConversation(ctx); err != nil {
		zap.L().Error("load support conversation failed", zap.Error(err))
	} else {
		partner := summary.User
		s.mu.Lock()
		s.partner = &partner
		s.viewCount = summary.ViewCount
		s.replyCount = summary.ReplyCount
		s.mu.Unlock()
		if partner.IsOnline {
			s.presence.AgentOnline()
		}
	}

	s.registerSubscriptions()

	// 拉取历史消息，失败降级为空会话
	if history, err := opts.Api.GetSupportMessages(ctx, opts.HistoryLimit); err != nil {
		zap.L().Error("load support messages failed", zap.Error(err))
	} else {
		s.store.Reset(history)
		s.markRemoteUnreadRead(ctx)
	}

	zap.L().Info("support chat session opened", zap.Int64("userId", opts.LocalUserId))
	return s, nil
}

// registerSubscriptions 注册全部通道订阅
// 每个订阅都保留显式句柄，Close 时逐个释放
func (s *Session) registerSubscriptions() {
	sub := func(name string, h bridge.Handler) {
		subscription, err := s.opts.Bridge.Subscribe(name, h)
		if err != nil {
			zap.L().Error("subscribe event failed", zap.String("event", name), zap.Error(err))
			return
		}
		s.subs = append(s.subs, subscription)
	}

	sub(event.NewMessage, s.handleNewMessage)
	sub(event.Typing, s.handleTyping)
	sub(event.StopTyping, s.handleStopTyping)
	sub(event.AgentOnline, s.handleAgentOnline)
	sub(event.AgentOffline, s.handleAgentOffline)
	sub(event.CallIncoming, s.handleCallIncoming)
	sub(event.CallEnded, s.handleCallEnded)
	sub(event.MessagesRead, s.handleMessagesRead)
	sub(event.UserOnline, s.handleUserOnline)
	sub(event.UserOffline, s.handleUserOffline)

	s.subs = append(s.subs, s.opts.Bridge.OnStateChange(s.handleConnectivity))
}

// handleNewMessage 新消息事件
// 追加进消息列表；来自对端的未读消息立即本地置读并上报
func (s *Session) handleNewMessage(raw []byte) {
	if s.closed.Load() {
		return
	}
	payload, err := event.Decode[event.NewMessagePayload](raw)
	if err != nil {
		zap.L().Warn("drop malformed new message event", zap.Error(err))
		return
	}
	msg := payload.ToModel(s.opts.LocalUserId)
	s.appendMessage(msg)

	if msg.SenderRole != model.RoleUser && !msg.IsRead {
		s.store.MarkRead(msg.Id)
		go s.reportRead()
	}
}

func (s *Session) handleTyping(raw []byte) {
	if s.closed.Load() {
		return
	}
	payload, err := event.Decode[event.TypingPayload](raw)
	if err != nil {
		zap.L().Warn("drop malformed typing event", zap.Error(err))
		return
	}
	s.typing.HandleTyping(payload.SenderType)
}

func (s *Session) handleStopTyping([]byte) {
	if s.closed.Load() {
		return
	}
	s.typing.HandleStopTyping()
}

func (s *Session) handleAgentOnline([]byte) {
	if s.closed.Load() {
		return
	}
	s.setPartnerOnline(true)
	s.presence.AgentOnline()
}

func (s *Session) handleAgentOffline([]byte) {
	if s.closed.Load() {
		return
	}
	s.setPartnerOnline(false)
	s.presence.AgentOffline()
}

func (s *Session) handleCallIncoming(raw []byte) {
	if s.closed.Load() {
		return
	}
	payload, err := event.Decode[event.CallIncomingPayload](raw)
	if err != nil {
		zap.L().Warn("drop malformed call incoming event", zap.Error(err))
		return
	}
	zap.L().Info("incoming call",
		zap.String("kind", string(payload.Kind)),
		zap.Int64("fromId", payload.FromId))
	if s.opts.OnIncomingCall != nil {
		s.opts.OnIncomingCall(payload.Kind, payload.FromId)
	}
}

func (s *Session) handleCallEnded(raw []byte) {
	if s.closed.Load() {
		return
	}
	payload, err := event.Decode[event.CallEndedPayload](raw)
	if err != nil {
		zap.L().Warn("drop malformed call ended event", zap.Error(err))
		return
	}
	s.call.HandleRemoteEnded(payload.Duration)
}

func (s *Session) handleMessagesRead(raw []byte) {
	if s.closed.Load() {
		return
	}
	payload, err := event.Decode[event.MessagesReadPayload](raw)
	if err != nil {
		zap.L().Warn("drop malformed messages read event", zap.Error(err))
		return
	}
	if s.store.MarkReadBulk(payload.MessageIds) > 0 && s.opts.OnReadReceipt != nil {
		s.opts.OnReadReceipt(payload.MessageIds)
	}
}

func (s *Session) handleUserOnline([]byte) {
	if s.closed.Load() {
		return
	}
	s.mu.Lock()
	partnerOnline := s.partner != nil && s.partner.IsOnline
	s.mu.Unlock()
	s.presence.UserOnline(partnerOnline)
}

func (s *Session) handleUserOffline([]byte) {
	if s.closed.Load() {
		return
	}
	s.presence.UserOffline()
}

func (s *Session) handleConnectivity(connected bool) {
	if s.closed.Load() {
		return
	}
	zap.L().Info("channel connectivity changed", zap.Bool("connected", connected))
	if s.opts.OnConnectivity != nil {
		s.opts.OnConnectivity(connected)
	}
}

// appendMessage 追加消息并通知 UI
func (s *Session) appendMessage(msg model.Message) {
	if s.closed.Load() {
		return
	}
	s.store.Append(msg)
	if s.opts.OnMessage != nil {
		s.opts.OnMessage(msg)
	}
}

// markRemoteUnreadRead 历史加载后把对端未读消息本地置读并上报
func (s *Session) markRemoteUnreadRead(ctx context.Context) {
	ids := s.store.UnreadFrom(model.RoleAgent)
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		s.store.MarkRead(id)
	}
	p := s.Partner()
	if p == nil {
		return
	}
	if err := s.opts.Api.MarkAsRead(ctx, p.Id); err != nil {
		zap.L().Error("mark as read failed", zap.Error(err))
	}
}

// reportRead 上报已读，异步完成回调先检查存活标记
func (s *Session) reportRead() {
	p := s.Partner()
	if p == nil || s.closed.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), constants.REQUEST_TIMEOUT)
	defer cancel()
	if err := s.opts.Api.MarkAsRead(ctx, p.Id); err != nil {
		zap.L().Error("mark as read failed", zap.Error(err))
	}
}

func (s *Session) setPartnerOnline(online bool) {
	s.mu.Lock()
	if s.partner != nil {
		s.partner.IsOnline = online
	}
	s.mu.Unlock()
}

// InitiateCall 发起通话
func (s *Session) InitiateCall(ctx context.Context, kind model.CallKind) error {
	if s.closed.Load() {
		return errorx.ErrCallState
	}
	return s.call.Initiate(ctx, kind)
}

// EndCall 本地挂断
func (s *Session) EndCall(ctx context.Context) error {
	if s.closed.Load() {
		return nil
	}
	return s.call.End(ctx)
}

// Partner 返回会话对端快照，未解析时为 nil
func (s *Session) Partner() *model.Partner {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.partner == nil {
		return nil
	}
	p := *s.partner
	return &p
}

// Status 返回对端展示状态
func (s *Session) Status() Status {
	return s.presence.Status()
}

// Typing 返回对端输入指示状态
func (s *Session) Typing() bool {
	return s.typing.Active()
}

// CallState 返回通话状态快照
func (s *Session) CallState() model.CallState {
	return s.call.State()
}

// Messages 返回消息列表快照
func (s *Session) Messages() []model.Message {
	return s.store.Messages()
}

// Composer 返回草稿缓冲
func (s *Session) Composer() *Composer {
	return s.composer
}

// Sending 返回发送忙标志
func (s *Session) Sending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sending
}

// ViewCount 会话浏览数
func (s *Session) ViewCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewCount
}

// ReplyCount 会话回复数
func (s *Session) ReplyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replyCount
}

// Close 销毁会话视图
// 释放全部订阅句柄、取消所有定时器、清理草稿预览资源；幂等
// 在途请求允许完成，其回调通过存活标记拒绝后续状态改写
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	for _, sub := range s.subs {
		sub.Cancel()
	}
	s.subs = nil
	s.typing.Close()
	s.presence.Close()
	s.call.Close()
	s.composer.Clear()
	zap.L().Info("support chat session closed")
}
