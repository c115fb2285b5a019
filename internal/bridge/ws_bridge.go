// ws_bridge.go
// 核心职责：WebSocket 通道实现
// 1. 建立连接并维护读写协程 (Read/Write Loop)
// 2. 读协程解析事件信封并分发给订阅者
// 3. 写协程从缓冲通道消费出站事件
package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"kama_support_chat/internal/event"
	"kama_support_chat/pkg/constants"
	"kama_support_chat/pkg/errorx"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WsBridge 基于 gorilla/websocket 的通道实现
type WsBridge struct {
	*dispatcher

	conn      *websocket.Conn
	sendTo    chan []byte // 出站事件缓冲通道
	done      chan struct{}
	closeOnce sync.Once
	connected atomic.Bool
}

// DialWs 建立 WebSocket 连接并启动读写协程
func DialWs(ctx context.Context, url string) (*WsBridge, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeDisconnected, "websocket 连接失败")
	}

	b := &WsBridge{
		dispatcher: newDispatcher(),
		conn:       conn,
		sendTo:     make(chan []byte, constants.CHANNEL_SIZE),
		done:       make(chan struct{}),
	}
	b.connected.Store(true)

	go b.readLoop()
	go b.writeLoop()
	zap.L().Info("ws bridge connected", zap.String("url", url))
	return b, nil
}

// readLoop 从 WebSocket 读取事件信封并分发
// 读失败视为连接断开：翻转状态、通知订阅者并退出
func (b *WsBridge) readLoop() {
	for {
		_, raw, err := b.conn.ReadMessage()
		if err != nil {
			select {
			case <-b.done:
			default:
				zap.L().Error("ws read error", zap.Error(err))
			}
			if b.connected.CompareAndSwap(true, false) {
				b.notifyState(false)
			}
			return
		}

		var env event.Envelope
		if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
			zap.L().Warn("ws bridge dropped malformed envelope", zap.Error(err))
			continue
		}
		b.dispatch(env.Event, env.Data)
	}
}

// writeLoop 从 sendTo 通道消费出站事件并写入 WebSocket
func (b *WsBridge) writeLoop() {
	for {
		select {
		case <-b.done:
			return
		case raw := <-b.sendTo:
			if err := b.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				zap.L().Error("ws write error", zap.Error(err))
				if b.connected.CompareAndSwap(true, false) {
					b.notifyState(false)
				}
				return
			}
		}
	}
}

// Publish 发布出站事件
func (b *WsBridge) Publish(ctx context.Context, eventName string, payload any) error {
	if !b.connected.Load() {
		return errorx.ErrDisconnected
	}
	raw, err := event.Marshal(eventName, payload)
	if err != nil {
		return err
	}
	select {
	case b.sendTo <- raw:
		return nil
	case <-b.done:
		return errorx.ErrDisconnected
	case <-ctx.Done():
		return errorx.Wrap(ctx.Err(), errorx.CodeSendFailed, "发布事件被取消")
	}
}

// Subscribe 注册入站事件处理器
func (b *WsBridge) Subscribe(eventName string, h Handler) (Subscription, error) {
	return b.subscribe(eventName, h), nil
}

// OnStateChange 注册连接状态变化回调
func (b *WsBridge) OnStateChange(h func(bool)) Subscription {
	return b.onStateChange(h)
}

// Connected 返回通道当前是否连通
func (b *WsBridge) Connected() bool {
	return b.connected.Load()
}

// Close 关闭连接并停止读写协程，幂等
func (b *WsBridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.connected.Store(false)
		close(b.done)
		err = b.conn.Close()
	})
	return err
}
