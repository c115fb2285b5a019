// amqp_bridge.go
// 核心职责：RabbitMQ 通道实现，用于与服务端同机房部署的场景
// topic 交换机 + 路由键 = 事件名；每个订阅事件绑定到同一消费队列
package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"kama_support_chat/pkg/errorx"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// AmqpBridge 基于 RabbitMQ 的通道实现
type AmqpBridge struct {
	*dispatcher

	conn      *amqp091.Connection
	ch        *amqp091.Channel
	exchange  string
	queue     string
	bindMu    sync.Mutex
	bound     map[string]bool // 已绑定到队列的路由键
	done      chan struct{}
	closeOnce sync.Once
	connected atomic.Bool
}

// DialAmqp 建立 RabbitMQ 连接，声明交换机与消费队列并启动消费协程
func DialAmqp(url, exchange, queue string) (*AmqpBridge, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.CodeDisconnected, "rabbitmq 连接失败")
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errorx.Wrap(err, errorx.CodeDisconnected, "rabbitmq 打开信道失败")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, errorx.Wrap(err, errorx.CodeDisconnected, "rabbitmq 声明交换机失败")
	}
	q, err := ch.QueueDeclare(queue, false, true, true, false, nil)
	if err != nil {
		conn.Close()
		return nil, errorx.Wrap(err, errorx.CodeDisconnected, "rabbitmq 声明队列失败")
	}

	b := &AmqpBridge{
		dispatcher: newDispatcher(),
		conn:       conn,
		ch:         ch,
		exchange:   exchange,
		queue:      q.Name,
		bound:      make(map[string]bool),
		done:       make(chan struct{}),
	}
	b.connected.Store(true)

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, errorx.Wrap(err, errorx.CodeDisconnected, "rabbitmq 启动消费失败")
	}
	go b.consumeLoop(deliveries)
	go b.watchClose()
	zap.L().Info("amqp bridge connected", zap.String("exchange", exchange), zap.String("queue", q.Name))
	return b, nil
}

// consumeLoop 按路由键（即事件名）分发投递
func (b *AmqpBridge) consumeLoop(deliveries <-chan amqp091.Delivery) {
	for {
		select {
		case <-b.done:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			b.dispatch(d.RoutingKey, d.Body)
		}
	}
}

// watchClose 监听连接关闭通知，翻转连通状态
func (b *AmqpBridge) watchClose() {
	errCh := b.conn.NotifyClose(make(chan *amqp091.Error, 1))
	select {
	case <-b.done:
	case amqpErr := <-errCh:
		if amqpErr != nil {
			zap.L().Error("amqp connection closed", zap.String("reason", amqpErr.Reason))
		}
		if b.connected.CompareAndSwap(true, false) {
			b.notifyState(false)
		}
	}
}

// Publish 发布出站事件，路由键为事件名，消息体为 JSON 载荷
func (b *AmqpBridge) Publish(ctx context.Context, eventName string, payload any) error {
	if !b.connected.Load() {
		return errorx.ErrDisconnected
	}
	body, err := marshalPayload(payload)
	if err != nil {
		return err
	}
	err = b.ch.PublishWithContext(
		ctx, b.exchange, eventName, false, false,
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeSendFailed, "rabbitmq 发布失败")
	}
	return nil
}

// Subscribe 注册入站事件处理器，并把事件名绑定到消费队列
func (b *AmqpBridge) Subscribe(eventName string, h Handler) (Subscription, error) {
	b.bindMu.Lock()
	if !b.bound[eventName] {
		if err := b.ch.QueueBind(b.queue, eventName, b.exchange, false, nil); err != nil {
			b.bindMu.Unlock()
			return nil, errorx.Wrap(err, errorx.CodeDisconnected, "rabbitmq 绑定队列失败")
		}
		b.bound[eventName] = true
	}
	b.bindMu.Unlock()
	return b.subscribe(eventName, h), nil
}

// OnStateChange 注册连接状态变化回调
func (b *AmqpBridge) OnStateChange(h func(bool)) Subscription {
	return b.onStateChange(h)
}

// Connected 返回通道当前是否连通
func (b *AmqpBridge) Connected() bool {
	return b.connected.Load()
}

// Close 关闭连接并停止消费协程，幂等
func (b *AmqpBridge) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.connected.Store(false)
		close(b.done)
		err = b.conn.Close()
	})
	return err
}
