// Package bridge 抽象聊天视图与远端之间的实时事件通道
// 支持多种实现：WsBridge (WebSocket), AmqpBridge (RabbitMQ), MemoryBridge (进程内)
package bridge

import "context"

// Handler 事件处理函数，入参为事件载荷原始字节
// 载荷在上层边界处解码校验，通道本身不理解载荷结构
type Handler func(data []byte)

// Subscription 订阅句柄
// 注册事件处理器时显式返回，视图销毁时逐个 Cancel，
// 保证不会有悬挂的处理器在视图销毁后继续改写状态
type Subscription interface {
	// Cancel 取消订阅，幂等
	Cancel()
}

// Bridge 定义实时事件通道接口
type Bridge interface {
	// Publish 发布出站事件
	Publish(ctx context.Context, eventName string, payload any) error
	// Subscribe 注册入站事件处理器，返回显式订阅句柄
	Subscribe(eventName string, h Handler) (Subscription, error)
	// OnStateChange 注册连接状态变化回调
	OnStateChange(h func(connected bool)) Subscription
	// Connected 返回通道当前是否连通
	Connected() bool
	// Close 关闭通道并释放资源
	Close() error
}
