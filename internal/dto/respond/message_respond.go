package respond

import "kama_support_chat/internal/event"

// MessageListRespond 历史消息列表响应
// 消息为线上契约形态，转换为领域模型时再推导发送方角色
type MessageListRespond struct {
	Messages []event.NewMessagePayload `json:"messages"`
}

// SendMessageRespond 发送消息响应，携带服务端确认后的消息
type SendMessageRespond struct {
	Message event.NewMessagePayload `json:"message"`
}
