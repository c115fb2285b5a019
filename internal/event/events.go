// Package event 定义实时通道的事件契约
// 每种事件一个带校验标签的载荷结构体，在边界处解码并校验，
// 避免把未校验的动态载荷直接写进会话状态
package event

import (
	"encoding/json"
	"time"

	"kama_support_chat/internal/model"
)

// 入站事件名
const (
	NewMessage   = "support_new_message" // 新消息
	Typing       = "typing"              // 对端开始输入
	StopTyping   = "stop_typing"         // 对端停止输入
	AgentOnline  = "admin_online"        // 客服上线
	AgentOffline = "admin_offline"       // 客服下线
	CallIncoming = "call_incoming"       // 来电
	CallEnded    = "call_ended"          // 通话结束（携带权威时长）
	MessagesRead = "messages_read"       // 消息已读回执
	UserOnline   = "user_online"         // 泛化的用户上线广播
	UserOffline  = "user_offline"        // 泛化的用户下线广播
)

// 出站事件名
const (
	JoinSupport     = "join_support"  // 加入支持会话
	InitiateCallOut = "initiate_call" // 发起通话
	EndCallOut      = "end_call"      // 结束通话
)

// Envelope 通道上传输的事件信封
type Envelope struct {
	Event string          `json:"event" validate:"required"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewMessagePayload 新消息事件载荷
// 与领域模型分离的线上契约，转换时根据本地用户 Id 推导发送方角色
type NewMessagePayload struct {
	Id             int64                `json:"id" validate:"required"`
	Content        string               `json:"content"`
	SenderId       int64                `json:"sender_id" validate:"required"`
	ReceiverId     int64                `json:"receiver_id"`
	Kind           model.MessageKind    `json:"message_type"`
	CreatedAt      time.Time            `json:"created_at"`
	IsRead         bool                 `json:"is_read"`
	AttachmentURL  string               `json:"attachment_url,omitempty"`
	AttachmentName string               `json:"attachment_name,omitempty"`
	AttachmentKind model.AttachmentKind `json:"attachment_kind,omitempty"`
	FormData       *model.FormData      `json:"form_data,omitempty"`
}

// ToModel 转换为领域消息
// 发送方角色按 sender_id 与本地用户对比推导，与服务端标签无关
func (p *NewMessagePayload) ToModel(localUserId int64) model.Message {
	role := model.RoleAgent
	if p.SenderId == localUserId {
		role = model.RoleUser
	}
	kind := p.Kind
	if kind == "" {
		kind = model.KindText
		if p.AttachmentURL != "" {
			kind = model.KindFile
		}
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return model.Message{
		Id:             p.Id,
		Content:        p.Content,
		SenderId:       p.SenderId,
		ReceiverId:     p.ReceiverId,
		SenderRole:     role,
		Kind:           kind,
		CreatedAt:      createdAt,
		IsRead:         p.IsRead,
		AttachmentURL:  p.AttachmentURL,
		AttachmentName: p.AttachmentName,
		AttachmentKind: p.AttachmentKind,
		FormData:       p.FormData,
	}
}

// TypingPayload 输入状态事件载荷
type TypingPayload struct {
	UserId     int64  `json:"userId"`
	SenderType string `json:"senderType" validate:"required"`
}

// CallIncomingPayload 来电事件载荷
type CallIncomingPayload struct {
	Kind   model.CallKind `json:"type" validate:"required,oneof=voice video"`
	FromId int64          `json:"fromId" validate:"required"`
}

// CallEndedPayload 通话结束事件载荷，duration 为服务端权威时长（秒）
type CallEndedPayload struct {
	CallId   string `json:"callId"`
	Duration int    `json:"duration" validate:"gte=0"`
}

// MessagesReadPayload 已读回执事件载荷
type MessagesReadPayload struct {
	MessageIds []int64 `json:"messageIds" validate:"required,min=1"`
}

// JoinSupportPayload 加入会话出站载荷
type JoinSupportPayload struct {
	UserId int64 `json:"userId" validate:"required"`
}

// InitiateCallPayload 发起通话出站载荷
type InitiateCallPayload struct {
	Kind   model.CallKind `json:"type" validate:"required,oneof=voice video"`
	ToId   int64          `json:"toId" validate:"required"`
	FromId int64          `json:"fromId" validate:"required"`
}

// EndCallPayload 结束通话出站载荷
type EndCallPayload struct {
	ToId   int64 `json:"toId" validate:"required"`
	FromId int64 `json:"fromId" validate:"required"`
}
