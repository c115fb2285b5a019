// Package model 定义客户端会话的数据实体
// 本文件定义消息模型，消息仅存在于当前会话的内存列表中
package model

import "time"

// SenderRole 消息发送方角色
type SenderRole string

const (
	RoleUser  SenderRole = "user"  // 本地用户
	RoleAgent SenderRole = "admin" // 远端客服
	RoleBot   SenderRole = "bot"   // 系统机器人（通话记录等系统消息）
)

// MessageKind 消息类型
type MessageKind string

const (
	KindText    MessageKind = "text"     // 文本消息
	KindFile    MessageKind = "file"     // 文件/附件消息
	KindForm    MessageKind = "form"     // 表单消息
	KindCallLog MessageKind = "call_log" // 通话记录消息
)

// AttachmentKind 附件展示类型
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image" // 图片，内联展示
	AttachmentFile  AttachmentKind = "file"  // 普通文件，链接展示
)

// FormField 表单字段定义，顺序即展示顺序
type FormField struct {
	Label    string   `json:"label"`
	Type     string   `json:"type"` // text / number / date / select / textarea
	Options  []string `json:"options,omitempty"`
	Required bool     `json:"required,omitempty"`
}

// FormData 表单消息载荷
type FormData struct {
	Title       string            `json:"title"`
	Fields      []FormField       `json:"fields"`
	Submitted   bool              `json:"submitted"`
	Responses   map[string]string `json:"responses,omitempty"`
	SubmittedAt string            `json:"submitted_at,omitempty"`
}

// Message 会话消息
// 服务端确认的消息携带服务端分配的 Id 与时间戳；
// 本地产生的系统消息（如通话记录）使用本地时间戳
// 追加进消息列表后除已读标记外不再变更
type Message struct {
	// Id 消息唯一标识，按创建顺序大致递增
	Id int64 `json:"id"`

	// Content 消息文本内容，纯附件消息可为空
	Content string `json:"content"`

	SenderId   int64 `json:"sender_id"`
	ReceiverId int64 `json:"receiver_id"`

	// SenderRole 发送方角色标签
	SenderRole SenderRole `json:"sender_type"`

	// Kind 消息类型标签
	Kind MessageKind `json:"message_type"`

	// CreatedAt 消息创建时间
	CreatedAt time.Time `json:"created_at"`

	// IsRead 已读标记，消息追加后唯一可变的字段
	IsRead bool `json:"is_read"`

	// 附件引用，仅文件消息携带
	AttachmentURL  string         `json:"attachment_url,omitempty"`
	AttachmentName string         `json:"attachment_name,omitempty"`
	AttachmentKind AttachmentKind `json:"attachment_kind,omitempty"`

	// 通话元数据，仅通话记录消息携带
	CallDuration int      `json:"call_duration,omitempty"` // 通话时长（秒）
	CallKind     CallKind `json:"call_kind,omitempty"`

	// FormData 表单载荷，仅表单消息携带
	FormData *FormData `json:"form_data,omitempty"`
}
