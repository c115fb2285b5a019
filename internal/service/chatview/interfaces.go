package chatview

import (
	"context"

	"kama_support_chat/internal/api"
	"kama_support_chat/internal/dto/respond"
	"kama_support_chat/internal/model"
)

// SupportAPI 支持会话的 REST 外部协作方
// 生产实现为 api.Client，测试中用桩实现替换
type SupportAPI interface {
	// GetSupportConversation 拉取会话摘要（对端身份、浏览数、回复数）
	GetSupportConversation(ctx context.Context) (*respond.ConversationSummaryRespond, error)
	// GetSupportMessages 拉取历史消息
	GetSupportMessages(ctx context.Context, limit int) ([]model.Message, error)
	// SendSupportMessage 发送消息，files 非空时走上传路径
	SendSupportMessage(ctx context.Context, text string, receiverId int64, files []api.UploadFile) (*model.Message, error)
	// MarkAsRead 上报对端消息已读
	MarkAsRead(ctx context.Context, partnerId int64) error
}
