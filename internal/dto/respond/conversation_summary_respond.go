package respond

import "kama_support_chat/internal/model"

// ConversationSummaryRespond 支持会话摘要
// 携带对端客服身份与会话统计
type ConversationSummaryRespond struct {
	User       model.Partner `json:"user"`
	ViewCount  int           `json:"viewCount"`
	ReplyCount int           `json:"replyCount"`
}
