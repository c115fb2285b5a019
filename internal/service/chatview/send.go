// send.go
// 核心职责：把草稿转换为持久化消息的发送管线
// 文本与附件走互斥的两条路径；忙标志防止同一草稿的并发发送，
// 且在包括失败在内的所有路径上清除
package chatview

import (
	"context"

	"kama_support_chat/internal/api"
	"kama_support_chat/pkg/errorx"

	"go.uber.org/zap"
)

// attachmentCaption 附件无文字说明时的占位文案
const attachmentCaption = "Sent an attachment"

// Send 发送当前草稿
// 前置条件：草稿非空、通道连通、对端已解析，任一不满足返回相应错误且无状态变更
// 成功路径整体清空草稿一次；失败路径保留草稿（附件部分失败时剔除已发送项，
// 重试只补发失败的剩余部分）
func (s *Session) Send(ctx context.Context) error {
	if s.closed.Load() {
		return errorx.ErrSendBusy
	}
	if s.composer.Empty() {
		return errorx.ErrEmptyDraft
	}
	if !s.opts.Bridge.Connected() {
		return errorx.ErrDisconnected
	}
	partner := s.Partner()
	if partner == nil {
		return errorx.ErrNoPartner
	}

	// 忙标志：同一草稿不允许重叠发送
	s.mu.Lock()
	if s.sending {
		s.mu.Unlock()
		return errorx.ErrSendBusy
	}
	s.sending = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.sending = false
		s.mu.Unlock()
	}()

	text := s.composer.Text()
	attachments := s.composer.Attachments()

	if len(attachments) > 0 {
		return s.sendAttachments(ctx, text, partner.Id, attachments)
	}
	return s.sendText(ctx, text, partner.Id)
}

// sendText 纯文本路径：单次请求，成功后追加服务端确认的消息并清空草稿
func (s *Session) sendText(ctx context.Context, text string, receiverId int64) error {
	msg, err := s.opts.Api.SendSupportMessage(ctx, text, receiverId, nil)
	if err != nil {
		zap.L().Error("send message failed", zap.Error(err))
		return errorx.Wrap(err, errorx.CodeSendFailed, "消息发送失败")
	}
	if s.closed.Load() {
		return nil
	}
	s.appendMessage(*msg)
	s.composer.Clear()
	return nil
}

// sendAttachments 附件路径：逐个顺序上传，共享同一条文字说明
// 中途失败不回滚已发送的附件，只把它们从草稿中剔除（补偿记录），
// 草稿文本保留，重试仅补发失败的剩余附件
func (s *Session) sendAttachments(ctx context.Context, text string, receiverId int64, attachments []PendingAttachment) error {
	caption := text
	if caption == "" {
		caption = attachmentCaption
	}

	var succeeded []string
	for _, att := range attachments {
		files := []api.UploadFile{{
			Name:        att.Name,
			ContentType: att.ContentType,
			Data:        att.Data,
		}}
		msg, err := s.opts.Api.SendSupportMessage(ctx, caption, receiverId, files)
		if err != nil {
			zap.L().Error("upload attachment failed",
				zap.String("name", att.Name),
				zap.Int("sent", len(succeeded)),
				zap.Error(err))
			if !s.closed.Load() {
				s.composer.RemoveAttachments(succeeded)
			}
			return errorx.Wrapf(err, errorx.CodeUploadFailed, "附件 %s 上传失败", att.Name)
		}
		succeeded = append(succeeded, att.Id)
		if !s.closed.Load() {
			s.appendMessage(*msg)
		}
	}

	if !s.closed.Load() {
		s.composer.Clear()
	}
	return nil
}
