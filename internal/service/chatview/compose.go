// compose.go
// 核心职责：待发送草稿（文本 + 待发附件）
// 图片附件生成本地预览文件，移除附件时释放对应预览资源
package chatview

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"kama_support_chat/pkg/errorx"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PendingAttachment 待发送附件
type PendingAttachment struct {
	Id          string // 本地唯一标识，仅会话内有效
	Name        string
	ContentType string
	Data        []byte
	Preview     string // 本地预览文件路径，仅图片附件
}

// AttachmentInput 添加附件的入参
// ContentType 为空时按内容嗅探
type AttachmentInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// Composer 草稿缓冲
type Composer struct {
	mu          sync.Mutex
	text        string
	attachments []PendingAttachment
	previewDir  string
}

// NewComposer 创建草稿缓冲，预览文件写入系统临时目录
func NewComposer() *Composer {
	return &Composer{previewDir: os.TempDir()}
}

// SetText 更新草稿文本
func (c *Composer) SetText(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

// Text 返回当前草稿文本
func (c *Composer) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// AddAttachments 添加待发附件
// 每个附件分配 uuid 本地标识；图片类型写出预览文件
// 返回添加后的快照
func (c *Composer) AddAttachments(files []AttachmentInput) ([]PendingAttachment, error) {
	added := make([]PendingAttachment, 0, len(files))
	for _, f := range files {
		if len(f.Data) == 0 {
			return nil, errorx.Newf(errorx.CodeInvalidParam, "附件 %s 内容为空", f.Name)
		}
		contentType := f.ContentType
		if contentType == "" {
			contentType = mimetype.Detect(f.Data).String()
		}

		att := PendingAttachment{
			Id:          uuid.NewString(),
			Name:        f.Name,
			ContentType: contentType,
			Data:        f.Data,
		}
		if strings.HasPrefix(contentType, "image/") {
			att.Preview = c.writePreview(att.Id, f.Name, f.Data)
		}
		added = append(added, att)
	}

	c.mu.Lock()
	c.attachments = append(c.attachments, added...)
	snapshot := c.attachmentsLocked()
	c.mu.Unlock()
	return snapshot, nil
}

// writePreview 写出图片的本地预览文件，失败时降级为无预览
func (c *Composer) writePreview(id, name string, data []byte) string {
	path := filepath.Join(c.previewDir, "preview-"+id+filepath.Ext(name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		zap.L().Warn("write attachment preview failed", zap.String("name", name), zap.Error(err))
		return ""
	}
	return path
}

// RemoveAttachment 按本地标识移除附件，释放其预览文件
// 其他附件的预览不受影响；未知标识返回 false
func (c *Composer) RemoveAttachment(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.attachments {
		if c.attachments[i].Id == id {
			releasePreview(c.attachments[i].Preview)
			c.attachments = append(c.attachments[:i], c.attachments[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAttachments 批量移除（发送管线的补偿路径：剔除已成功发送的附件）
func (c *Composer) RemoveAttachments(ids []string) {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.attachments[:0]
	for i := range c.attachments {
		if idSet[c.attachments[i].Id] {
			releasePreview(c.attachments[i].Preview)
			continue
		}
		kept = append(kept, c.attachments[i])
	}
	c.attachments = kept
}

// Attachments 返回待发附件快照
func (c *Composer) Attachments() []PendingAttachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attachmentsLocked()
}

func (c *Composer) attachmentsLocked() []PendingAttachment {
	out := make([]PendingAttachment, len(c.attachments))
	copy(out, c.attachments)
	return out
}

// Empty 草稿是否完全为空（无文本且无附件）
func (c *Composer) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return strings.TrimSpace(c.text) == "" && len(c.attachments) == 0
}

// Clear 清空草稿并释放所有预览资源
// 发送成功后整体调用一次，而不是按附件逐个清理
func (c *Composer) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.attachments {
		releasePreview(c.attachments[i].Preview)
	}
	c.attachments = nil
	c.text = ""
}

func releasePreview(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		zap.L().Warn("remove attachment preview failed", zap.String("path", path), zap.Error(err))
	}
}
