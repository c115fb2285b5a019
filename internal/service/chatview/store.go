// Package chatview 实现支持会话视图的核心状态同步逻辑
// store.go
// 核心职责：当前会话的内存消息列表
// 1. 仅追加，展示顺序 == 插入顺序，远端事件与本地乐观发送按到达顺序交错
// 2. 追加后除已读标记外字段不可变
package chatview

import (
	"sync"

	"kama_support_chat/internal/model"
)

// MessageStore 会话消息列表
type MessageStore struct {
	mu       sync.RWMutex
	messages []model.Message
}

// NewMessageStore 创建空消息列表
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Reset 用历史消息整体替换列表，仅在会话加载时调用
func (s *MessageStore) Reset(messages []model.Message) {
	s.mu.Lock()
	s.messages = make([]model.Message, len(messages))
	copy(s.messages, messages)
	s.mu.Unlock()
}

// Append 追加一条消息到列表末尾
// 不按时间戳重排，插入顺序即展示顺序
func (s *MessageStore) Append(msg model.Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// MarkRead 将指定 Id 的消息置为已读
// 幂等：重复调用与未知 Id 均为静默无操作，返回是否有消息被翻转
func (s *MessageStore) MarkRead(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.messages {
		if s.messages[i].Id == id {
			changed := !s.messages[i].IsRead
			s.messages[i].IsRead = true
			return changed
		}
	}
	return false
}

// MarkReadBulk 批量置已读（已读回执事件），返回翻转条数
func (s *MessageStore) MarkReadBulk(ids []int64) int {
	idSet := make(map[int64]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for i := range s.messages {
		if idSet[s.messages[i].Id] && !s.messages[i].IsRead {
			s.messages[i].IsRead = true
			changed++
		}
	}
	return changed
}

// UnreadFrom 返回指定角色发出的未读消息 Id 列表
func (s *MessageStore) UnreadFrom(role model.SenderRole) []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []int64
	for i := range s.messages {
		if s.messages[i].SenderRole == role && !s.messages[i].IsRead {
			ids = append(ids, s.messages[i].Id)
		}
	}
	return ids
}

// Messages 返回消息列表快照
func (s *MessageStore) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len 返回消息条数
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}
