// Package snowflake 为本地产生的系统消息（通话记录等）生成唯一递增 Id
// 服务端确认的消息使用服务端分配的 Id，两者不混用
package snowflake

import (
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
)

// Init 初始化雪花节点
// 客户端无分布式部署需求，节点 Id 取当前毫秒低 10 位以降低多实例碰撞概率
func Init() {
	nodeOnce.Do(func() {
		machineID := time.Now().UnixMilli() & 0x3FF
		var err error
		node, err = snowflake.NewNode(machineID)
		if err != nil {
			zap.L().Error("snowflake node init failed, falling back to node 1", zap.Error(err))
			node, _ = snowflake.NewNode(1)
		}
	})
}

// GenerateID 生成本地消息 Id (int64)
func GenerateID() int64 {
	if node == nil {
		Init()
	}
	return node.Generate().Int64()
}
