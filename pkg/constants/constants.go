package constants

import "time"

const (
	CHANNEL_SIZE        = 100              // 通道缓冲大小
	HISTORY_LIMIT       = 50               // 历史消息默认拉取条数
	TYPING_EXPIRY       = 3 * time.Second  // 打字指示自动过期时间
	CALL_CONNECT_DELAY  = 2 * time.Second  // 模拟呼叫接通延迟
	CALL_TICK           = time.Second      // 通话计时步长
	AWAY_IDLE_TIMEOUT   = 5 * time.Minute  // 客服无活动后降级为"离开"的时长
	ATTACHMENT_MAX_SIZE = 50 << 20         // 附件最大大小（字节）
	REQUEST_TIMEOUT     = 15 * time.Second // REST 请求默认超时
)
