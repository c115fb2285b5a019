// Package respond 定义 REST 接口的响应结构
// 服务端统一返回 {code, msg, data}，code == 1000 表示成功
package respond

import "encoding/json"

// ApiRespond 服务端统一响应信封
type ApiRespond struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data,omitempty"`
}
