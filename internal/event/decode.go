package event

import (
	"encoding/json"

	"kama_support_chat/pkg/errorx"

	"github.com/go-playground/validator/v10"
)

// validate 包级校验器单例，按 json tag 报告字段名
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	return v
}

// Decode 解码并校验事件载荷
// 解析失败或校验失败均返回 CodeBadPayload，调用方按"记录日志后忽略"处理，
// 非法载荷不得进入会话状态
func Decode[T any](raw []byte) (*T, error) {
	var payload T
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, errorx.Wrap(err, errorx.CodeBadPayload, "事件载荷解析失败")
		}
	}
	if err := validate.Struct(&payload); err != nil {
		return nil, errorx.Wrap(err, errorx.CodeBadPayload, "事件载荷校验失败")
	}
	return &payload, nil
}

// Marshal 将出站载荷包成事件信封并序列化
func Marshal(name string, payload any) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, errorx.Wrap(err, errorx.CodeInvalidParam, "事件载荷序列化失败")
		}
		data = raw
	}
	return json.Marshal(Envelope{Event: name, Data: data})
}
