package errorx

import (
	"errors"
	"fmt"
)

// CodeError 带业务错误码的自定义错误
// 实现了 error 接口，支持 %w 包装底层错误，且能被 errors.Is/errors.As 识别
type CodeError struct {
	Code  int    // 业务错误码
	Msg   string // 错误消息
	cause error  // 被包装的底层错误
}

// Error 实现 Go 标准 error 接口
// 当存在底层错误时，返回格式为 "消息: 底层错误"；否则仅返回消息
func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

// Unwrap 实现 errors.Unwrap 接口，支持 errors.Is/errors.As 向下追溯
func (e *CodeError) Unwrap() error {
	return e.cause
}

// Is 按错误码比较，使预定义实例可用于 errors.Is
func (e *CodeError) Is(target error) bool {
	var codeErr *CodeError
	if errors.As(target, &codeErr) {
		return e.Code == codeErr.Code
	}
	return false
}

// New 创建一个新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

// Newf 创建一个带格式化消息的 CodeError
func Newf(code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Wrap 包装底层错误，添加业务错误码和消息
// 用法: errorx.Wrap(err, CodeSendFailed, "消息发送失败")
func Wrap(err error, code int, msg string) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   msg,
		cause: err,
	}
}

// Wrapf 包装底层错误，支持格式化消息
func Wrapf(err error, code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   fmt.Sprintf(format, args...),
		cause: err,
	}
}

// GetCode 从错误中提取业务错误码，如果不是 CodeError 则返回默认码
func GetCode(err error) int {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}
	return CodeServerBusy
}

// 业务状态码常量定义
// 客户端侧错误分类：连接 / 发送前置条件 / 请求失败 / 事件边界 / 通话状态
const (
	CodeSuccess      = 1000 // 成功
	CodeInvalidParam = 1001 // 参数错误
	CodeDisconnected = 1002 // 通道未连接
	CodeNoPartner    = 1003 // 会话对端未解析
	CodeEmptyDraft   = 1004 // 草稿为空
	CodeSendBusy     = 1005 // 正在发送中
	CodeSendFailed   = 1006 // 消息发送失败
	CodeUploadFailed = 1007 // 附件上传失败
	CodeBadPayload   = 1008 // 事件载荷非法
	CodeCallState    = 1009 // 通话状态不允许该操作
	CodeServerBusy   = 1010 // 服务繁忙
	CodeUnauthorized = 1011 // 未授权/凭证过期
)

// 预定义常用错误实例
// 这些实例既可直接返回，也可用于 errors.Is 比较
var (
	ErrInvalidParam = New(CodeInvalidParam, "参数错误")
	ErrDisconnected = New(CodeDisconnected, "通道未连接")
	ErrNoPartner    = New(CodeNoPartner, "会话对端未解析")
	ErrEmptyDraft   = New(CodeEmptyDraft, "草稿为空")
	ErrSendBusy     = New(CodeSendBusy, "上一次发送尚未完成")
	ErrCallState    = New(CodeCallState, "通话状态不允许该操作")
	ErrServerBusy   = New(CodeServerBusy, "服务繁忙")
)
