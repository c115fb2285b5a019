// Package api 实现支持会话的 REST 客户端
// 覆盖四个接口：会话摘要、历史消息、发送消息（文本/附件上传）、已读上报
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"kama_support_chat/internal/config"
	"kama_support_chat/internal/dto/respond"
	"kama_support_chat/internal/model"
	"kama_support_chat/pkg/constants"
	"kama_support_chat/pkg/errorx"

	"go.uber.org/zap"
)

// UploadFile 待上传的附件内容
type UploadFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// Client REST 客户端
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      *TokenSource
	localUserId int64
}

// NewClient 创建 REST 客户端
func NewClient(cfg *config.ApiConfig, localUserId int64) *Client {
	timeout := constants.REQUEST_TIMEOUT
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		baseURL:     cfg.BaseURL,
		httpClient:  &http.Client{Timeout: timeout},
		tokens:      NewTokenSource(cfg.Token),
		localUserId: localUserId,
	}
}

// Tokens 暴露令牌源，供嵌入端配置刷新回调
func (c *Client) Tokens() *TokenSource {
	return c.tokens
}

// GetSupportConversation 拉取支持会话摘要（对端身份、浏览数、回复数）
func (c *Client) GetSupportConversation(ctx context.Context) (*respond.ConversationSummaryRespond, error) {
	var out respond.ConversationSummaryRespond
	if err := c.doJSON(ctx, http.MethodGet, "/support/conversation", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSupportMessages 拉取历史消息，limit <= 0 时取默认条数
func (c *Client) GetSupportMessages(ctx context.Context, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = constants.HISTORY_LIMIT
	}
	var out respond.MessageListRespond
	path := "/support/messages?limit=" + strconv.Itoa(limit)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	messages := make([]model.Message, 0, len(out.Messages))
	for i := range out.Messages {
		messages = append(messages, out.Messages[i].ToModel(c.localUserId))
	}
	return messages, nil
}

// SendSupportMessage 发送一条消息
// files 为空时走纯文本 JSON 请求，否则走 multipart 上传
// 返回服务端确认后的消息（服务端分配的 Id 与时间戳）
func (c *Client) SendSupportMessage(ctx context.Context, text string, receiverId int64, files []UploadFile) (*model.Message, error) {
	var out respond.SendMessageRespond
	var err error
	if len(files) == 0 {
		body := map[string]any{"content": text, "receiverId": receiverId}
		err = c.doJSON(ctx, http.MethodPost, "/support/messages", body, &out)
	} else {
		err = c.doMultipart(ctx, "/support/messages", text, receiverId, files, &out)
	}
	if err != nil {
		return nil, err
	}
	msg := out.Message.ToModel(c.localUserId)
	return &msg, nil
}

// MarkAsRead 上报对端消息已读
func (c *Client) MarkAsRead(ctx context.Context, partnerId int64) error {
	body := map[string]any{"partnerId": partnerId}
	return c.doJSON(ctx, http.MethodPost, "/support/messages/read", body, nil)
}

// doJSON 发送 JSON 请求并解包统一响应信封
func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errorx.Wrap(err, errorx.CodeInvalidParam, "请求体序列化失败")
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidParam, "构造请求失败")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

// doMultipart 发送附件上传请求
// 字段布局与服务端约定一致：file + message + receiverId
func (c *Client) doMultipart(ctx context.Context, path, text string, receiverId int64, files []UploadFile, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for _, f := range files {
		if len(f.Data) > constants.ATTACHMENT_MAX_SIZE {
			return errorx.Newf(errorx.CodeUploadFailed, "附件 %s 超出大小限制", f.Name)
		}
		part, err := writer.CreateFormFile("file", f.Name)
		if err != nil {
			return errorx.Wrap(err, errorx.CodeUploadFailed, "构造上传表单失败")
		}
		if _, err := part.Write(f.Data); err != nil {
			return errorx.Wrap(err, errorx.CodeUploadFailed, "写入上传内容失败")
		}
	}
	if err := writer.WriteField("message", text); err != nil {
		return errorx.Wrap(err, errorx.CodeUploadFailed, "写入上传表单字段失败")
	}
	if err := writer.WriteField("receiverId", strconv.FormatInt(receiverId, 10)); err != nil {
		return errorx.Wrap(err, errorx.CodeUploadFailed, "写入上传表单字段失败")
	}
	if err := writer.Close(); err != nil {
		return errorx.Wrap(err, errorx.CodeUploadFailed, "关闭上传表单失败")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeInvalidParam, "构造请求失败")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.send(req, out)
}

// send 附加认证头，执行请求并解包 {code, msg, data}
func (c *Client) send(req *http.Request, out any) error {
	token, err := c.tokens.Token(req.Context())
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errorx.Wrap(err, errorx.CodeServerBusy, "请求发送失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorx.Newf(errorx.CodeServerBusy, "服务端返回状态码 %d", resp.StatusCode)
	}

	var envelope respond.ApiRespond
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return errorx.Wrap(err, errorx.CodeServerBusy, "响应解析失败")
	}
	if envelope.Code != errorx.CodeSuccess {
		zap.L().Warn("api request rejected",
			zap.String("path", req.URL.Path),
			zap.Int("code", envelope.Code),
			zap.String("msg", envelope.Msg))
		return errorx.New(envelope.Code, envelope.Msg)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return errorx.Wrap(err, errorx.CodeServerBusy, fmt.Sprintf("响应数据解析失败: %s", req.URL.Path))
		}
	}
	return nil
}
