package api

import (
	"context"
	"sync"
	"time"

	"kama_support_chat/pkg/errorx"

	"github.com/golang-jwt/jwt/v5"
)

// tokenLeeway 令牌过期判断的提前量，临近过期即触发刷新
const tokenLeeway = 30 * time.Second

// TokenSource 持有 Bearer 访问令牌，请求前做过期预检
// 客户端拿不到签名密钥，只做免校验解析读取 exp 声明；
// 解析失败的不透明令牌原样使用
type TokenSource struct {
	mu      sync.Mutex
	token   string
	refresh func(ctx context.Context) (string, error)
}

// NewTokenSource 创建令牌源
func NewTokenSource(token string) *TokenSource {
	return &TokenSource{token: token}
}

// SetRefreshFunc 设置令牌刷新回调，令牌过期时调用
func (t *TokenSource) SetRefreshFunc(refresh func(ctx context.Context) (string, error)) {
	t.mu.Lock()
	t.refresh = refresh
	t.mu.Unlock()
}

// SetToken 替换当前令牌
func (t *TokenSource) SetToken(token string) {
	t.mu.Lock()
	t.token = token
	t.mu.Unlock()
}

// Token 返回可用的访问令牌
// 临近过期且配置了刷新回调时先刷新；已过期且无法刷新返回 CodeUnauthorized
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token == "" {
		return "", errorx.New(errorx.CodeUnauthorized, "访问令牌为空")
	}
	if !expiringSoon(t.token) {
		return t.token, nil
	}
	if t.refresh == nil {
		if expired(t.token) {
			return "", errorx.New(errorx.CodeUnauthorized, "访问令牌已过期")
		}
		return t.token, nil
	}

	fresh, err := t.refresh(ctx)
	if err != nil {
		return "", errorx.Wrap(err, errorx.CodeUnauthorized, "刷新访问令牌失败")
	}
	t.token = fresh
	return t.token, nil
}

// expiringSoon 免校验解析 exp 声明，判断令牌是否临近过期
func expiringSoon(token string) bool {
	exp, ok := expiresAt(token)
	if !ok {
		return false
	}
	return time.Until(exp) < tokenLeeway
}

func expired(token string) bool {
	exp, ok := expiresAt(token)
	if !ok {
		return false
	}
	return time.Now().After(exp)
}

func expiresAt(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
