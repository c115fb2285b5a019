package model

// Partner 会话对端（客服）
// 会话加载时创建一次，在线标记随 presence 事件变化，生命周期与会话一致
type Partner struct {
	Id        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Avatar    string `json:"avatar,omitempty"`
	IsOnline  bool   `json:"is_online"`
}

// DisplayName 拼接展示名，两部分均为空时回退到默认名
func (p *Partner) DisplayName() string {
	if p == nil || (p.FirstName == "" && p.LastName == "") {
		return "Support Team"
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}
