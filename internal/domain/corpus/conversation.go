package corpus

import "time"

// 对话角色常量
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn 单条对话记录
type ConversationTurn struct {
	Role      string    // user 或 assistant
	Text      string    // 消息文本
	Timestamp time.Time // 记录时间
}

// ConversationContext 会话上下文，有界的最近对话窗口
// 仅在进程生命周期内有效，持久化由调用方通过 ContextStore 注入
type ConversationContext struct {
	SessionID string
	Turns     []ConversationTurn // 有序，最旧的在前
}

// LastUserTurns 获取最近 n 条用户消息，最新的在后
func (c *ConversationContext) LastUserTurns(n int) []ConversationTurn {
	var turns []ConversationTurn
	for i := len(c.Turns) - 1; i >= 0 && len(turns) < n; i-- {
		if c.Turns[i].Role == RoleUser {
			turns = append([]ConversationTurn{c.Turns[i]}, turns...)
		}
	}
	return turns
}
