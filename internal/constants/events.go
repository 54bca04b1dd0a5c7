package constants

// 事件类型常量
const (
	// 用户事件
	EventUserCreated  = "user.created"
	EventUserUpdated  = "user.updated"
	EventUserDeleted  = "user.deleted"
	EventUserPromoted = "user.promoted"

	// 令牌事件
	EventTokenIssued  = "token.issued"
	EventTokenRevoked = "token.revoked"
)

// ActivityEvents are forwarded to the admin websocket feed.
var ActivityEvents = []string{
	EventUserCreated,
	EventUserUpdated,
	EventUserDeleted,
	EventUserPromoted,
}
