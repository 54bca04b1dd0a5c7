package constants

// Redis 键前缀
const (
	// RedisKeyRevokedToken 已吊销的刷新令牌 (jti)
	RedisKeyRevokedToken = "auth:revoked:"
)

// Redis 发布/订阅频道
const (
	// RedisChannelActivity 跨实例的管理员活动推送
	RedisChannelActivity = "activity.users"
)
