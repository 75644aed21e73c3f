package model

import "encoding/json"

// VoiceServerUpdate 平台推送的语音服务器通知（端点 + 会话令牌）
type VoiceServerUpdate struct {
	GuildID  string `json:"guild_id"`
	Token    string `json:"token"`
	Endpoint string `json:"endpoint"`
}

// VoiceStateUpdate 平台推送的语音状态通知。
// ChannelID 为空表示已离开语音频道。
type VoiceStateUpdate struct {
	GuildID   string `json:"guild_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	ChannelID string `json:"channel_id"`
}

// VoiceUpdatePayload voiceUpdate 指令：两段握手合并后的载荷
type VoiceUpdatePayload struct {
	Op        string            `json:"op"`
	GuildID   string            `json:"guildId"`
	SessionID string            `json:"sessionId"`
	Event     VoiceServerUpdate `json:"event"`
}

// VoiceIntent 发往平台网关的语音在场请求（op 4）。
// ChannelID 为 nil 时表示释放语音在场。
type VoiceIntent struct {
	Op   int            `json:"op"`
	Data VoiceIntentBody `json:"d"`
}

// VoiceIntentBody op 4 的载荷
type VoiceIntentBody struct {
	GuildID   string  `json:"guild_id"`
	ChannelID *string `json:"channel_id"`
	SelfMute  bool    `json:"self_mute"`
	SelfDeaf  bool    `json:"self_deaf"`
}

// GatewayPacket 平台网关原始包，t 为事件名，d 为载荷
type GatewayPacket struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d"`
}
