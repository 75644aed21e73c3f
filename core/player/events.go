package player

import (
	"encoding/json"

	"springlink/model"
)

// EventType 播放会话对外通知的类别
type EventType string

const (
	EventTrackStart    EventType = "TrackStart"
	EventTrackEnd      EventType = "TrackEnd"
	EventTrackStuck    EventType = "TrackStuck"
	EventTrackError    EventType = "TrackError"
	EventQueueEnd      EventType = "QueueEnd"
	EventSocketClosed  EventType = "SocketClosed"
	EventPlayerDestroy EventType = "PlayerDestroy"
)

// Event 一次播放会话通知
type Event struct {
	Type    EventType
	GuildID string
	Track   *model.Track
	Reason  string
	Raw     json.RawMessage // 诊断通知携带的原始节点载荷
}

// Sink 播放会话持有的通知出口与平台回调，由 Session Manager 实现
type Sink interface {
	// Publish 发布一条会话通知
	Publish(ev Event)
	// SendVoiceIntent 向平台网关发送语音在场请求，channelID 为 nil 表示释放
	SendVoiceIntent(guildID string, channelID *string)
	// Detach 将会话从管理表中移除（销毁的最后一步）
	Detach(guildID string)
}
