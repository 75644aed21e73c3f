package manager

import (
	"encoding/json"
	"time"

	"springlink/model"

	"github.com/google/uuid"
)

// EventType 管理器事件总线上的通知类别，节点级与会话级合并在
// 同一个封闭枚举里。
type EventType string

const (
	EventNodeConnected EventType = "NodeConnected"
	EventNodeClosed    EventType = "NodeClosed"
	EventNodeError     EventType = "NodeError"
	EventNodeReconnect EventType = "NodeReconnect"

	EventTrackStart    EventType = "TrackStart"
	EventTrackEnd      EventType = "TrackEnd"
	EventTrackStuck    EventType = "TrackStuck"
	EventTrackError    EventType = "TrackError"
	EventQueueEnd      EventType = "QueueEnd"
	EventSocketClosed  EventType = "SocketClosed"
	EventPlayerDestroy EventType = "PlayerDestroy"

	// EventRaw 连接级观测通道：节点的每条入站消息
	EventRaw EventType = "Raw"
)

// Event 一条总线通知。仅用于日志与观测，不参与控制流。
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Node      string          `json:"node,omitempty"`
	GuildID   string          `json:"guildId,omitempty"`
	Track     *model.Track    `json:"track,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Code      int             `json:"code,omitempty"`
	Error     string          `json:"error,omitempty"`
	Raw       json.RawMessage `json:"raw,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func newEvent(t EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Timestamp: time.Now().UnixMilli(),
	}
}

// publish 非阻塞投递，订阅方消费不及时直接丢弃
func (m *Manager) publish(ev Event) {
	select {
	case m.events <- ev:
	default:
	}
}
