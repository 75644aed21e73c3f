package model

import "encoding/json"

// 控制连接上的出站指令 op
const (
	OpPlay              = "play"
	OpStop              = "stop"
	OpPause             = "pause"
	OpSeek              = "seek"
	OpVolume            = "volume"
	OpEqualizer         = "equalizer"
	OpFilters           = "filters"
	OpVoiceUpdate       = "voiceUpdate"
	OpDestroy           = "destroy"
	OpConfigureResuming = "configureResuming"
)

// 入站消息 op
const (
	OpStats        = "stats"
	OpEvent        = "event"
	OpPlayerUpdate = "playerUpdate"
)

// 节点事件类型（op 为 event 时的 type 字段）
const (
	EventTrackStart      = "TrackStartEvent"
	EventTrackEnd        = "TrackEndEvent"
	EventTrackStuck      = "TrackStuckEvent"
	EventTrackException  = "TrackExceptionEvent"
	EventWebSocketClosed = "WebSocketClosedEvent"
)

// TrackEndEvent 的 reason 取值
const (
	EndReasonFinished = "FINISHED"
	EndReasonReplaced = "REPLACED"
	EndReasonStopped  = "STOPPED"
	EndReasonCleanup  = "CLEANUP"
)

// InboundMessage 节点推送的消息信封。所有入站消息都带 op 标签；
// 携带 guildId 的消息会按租户转发给对应的播放会话。
type InboundMessage struct {
	Op      string          `json:"op"`
	GuildID string          `json:"guildId,omitempty"`
	Type    string          `json:"type,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Code    int             `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
	State   *PlayerState    `json:"state,omitempty"`
	Raw     json.RawMessage `json:"-"`
}

// PlayerState playerUpdate 消息携带的播放进度
type PlayerState struct {
	Time     int64 `json:"time"`
	Position int64 `json:"position"`
}

// PlayPayload 开始播放
type PlayPayload struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
	Track   string `json:"track"`
	Volume  int    `json:"volume"`
}

// StopPayload 停止当前曲目
type StopPayload struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
}

// PausePayload 暂停/恢复
type PausePayload struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
	Pause   bool   `json:"pause"`
}

// SeekPayload 跳转到指定位置（毫秒）
type SeekPayload struct {
	Op       string `json:"op"`
	GuildID  string `json:"guildId"`
	Position int64  `json:"position"`
}

// VolumePayload 音量调节
type VolumePayload struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
	Volume  int    `json:"volume"`
}

// EqualizerBand 单个均衡器频段
type EqualizerBand struct {
	Band int     `json:"band"`
	Gain float64 `json:"gain"`
}

// EqualizerPayload 均衡器整体下发
type EqualizerPayload struct {
	Op      string          `json:"op"`
	GuildID string          `json:"guildId"`
	Bands   []EqualizerBand `json:"bands"`
}

// FiltersPayload 音频滤镜下发。Filters 中的键为滤镜名，
// 值为该滤镜的参数记录；未包含的滤镜在节点侧保持原值。
type FiltersPayload struct {
	Op      string                 `json:"op"`
	GuildID string                 `json:"guildId"`
	Filters map[string]interface{} `json:"-"`
}

// MarshalJSON 将滤镜参数平铺进信封顶层
func (p FiltersPayload) MarshalJSON() ([]byte, error) {
	flat := make(map[string]interface{}, len(p.Filters)+2)
	flat["op"] = p.Op
	flat["guildId"] = p.GuildID
	for name, cfg := range p.Filters {
		flat[name] = cfg
	}
	return json.Marshal(flat)
}

// DestroyPayload 销毁会话
type DestroyPayload struct {
	Op      string `json:"op"`
	GuildID string `json:"guildId"`
}

// ConfigureResumingPayload 连接级的断线恢复配置，不携带租户
type ConfigureResumingPayload struct {
	Op      string `json:"op"`
	Key     string `json:"key"`
	Timeout int    `json:"timeout"`
}
