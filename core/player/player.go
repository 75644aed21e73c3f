package player

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"springlink/core/node"
	"springlink/model"
)

// PlaybackState 会话播放状态
type PlaybackState int

const (
	StateIdle PlaybackState = iota
	StatePlaying
	StatePaused
	StateDestroyed // 终态，拒绝一切后续操作
)

// LoopMode 曲目结束时的队列推进策略
type LoopMode int

const (
	LoopNone  LoopMode = iota
	LoopTrack          // 重复当前曲目
	LoopQueue          // 当前曲目转到队尾
)

var (
	// ErrDestroyed 对已销毁会话的任何操作
	ErrDestroyed = errors.New("player has been destroyed")
	// ErrNotPlaying 滤镜与音量调整要求会话正在播放
	ErrNotPlaying = errors.New("player is not playing")
	// ErrSkipOutOfRange 跳过数超出队列长度
	ErrSkipOutOfRange = errors.New("cannot skip more than the queue length")
	// ErrInvalidPosition seek 位置非法
	ErrInvalidPosition = errors.New("position must be a non-negative number")
	// ErrInvalidVolume 音量超出 0-1000
	ErrInvalidVolume = errors.New("volume must be between 0 and 1000")
	// ErrInvalidBand 均衡器频段非法
	ErrInvalidBand = errors.New("equalizer band must be 0-14 with gain -0.25 to 1.0")
	// ErrEmptyChannel 频道标识不能为空
	ErrEmptyChannel = errors.New("channel id must not be empty")
)

// 语音会话失效但可通过重新请求在场恢复的关闭码
var recoverableVoiceCloseCodes = map[int]bool{4015: true, 4009: true}

const equalizerBands = 15

// Options 创建会话的参数
type Options struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	SelfMute       bool
	SelfDeaf       bool
}

// Player 单个租户的播放会话。绑定的节点连接在创建后不可更换。
// 状态变更由外部调用与节点事件共同驱动。
type Player struct {
	conn *node.Conn // 创建后不变
	sink Sink

	mu           sync.Mutex
	guildID      string
	voiceChannel string
	textChannel  string
	state        PlaybackState
	loop         LoopMode
	queue        *Queue
	current      *model.Track
	volume       int
	bands        [equalizerBands]float64
	position     int64
	timestamp    int64
	voiceState   *model.VoiceUpdatePayload // 最近一次合并的语音握手
	selfMute     bool
	selfDeaf     bool
}

// New 创建播放会话
func New(conn *node.Conn, sink Sink, opts Options) *Player {
	return &Player{
		conn:         conn,
		sink:         sink,
		guildID:      opts.GuildID,
		voiceChannel: opts.VoiceChannelID,
		textChannel:  opts.TextChannelID,
		state:        StateIdle,
		queue:        NewQueue(),
		volume:       100,
		selfMute:     opts.SelfMute,
		selfDeaf:     opts.SelfDeaf,
	}
}

// GuildID 租户标识
func (p *Player) GuildID() string {
	return p.guildID
}

// Node 绑定的节点连接
func (p *Player) Node() *node.Conn {
	return p.conn
}

// Queue 曲目队列
func (p *Player) Queue() *Queue {
	return p.queue
}

// State 当前播放状态
func (p *Player) State() PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Loop 当前循环模式
func (p *Player) Loop() LoopMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loop
}

// Current 当前曲目，空闲时为 nil
func (p *Player) Current() *model.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Position 最近上报的播放位置（毫秒）
func (p *Player) Position() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Volume 当前音量
func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// VoiceChannel 当前语音频道，离开后为空
func (p *Player) VoiceChannel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceChannel
}

// TextChannel 事件通知频道
func (p *Player) TextChannel() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.textChannel
}

// Play 开始播放。显式给定曲目且队列为空时直接播放该曲目，
// 否则播放队首。两者皆无时返回 nil 曲目且不下发指令。
func (p *Player) Play(track *model.Track) (*model.Track, error) {
	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return nil, ErrDestroyed
	}

	var sound *model.Track
	if head, ok := p.queue.First(); ok {
		sound = &head
	} else if track != nil {
		sound = track
	}
	if sound == nil {
		p.mu.Unlock()
		return nil, nil
	}

	p.state = StatePlaying
	p.current = sound
	p.timestamp = time.Now().UnixMilli()
	guild := p.guildID
	volume := p.volume
	p.mu.Unlock()

	err := p.conn.Send(model.PlayPayload{
		Op:      model.OpPlay,
		GuildID: guild,
		Track:   sound.Encoded,
		Volume:  volume,
	})
	return sound, err
}

// Pause 暂停或恢复。目标方向与当前一致或队列为空时为 no-op。
func (p *Player) Pause(pause bool) error {
	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return ErrDestroyed
	}
	paused := p.state == StatePaused
	if paused == pause || p.queue.Empty() {
		p.mu.Unlock()
		return nil
	}
	if pause {
		p.state = StatePaused
	} else {
		p.state = StatePlaying
	}
	guild := p.guildID
	p.mu.Unlock()

	return p.conn.Send(model.PausePayload{
		Op:      model.OpPause,
		GuildID: guild,
		Pause:   pause,
	})
}

// Stop 停止当前曲目。skipCount 大于 1 时先移除前 skipCount-1 首；
// 队列推进由节点随后的 TrackEnd 事件驱动，而非本调用。
func (p *Player) Stop(skipCount int) error {
	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return ErrDestroyed
	}
	if skipCount > 1 {
		if skipCount > p.queue.Size() {
			p.mu.Unlock()
			return fmt.Errorf("%w: skip %d, queue %d", ErrSkipOutOfRange, skipCount, p.queue.Size())
		}
		p.queue.Splice(0, skipCount-1)
	}
	guild := p.guildID
	p.mu.Unlock()

	return p.conn.Send(model.StopPayload{Op: model.OpStop, GuildID: guild})
}

// Seek 跳转到指定位置（毫秒）
func (p *Player) Seek(position int64) error {
	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return ErrDestroyed
	}
	if position < 0 {
		p.mu.Unlock()
		return ErrInvalidPosition
	}
	p.position = position
	guild := p.guildID
	p.mu.Unlock()

	return p.conn.Send(model.SeekPayload{
		Op:       model.OpSeek,
		GuildID:  guild,
		Position: position,
	})
}

// SetVolume 调整音量，要求正在播放
func (p *Player) SetVolume(level int) error {
	if level < 0 || level > 1000 {
		return ErrInvalidVolume
	}
	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return ErrDestroyed
	}
	if p.state != StatePlaying {
		p.mu.Unlock()
		return ErrNotPlaying
	}
	p.volume = level
	guild := p.guildID
	p.mu.Unlock()

	return p.conn.Send(model.VolumePayload{
		Op:      model.OpVolume,
		GuildID: guild,
		Volume:  level,
	})
}

// SetTrackRepeat 单曲循环
func (p *Player) SetTrackRepeat() error {
	return p.setLoop(LoopTrack)
}

// SetQueueRepeat 队列循环
func (p *Player) SetQueueRepeat() error {
	return p.setLoop(LoopQueue)
}

// DisableRepeat 关闭循环
func (p *Player) DisableRepeat() error {
	return p.setLoop(LoopNone)
}

func (p *Player) setLoop(mode LoopMode) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateDestroyed {
		return ErrDestroyed
	}
	p.loop = mode
	return nil
}

// SetTextChannel 更换事件通知频道
func (p *Player) SetTextChannel(channel string) error {
	if channel == "" {
		return ErrEmptyChannel
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateDestroyed {
		return ErrDestroyed
	}
	p.textChannel = channel
	return nil
}

// SetVoiceChannel 更换语音频道
func (p *Player) SetVoiceChannel(channel string) error {
	if channel == "" {
		return ErrEmptyChannel
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateDestroyed {
		return ErrDestroyed
	}
	p.voiceChannel = channel
	return nil
}

// Connect 语音握手两段齐备后由关联器调用，向节点下发合并载荷。
// 幂等：更新的 state 通知到达时仅用最新载荷重发。
func (p *Player) Connect(voice model.VoiceUpdatePayload) error {
	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return ErrDestroyed
	}
	p.voiceState = &voice
	p.mu.Unlock()

	return p.conn.Send(voice)
}

// Disconnect 停止音频并释放语音在场，不销毁会话
func (p *Player) Disconnect() error {
	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return ErrDestroyed
	}
	if p.voiceChannel == "" {
		p.mu.Unlock()
		return nil
	}
	p.voiceChannel = ""
	guild := p.guildID
	p.mu.Unlock()

	if err := p.Pause(true); err != nil {
		return err
	}
	p.sink.SendVoiceIntent(guild, nil)
	return nil
}

// Destroy 销毁会话：释放语音在场、通知节点、从管理表移除，进入终态
func (p *Player) Destroy() error {
	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return ErrDestroyed
	}
	guild := p.guildID
	p.mu.Unlock()

	if err := p.Disconnect(); err != nil {
		return err
	}
	if err := p.conn.Send(model.DestroyPayload{Op: model.OpDestroy, GuildID: guild}); err != nil {
		return err
	}

	p.mu.Lock()
	p.state = StateDestroyed
	p.mu.Unlock()

	p.sink.Publish(Event{Type: EventPlayerDestroy, GuildID: guild})
	p.sink.Detach(guild)
	return nil
}
