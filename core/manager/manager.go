// Package manager 会话管理器：创建/查找/销毁播放会话，
// 将平台网关包路由给语音握手关联器，并把新会话放置到
// 负载最低的节点上。
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"springlink/core/catalog"
	"springlink/core/node"
	"springlink/core/player"
	"springlink/core/voice"
	"springlink/logger"
	"springlink/model"
)

// 平台网关事件名
const (
	gatewayVoiceServerUpdate = "VOICE_SERVER_UPDATE"
	gatewayVoiceStateUpdate  = "VOICE_STATE_UPDATE"
)

// ErrNoPlayer 租户没有活跃会话
var ErrNoPlayer = errors.New("no player for guild")

// SendWSFunc 由宿主应用提供，把语音在场请求发往平台网关
type SendWSFunc func(intent model.VoiceIntent)

// QueueStore 队列快照持久化（可选）
type QueueStore interface {
	SaveQueue(ctx context.Context, guildID string, tracks []model.Track) error
	LoadQueue(ctx context.Context, guildID string) ([]model.Track, error)
	DropQueue(ctx context.Context, guildID string) error
}

// ResolveCache 解析结果缓存（可选）
type ResolveCache interface {
	GetResult(ctx context.Context, query string) (*model.LoadResult, bool)
	PutResult(ctx context.Context, query string, result *model.LoadResult)
}

// HistoryRecorder 播放历史落库（可选）
type HistoryRecorder interface {
	RecordTrackEnd(guildID string, track *model.Track, reason string)
}

// Options 管理器配置
type Options struct {
	UserID         string // 宿主应用在平台上的用户 id
	Shards         int
	SendWS         SendWSFunc
	SearchPrefix   string // 非 URL 查询的搜索源，默认 yt
	RequestTimeout time.Duration
	QueueStore     QueueStore
	ResolveCache   ResolveCache
	History        HistoryRecorder
}

// CreateOptions 新会话参数
type CreateOptions struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string
	SelfMute       bool
	SelfDeaf       bool
}

// Manager 会话管理器。players 表是按租户的唯一所有权注册表：
// 同一租户同时至多一个会话。
type Manager struct {
	registry   *node.Registry
	catalog    *catalog.Client
	correlator *voice.Correlator
	opts       Options

	mu      sync.RWMutex
	players map[string]*player.Player

	events chan Event
}

// New 创建管理器并注册初始节点，注册即发起连接。
func New(opts Options, nodes []node.Config) *Manager {
	if opts.SearchPrefix == "" {
		opts.SearchPrefix = catalog.DefaultSearchPrefix
	}
	m := &Manager{
		catalog:    catalog.NewClient(opts.RequestTimeout),
		correlator: voice.NewCorrelator(),
		opts:       opts,
		players:    make(map[string]*player.Player),
		events:     make(chan Event, 256),
	}
	m.registry = node.NewRegistry(m, opts.UserID, opts.Shards)
	for _, cfg := range nodes {
		m.registry.Register(cfg)
	}
	return m
}

// Registry 节点注册表
func (m *Manager) Registry() *node.Registry {
	return m.registry
}

// Events 事件总线的只读端
func (m *Manager) Events() <-chan Event {
	return m.events
}

// Create 为租户创建会话。按租户幂等：已有会话时原样返回。
// 新会话绑定到当前负载最低的节点，并向平台请求语音在场。
func (m *Manager) Create(opts CreateOptions) (*player.Player, error) {
	// 检查与插入之间不允许有任何让出点，否则并发创建会破坏
	// 每租户单会话的不变量
	m.mu.Lock()
	if existing, ok := m.players[opts.GuildID]; ok {
		m.mu.Unlock()
		return existing, nil
	}

	conn, err := m.registry.LeastLoaded()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	p := player.New(conn, m, player.Options{
		GuildID:        opts.GuildID,
		VoiceChannelID: opts.VoiceChannelID,
		TextChannelID:  opts.TextChannelID,
		SelfMute:       opts.SelfMute,
		SelfDeaf:       opts.SelfDeaf,
	})
	m.players[opts.GuildID] = p
	m.mu.Unlock()

	logger.Info("player created",
		logger.String("guild", opts.GuildID),
		logger.String("node", conn.Node().Key()))

	if m.opts.SendWS != nil {
		channel := opts.VoiceChannelID
		m.opts.SendWS(model.VoiceIntent{
			Op: 4,
			Data: model.VoiceIntentBody{
				GuildID:   opts.GuildID,
				ChannelID: &channel,
				SelfMute:  opts.SelfMute,
				SelfDeaf:  opts.SelfDeaf,
			},
		})
	}

	// 有历史队列快照则恢复
	if m.opts.QueueStore != nil {
		if tracks, err := m.opts.QueueStore.LoadQueue(context.Background(), opts.GuildID); err == nil && len(tracks) > 0 {
			p.Queue().AddBatch(tracks)
			logger.Info("queue restored from snapshot",
				logger.String("guild", opts.GuildID),
				logger.Int("tracks", len(tracks)))
		}
	}

	return p, nil
}

// Get 查找租户会话
func (m *Manager) Get(guildID string) (*player.Player, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.players[guildID]
	return p, ok
}

// Players 会话表快照
func (m *Manager) Players() map[string]*player.Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]*player.Player, len(m.players))
	for k, v := range m.players {
		out[k] = v
	}
	return out
}

// Resolve 通过负载最低的节点解析查询，命中缓存时不发请求
func (m *Manager) Resolve(ctx context.Context, query, sourcePrefix string) (*model.LoadResult, error) {
	if sourcePrefix == "" {
		sourcePrefix = m.opts.SearchPrefix
	}
	if m.opts.ResolveCache != nil {
		if cached, ok := m.opts.ResolveCache.GetResult(ctx, sourcePrefix+":"+query); ok {
			return cached, nil
		}
	}

	conn, err := m.registry.LeastLoaded()
	if err != nil {
		return nil, err
	}
	result, err := m.catalog.Resolve(ctx, conn.Node().Config(), query, sourcePrefix)
	if err != nil {
		return nil, err
	}

	if m.opts.ResolveCache != nil {
		m.opts.ResolveCache.PutResult(ctx, sourcePrefix+":"+query, result)
	}
	return result, nil
}

// Decode 解码曲目令牌
func (m *Manager) Decode(ctx context.Context, token string) (*model.TrackInfo, error) {
	conn, err := m.registry.LeastLoaded()
	if err != nil {
		return nil, err
	}
	return m.catalog.Decode(ctx, conn.Node().Config(), token)
}

// Enqueue 入队并持久化队列快照
func (m *Manager) Enqueue(ctx context.Context, guildID string, tracks []model.Track) error {
	p, ok := m.Get(guildID)
	if !ok {
		return ErrNoPlayer
	}
	p.Queue().AddBatch(tracks)
	m.snapshotQueue(ctx, guildID, p)
	return nil
}

func (m *Manager) snapshotQueue(ctx context.Context, guildID string, p *player.Player) {
	if m.opts.QueueStore == nil {
		return
	}
	if err := m.opts.QueueStore.SaveQueue(ctx, guildID, p.Queue().Tracks()); err != nil {
		logger.Warn("queue snapshot failed",
			logger.String("guild", guildID),
			logger.ErrorField(err))
	}
}

// HandleGatewayPacket 平台网关原始包入口。语音相关的两类事件
// 交给关联器，其余忽略。
func (m *Manager) HandleGatewayPacket(packet model.GatewayPacket) {
	switch packet.T {
	case gatewayVoiceServerUpdate:
		var update model.VoiceServerUpdate
		if err := json.Unmarshal(packet.D, &update); err != nil {
			logger.Warn("malformed voice server update", logger.ErrorField(err))
			return
		}
		outcome, payload := m.correlator.HandleServerUpdate(update)
		m.applyVoiceOutcome(update.GuildID, outcome, payload)

	case gatewayVoiceStateUpdate:
		var update model.VoiceStateUpdate
		if err := json.Unmarshal(packet.D, &update); err != nil {
			logger.Warn("malformed voice state update", logger.ErrorField(err))
			return
		}
		// 只关心宿主应用自身的语音状态
		if update.UserID != "" && update.UserID != m.opts.UserID {
			return
		}
		outcome, payload := m.correlator.HandleStateUpdate(update)
		m.applyVoiceOutcome(update.GuildID, outcome, payload)
	}
}

func (m *Manager) applyVoiceOutcome(guildID string, outcome voice.Outcome, payload model.VoiceUpdatePayload) {
	p, ok := m.Get(guildID)
	if !ok {
		return
	}
	switch outcome {
	case voice.OutcomeConnect:
		if err := p.Connect(payload); err != nil {
			logger.Error("voice connect failed",
				logger.String("guild", guildID),
				logger.ErrorField(err))
		}
	case voice.OutcomeLeft:
		// 停止音频并清除在场，但保留会话
		if err := p.Disconnect(); err != nil && !errors.Is(err, player.ErrDestroyed) {
			logger.Warn("voice disconnect failed",
				logger.String("guild", guildID),
				logger.ErrorField(err))
		}
	}
}

// Shutdown 销毁所有会话并拆除节点连接
func (m *Manager) Shutdown() {
	for _, p := range m.Players() {
		if err := p.Destroy(); err != nil && !errors.Is(err, player.ErrDestroyed) {
			logger.Warn("player destroy failed",
				logger.String("guild", p.GuildID()),
				logger.ErrorField(err))
		}
	}
	m.registry.Shutdown()
}
