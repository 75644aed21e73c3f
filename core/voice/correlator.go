// Package voice 合并平台侧两条独立到达的语音通知。
// server 通知带流媒体端点与令牌，state 通知带会话 id 与频道；
// 两者齐备才足以让节点建立语音连接，到达顺序不作假设。
package voice

import (
	"sync"

	"springlink/model"
)

// Outcome 一次通知重估的结论
type Outcome int

const (
	// OutcomeNone 信息不全，继续等待
	OutcomeNone Outcome = iota
	// OutcomeConnect 两段齐备，应向节点下发合并载荷
	OutcomeConnect
	// OutcomeLeft 租户已离开语音频道，应停止音频并清除在场
	OutcomeLeft
)

// Correlator 按租户暂存最近的两类通知。
// 每次收到任一通知都重新评估；重复的 state 通知只会以
// 最新的会话 id 重发连接载荷（幂等）。
type Correlator struct {
	mu      sync.Mutex
	servers map[string]model.VoiceServerUpdate
	states  map[string]model.VoiceStateUpdate
}

// NewCorrelator 创建关联器
func NewCorrelator() *Correlator {
	return &Correlator{
		servers: make(map[string]model.VoiceServerUpdate),
		states:  make(map[string]model.VoiceStateUpdate),
	}
}

// HandleServerUpdate 收到 server 通知。齐备时返回 OutcomeConnect
// 与合并载荷。
func (c *Correlator) HandleServerUpdate(update model.VoiceServerUpdate) (Outcome, model.VoiceUpdatePayload) {
	c.mu.Lock()
	c.servers[update.GuildID] = update
	c.mu.Unlock()
	return c.evaluate(update.GuildID)
}

// HandleStateUpdate 收到 state 通知。频道为空表示离开语音：
// 丢弃该租户暂存的 server 通知并返回 OutcomeLeft。
func (c *Correlator) HandleStateUpdate(update model.VoiceStateUpdate) (Outcome, model.VoiceUpdatePayload) {
	if update.ChannelID == "" {
		c.mu.Lock()
		delete(c.servers, update.GuildID)
		delete(c.states, update.GuildID)
		c.mu.Unlock()
		return OutcomeLeft, model.VoiceUpdatePayload{}
	}

	c.mu.Lock()
	c.states[update.GuildID] = update
	c.mu.Unlock()
	return c.evaluate(update.GuildID)
}

func (c *Correlator) evaluate(guildID string) (Outcome, model.VoiceUpdatePayload) {
	c.mu.Lock()
	defer c.mu.Unlock()

	server, haveServer := c.servers[guildID]
	state, haveState := c.states[guildID]
	if !haveServer || !haveState {
		return OutcomeNone, model.VoiceUpdatePayload{}
	}

	return OutcomeConnect, model.VoiceUpdatePayload{
		Op:        model.OpVoiceUpdate,
		GuildID:   guildID,
		SessionID: state.SessionID,
		Event:     server,
	}
}

// Drop 清除某租户暂存的通知（会话销毁时调用）
func (c *Correlator) Drop(guildID string) {
	c.mu.Lock()
	delete(c.servers, guildID)
	delete(c.states, guildID)
	c.mu.Unlock()
}

// Pending 返回某租户是否有任一半段握手在暂存
func (c *Correlator) Pending(guildID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, haveServer := c.servers[guildID]
	_, haveState := c.states[guildID]
	return haveServer || haveState
}
