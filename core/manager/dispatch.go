package manager

import (
	"context"

	"springlink/core/node"
	"springlink/core/player"
	"springlink/logger"
	"springlink/model"
)

// Manager 同时充当节点连接的消息分发器与播放会话的通知出口。

// DispatchEvent 把带租户标识的入站消息转给对应会话。
// 没有会话时消息只走观测通道。
func (m *Manager) DispatchEvent(guildID string, msg *model.InboundMessage) {
	if p, ok := m.Get(guildID); ok {
		p.HandleMessage(msg)
	}
}

// PublishRaw 连接级观测通道：每条入站消息带上来源节点重新发布
func (m *Manager) PublishRaw(n *node.Node, msg *model.InboundMessage) {
	ev := newEvent(EventRaw)
	ev.Node = n.Key()
	ev.GuildID = msg.GuildID
	ev.Raw = msg.Raw
	m.publish(ev)
}

// NodeConnected 节点连接建立
func (m *Manager) NodeConnected(n *node.Node) {
	ev := newEvent(EventNodeConnected)
	ev.Node = n.Key()
	m.publish(ev)
}

// NodeClosed 节点连接关闭
func (m *Manager) NodeClosed(n *node.Node, code int, reason string) {
	ev := newEvent(EventNodeClosed)
	ev.Node = n.Key()
	ev.Code = code
	ev.Reason = reason
	m.publish(ev)
}

// NodeError 节点传输错误。自动重连会接管恢复，这里只作观测。
func (m *Manager) NodeError(n *node.Node, err error) {
	ev := newEvent(EventNodeError)
	ev.Node = n.Key()
	ev.Error = err.Error()
	m.publish(ev)
}

// NodeReconnecting 节点开始重连
func (m *Manager) NodeReconnecting(n *node.Node) {
	ev := newEvent(EventNodeReconnect)
	ev.Node = n.Key()
	m.publish(ev)
}

// Publish 会话通知入总线，TrackEnd 顺带落播放历史
func (m *Manager) Publish(pev player.Event) {
	ev := newEvent(EventType(pev.Type))
	ev.GuildID = pev.GuildID
	ev.Track = pev.Track
	ev.Reason = pev.Reason
	ev.Raw = pev.Raw
	m.publish(ev)

	if pev.Type == player.EventTrackEnd && m.opts.History != nil {
		go m.opts.History.RecordTrackEnd(pev.GuildID, pev.Track, pev.Reason)
	}

	// 队列推进后刷新快照
	if m.opts.QueueStore != nil {
		switch pev.Type {
		case player.EventTrackEnd, player.EventTrackStuck, player.EventTrackError:
			if p, ok := m.Get(pev.GuildID); ok {
				m.snapshotQueue(context.Background(), pev.GuildID, p)
			}
		}
	}
}

// SendVoiceIntent 向平台网关发送 op 4 在场请求
func (m *Manager) SendVoiceIntent(guildID string, channelID *string) {
	if m.opts.SendWS == nil {
		logger.Warn("no gateway send func configured", logger.String("guild", guildID))
		return
	}
	m.opts.SendWS(model.VoiceIntent{
		Op: 4,
		Data: model.VoiceIntentBody{
			GuildID:   guildID,
			ChannelID: channelID,
		},
	})
}

// Detach 把会话从管理表移除并清理其暂存状态
func (m *Manager) Detach(guildID string) {
	m.mu.Lock()
	delete(m.players, guildID)
	m.mu.Unlock()

	m.correlator.Drop(guildID)
	if m.opts.QueueStore != nil {
		if err := m.opts.QueueStore.DropQueue(context.Background(), guildID); err != nil {
			logger.Warn("queue snapshot cleanup failed",
				logger.String("guild", guildID),
				logger.ErrorField(err))
		}
	}
	logger.Info("player detached", logger.String("guild", guildID))
}
