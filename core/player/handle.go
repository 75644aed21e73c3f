package player

import (
	"springlink/logger"
	"springlink/model"
)

// HandleMessage 处理经节点连接按租户转发来的入站消息。
// 未知事件标签不会静默吞掉，而是记录并忽略。
func (p *Player) HandleMessage(msg *model.InboundMessage) {
	p.mu.Lock()
	if p.state == StateDestroyed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	switch msg.Op {
	case model.OpPlayerUpdate:
		if msg.State != nil {
			p.mu.Lock()
			p.position = msg.State.Position
			p.mu.Unlock()
		}
	case model.OpEvent:
		p.handleNodeEvent(msg)
	default:
		logger.Warn("unrecognized node op for player",
			logger.String("guild", p.guildID),
			logger.String("op", msg.Op))
	}
}

func (p *Player) handleNodeEvent(msg *model.InboundMessage) {
	switch msg.Type {
	case model.EventTrackStart:
		p.handleTrackStart()
	case model.EventTrackEnd:
		p.handleTrackEnd(msg.Reason)
	case model.EventTrackStuck:
		p.handleTrackFault(EventTrackStuck, msg)
	case model.EventTrackException:
		p.handleTrackFault(EventTrackError, msg)
	case model.EventWebSocketClosed:
		p.handleSocketClosed(msg)
	default:
		logger.Warn("unrecognized node event type",
			logger.String("guild", p.guildID),
			logger.String("type", msg.Type))
	}
}

func (p *Player) handleTrackStart() {
	p.mu.Lock()
	track := p.current
	guild := p.guildID
	p.mu.Unlock()

	p.sink.Publish(Event{Type: EventTrackStart, GuildID: guild, Track: track})
}

// handleTrackEnd 按循环模式推进队列。队列推进发生在这里，
// 而不是 Stop 调用处。
func (p *Player) handleTrackEnd(reason string) {
	p.mu.Lock()
	track := p.current
	guild := p.guildID
	loop := p.loop
	p.mu.Unlock()

	p.sink.Publish(Event{Type: EventTrackEnd, GuildID: guild, Track: track, Reason: reason})

	switch loop {
	case LoopTrack:
		// 原曲重播，队列不动
		if started, _ := p.Play(track); started == nil {
			p.settleQueueEnd(guild, reason)
		}

	case LoopQueue:
		// 当前曲目转到队尾，播放新队首
		p.queue.Rotate()
		if started, _ := p.Play(nil); started == nil {
			p.settleQueueEnd(guild, reason)
		}

	default:
		p.queue.Shift()
		if p.queue.Empty() {
			p.settleQueueEnd(guild, reason)
			return
		}
		p.Play(nil)
	}
}

// settleQueueEnd 没有下一首可放时回到空闲态并清掉当前曲目。
// 队列结束通知只对正常收尾的结束原因发出。
func (p *Player) settleQueueEnd(guild, reason string) {
	p.mu.Lock()
	p.state = StateIdle
	p.current = nil
	p.mu.Unlock()
	switch reason {
	case model.EndReasonReplaced, model.EndReasonFinished, model.EndReasonStopped:
		p.sink.Publish(Event{Type: EventQueueEnd, GuildID: guild})
	}
}

// handleTrackFault 卡死/异常：丢弃肇事曲目并发出诊断通知。
// 不自动推进，是否跳过由调用方决定。
func (p *Player) handleTrackFault(kind EventType, msg *model.InboundMessage) {
	p.mu.Lock()
	track := p.current
	guild := p.guildID
	p.mu.Unlock()

	p.queue.Shift()
	p.sink.Publish(Event{Type: kind, GuildID: guild, Track: track, Raw: msg.Raw})
}

// handleSocketClosed 语音连接被平台侧关闭。可恢复的失效码
// 重新发送语音在场请求，其余只发诊断通知。
func (p *Player) handleSocketClosed(msg *model.InboundMessage) {
	p.mu.Lock()
	guild := p.guildID
	channel := p.voiceChannel
	p.mu.Unlock()

	if recoverableVoiceCloseCodes[msg.Code] && channel != "" {
		p.sink.SendVoiceIntent(guild, &channel)
	}
	p.sink.Publish(Event{Type: EventSocketClosed, GuildID: guild, Reason: msg.Reason, Raw: msg.Raw})
}
