package player

import "springlink/model"

// 滤镜与均衡器调整都要求会话正在播放。每次下发只覆盖
// 对应滤镜名，其余滤镜在节点侧保持上次的值。

func (p *Player) requirePlaying() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateDestroyed {
		return "", ErrDestroyed
	}
	if p.state != StatePlaying {
		return "", ErrNotPlaying
	}
	return p.guildID, nil
}

func (p *Player) sendFilter(name string, cfg interface{}) error {
	guild, err := p.requirePlaying()
	if err != nil {
		return err
	}
	return p.conn.Send(model.FiltersPayload{
		Op:      model.OpFilters,
		GuildID: guild,
		Filters: map[string]interface{}{name: cfg},
	})
}

// SetEQ 合并给定频段到当前均衡器状态并整体下发
func (p *Player) SetEQ(bands ...model.EqualizerBand) error {
	for _, b := range bands {
		if b.Band < 0 || b.Band >= equalizerBands || b.Gain < -0.25 || b.Gain > 1.0 {
			return ErrInvalidBand
		}
	}
	guild, err := p.requirePlaying()
	if err != nil {
		return err
	}

	p.mu.Lock()
	for _, b := range bands {
		p.bands[b.Band] = b.Gain
	}
	payload := p.bandsPayloadLocked(guild)
	p.mu.Unlock()

	return p.conn.Send(payload)
}

// ClearEQ 所有频段归零并下发
func (p *Player) ClearEQ() error {
	guild, err := p.requirePlaying()
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.bands = [equalizerBands]float64{}
	payload := p.bandsPayloadLocked(guild)
	p.mu.Unlock()

	return p.conn.Send(payload)
}

func (p *Player) bandsPayloadLocked(guild string) model.EqualizerPayload {
	out := make([]model.EqualizerBand, equalizerBands)
	for i, gain := range p.bands {
		out[i] = model.EqualizerBand{Band: i, Gain: gain}
	}
	return model.EqualizerPayload{Op: model.OpEqualizer, GuildID: guild, Bands: out}
}

// SetKaraoke 人声消除
func (p *Player) SetKaraoke(f Karaoke) error {
	return p.sendFilter("karaoke", f.withDefaults())
}

// SetTimeScale 变速/变调
func (p *Player) SetTimeScale(f Timescale) error {
	return p.sendFilter("timescale", f.withDefaults())
}

// SetTremolo 音量颤音
func (p *Player) SetTremolo(f Tremolo) error {
	return p.sendFilter("tremolo", f.withDefaults())
}

// SetVibrato 音高颤音
func (p *Player) SetVibrato(f Vibrato) error {
	return p.sendFilter("vibrato", f.withDefaults())
}

// SetRotation 环绕旋转
func (p *Player) SetRotation(f Rotation) error {
	return p.sendFilter("rotation", f)
}

// SetDistortion 失真
func (p *Player) SetDistortion(f Distortion) error {
	return p.sendFilter("distortion", f.withDefaults())
}

// SetChannelMix 声道混合
func (p *Player) SetChannelMix(f ChannelMix) error {
	return p.sendFilter("channelMix", f.withDefaults())
}

// SetLowPass 低通滤波
func (p *Player) SetLowPass(f LowPass) error {
	return p.sendFilter("lowPass", f.withDefaults())
}
