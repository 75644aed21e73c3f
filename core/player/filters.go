package player

// 音频滤镜参数。零值字段在下发前替换为节点侧默认值，
// 因此直接传结构体字面量即可只调整关心的参数。

// Karaoke 人声消除
type Karaoke struct {
	Level       float64 `json:"level"`
	MonoLevel   float64 `json:"monoLevel"`
	FilterBand  float64 `json:"filterBand"`
	FilterWidth float64 `json:"filterWidth"`
}

func (f Karaoke) withDefaults() Karaoke {
	if f.Level == 0 {
		f.Level = 1.0
	}
	if f.MonoLevel == 0 {
		f.MonoLevel = 1.0
	}
	if f.FilterBand == 0 {
		f.FilterBand = 220.0
	}
	if f.FilterWidth == 0 {
		f.FilterWidth = 100.0
	}
	return f
}

// Timescale 变速/变调
type Timescale struct {
	Speed float64 `json:"speed"`
	Pitch float64 `json:"pitch"`
	Rate  float64 `json:"rate"`
}

func (f Timescale) withDefaults() Timescale {
	if f.Speed == 0 {
		f.Speed = 1.0
	}
	if f.Pitch == 0 {
		f.Pitch = 1.0
	}
	if f.Rate == 0 {
		f.Rate = 1.0
	}
	return f
}

// Tremolo 颤音（音量抖动）
type Tremolo struct {
	Frequency float64 `json:"frequency"`
	Depth     float64 `json:"depth"`
}

func (f Tremolo) withDefaults() Tremolo {
	if f.Frequency == 0 {
		f.Frequency = 2.0
	}
	if f.Depth == 0 {
		f.Depth = 0.5
	}
	return f
}

// Vibrato 颤音（音高抖动）
type Vibrato struct {
	Frequency float64 `json:"frequency"`
	Depth     float64 `json:"depth"`
}

func (f Vibrato) withDefaults() Vibrato {
	if f.Frequency == 0 {
		f.Frequency = 2.0
	}
	if f.Depth == 0 {
		f.Depth = 0.5
	}
	return f
}

// Rotation 环绕声旋转
type Rotation struct {
	RotationHz float64 `json:"rotationHz"`
}

// Distortion 失真
type Distortion struct {
	SinOffset float64 `json:"sinOffset"`
	SinScale  float64 `json:"sinScale"`
	CosOffset float64 `json:"cosOffset"`
	CosScale  float64 `json:"cosScale"`
	TanOffset float64 `json:"tanOffset"`
	TanScale  float64 `json:"tanScale"`
	Offset    float64 `json:"offset"`
	Scale     float64 `json:"scale"`
}

func (f Distortion) withDefaults() Distortion {
	if f.SinScale == 0 {
		f.SinScale = 1
	}
	if f.CosScale == 0 {
		f.CosScale = 1
	}
	if f.TanScale == 0 {
		f.TanScale = 1
	}
	if f.Scale == 0 {
		f.Scale = 1
	}
	return f
}

// ChannelMix 声道混合
type ChannelMix struct {
	LeftToLeft   float64 `json:"leftToLeft"`
	LeftToRight  float64 `json:"leftToRight"`
	RightToLeft  float64 `json:"rightToLeft"`
	RightToRight float64 `json:"rightToRight"`
}

func (f ChannelMix) withDefaults() ChannelMix {
	if f.LeftToLeft == 0 {
		f.LeftToLeft = 1.0
	}
	if f.RightToRight == 0 {
		f.RightToRight = 1.0
	}
	return f
}

// LowPass 低通滤波
type LowPass struct {
	Smoothing float64 `json:"smoothing"`
}

func (f LowPass) withDefaults() LowPass {
	if f.Smoothing == 0 {
		f.Smoothing = 20.0
	}
	return f
}
