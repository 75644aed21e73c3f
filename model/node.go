package model

// NodeStats 节点健康统计，由节点周期性通过 stats 消息整体推送
type NodeStats struct {
	Players        int         `json:"players"`
	PlayingPlayers int         `json:"playingPlayers"`
	Uptime         int64       `json:"uptime"`
	Memory         MemoryStats `json:"memory"`
	CPU            CPUStats    `json:"cpu"`
}

// MemoryStats 节点内存占用
type MemoryStats struct {
	Free       int64 `json:"free"`
	Used       int64 `json:"used"`
	Allocated  int64 `json:"allocated"`
	Reservable int64 `json:"reservable"`
}

// CPUStats 节点 CPU 负载
type CPUStats struct {
	Cores       int     `json:"cores"`
	SystemLoad  float64 `json:"systemLoad"`
	BackendLoad float64 `json:"lavalinkLoad"`
}

// LoadRatio 返回用于节点选择的负载百分比。
// 未收到任何统计（cores 为 0）时视为 0 负载。
func (s NodeStats) LoadRatio() float64 {
	if s.CPU.Cores == 0 {
		return 0
	}
	return s.CPU.SystemLoad / float64(s.CPU.Cores) * 100
}
