package node

import (
	"fmt"
	"sync"
	"time"

	"springlink/model"
)

// Config 节点静态配置。构造后不可变，连接重建时原样复用。
type Config struct {
	Identifier     string
	Host           string
	Port           int
	Password       string
	Secure         bool
	ResumeKey      string
	ResumeTimeout  int // 秒
	ReconnectDelay time.Duration
}

// Key returns the registry key for this node: the identifier when set,
// otherwise host:port.
func (c Config) Key() string {
	if c.Identifier != "" {
		return c.Identifier
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WSURL 控制连接地址
func (c Config) WSURL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/", scheme, c.Host, c.Port)
}

// RESTURL 请求/响应端点基地址
func (c Config) RESTURL() string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 2333
	}
	if c.Password == "" {
		c.Password = "youshallnotpass"
	}
	if c.ResumeTimeout == 0 {
		c.ResumeTimeout = 60
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	return c
}

// Node 一个远端音频节点的身份与健康状态。
// stats 由节点的 stats 消息整体覆盖。
type Node struct {
	cfg Config

	mu        sync.RWMutex
	connected bool
	stats     model.NodeStats
}

// Config 返回节点的不可变配置
func (n *Node) Config() Config {
	return n.cfg
}

// Key 注册键
func (n *Node) Key() string {
	return n.cfg.Key()
}

// Connected reports whether the control connection is currently up.
func (n *Node) Connected() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.connected
}

func (n *Node) setConnected(v bool) {
	n.mu.Lock()
	n.connected = v
	n.mu.Unlock()
}

// Stats 最近一次上报的健康统计
func (n *Node) Stats() model.NodeStats {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.stats
}

func (n *Node) setStats(s model.NodeStats) {
	n.mu.Lock()
	n.stats = s
	n.mu.Unlock()
}

// LoadRatio 当前负载百分比，未上报统计时为 0
func (n *Node) LoadRatio() float64 {
	return n.Stats().LoadRatio()
}
