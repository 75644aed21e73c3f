package node

import (
	"errors"
	"sync"

	"springlink/logger"
)

// ErrNoNodesAvailable 没有任何已连接的节点可用于新会话
var ErrNoNodesAvailable = errors.New("no nodes are connected")

// Registry owns the set of node connections. Registration is idempotent
// per node key; selection is recomputed on every call and never rebalances
// existing sessions.
type Registry struct {
	dispatcher Dispatcher
	userID     string
	shards     int

	mu    sync.RWMutex
	conns map[string]*Conn
	order []string // 注册顺序，平局时先注册者优先
}

// NewRegistry 创建节点注册表。userID/shards 用于连接握手头。
func NewRegistry(d Dispatcher, userID string, shards int) *Registry {
	if shards <= 0 {
		shards = 1
	}
	return &Registry{
		dispatcher: d,
		userID:     userID,
		shards:     shards,
		conns:      make(map[string]*Conn),
	}
}

// Register 注册一个节点并立刻发起连接。按键幂等：
// 重复注册返回既有连接，不重建。
func (r *Registry) Register(cfg Config) *Conn {
	cfg = cfg.withDefaults()
	key := cfg.Key()

	r.mu.Lock()
	if existing, ok := r.conns[key]; ok {
		r.mu.Unlock()
		return existing
	}
	n := &Node{cfg: cfg}
	conn := newConn(n, r.dispatcher, r.userID, r.shards)
	r.conns[key] = conn
	r.order = append(r.order, key)
	r.mu.Unlock()

	logger.Info("node registered",
		logger.String("node", key),
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port))

	go conn.Connect()
	return conn
}

// Get 按键查找连接
func (r *Registry) Get(key string) *Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[key]
}

// All 按注册顺序返回所有连接
func (r *Registry) All() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.conns[key])
	}
	return out
}

// LeastLoaded 在已连接节点中选出 (systemLoad/cores)*100 最小者，
// 未上报统计按 0 负载。无可用节点时返回 ErrNoNodesAvailable，
// 调用方应视为容量失败，不在内部重试。
func (r *Registry) LeastLoaded() (*Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best *Conn
	var bestLoad float64
	for _, key := range r.order {
		conn := r.conns[key]
		if !conn.node.Connected() {
			continue
		}
		load := conn.node.LoadRatio()
		if best == nil || load < bestLoad {
			best = conn
			bestLoad = load
		}
	}
	if best == nil {
		return nil, ErrNoNodesAvailable
	}
	return best, nil
}

// Shutdown 拆除全部连接
func (r *Registry) Shutdown() {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.order))
	for _, key := range r.order {
		conns = append(conns, r.conns[key])
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		conn.Shutdown()
	}
}
