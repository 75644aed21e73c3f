package node

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"springlink/logger"
	"springlink/model"

	"github.com/gorilla/websocket"
)

// ConnState 连接状态机
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateClosed
	StateReconnecting
)

// Dispatcher 将入站消息路由给播放会话并发布观测事件。
// 由 Session Manager 实现。
type Dispatcher interface {
	// DispatchEvent 按租户转发带 guildId 的入站消息
	DispatchEvent(guildID string, msg *model.InboundMessage)
	// PublishRaw 连接级观测通道，所有入站消息都会经过这里
	PublishRaw(n *Node, msg *model.InboundMessage)
	NodeConnected(n *Node)
	NodeClosed(n *Node, code int, reason string)
	NodeError(n *Node, err error)
	NodeReconnecting(n *Node)
}

// Conn 持有一个节点的控制连接。socket 在每次重连时重建，
// 断线期间的出站指令进入 FIFO 缓冲，连接就绪后按序冲刷。
type Conn struct {
	node       *Node
	dispatcher Dispatcher
	userID     string
	shards     int

	mu        sync.Mutex
	writeMu   sync.Mutex // gorilla 不允许并发写
	ws        *websocket.Conn
	state     ConnState
	buffer    [][]byte // 断线期间积压的出站载荷
	reconnect *time.Timer
	closed    bool // 显式关闭后不再自动重连
}

func newConn(n *Node, d Dispatcher, userID string, shards int) *Conn {
	return &Conn{
		node:       n,
		dispatcher: d,
		userID:     userID,
		shards:     shards,
		state:      StateDisconnected,
	}
}

// Node 返回此连接所属的节点
func (c *Conn) Node() *Node {
	return c.node
}

// State 当前连接状态
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect 发起一次连接。失败走与断线相同的重连路径。
func (c *Conn) Connect() {
	c.mu.Lock()
	if c.closed || c.state == StateConnecting || c.state == StateConnected {
		c.mu.Unlock()
		return
	}
	c.state = StateConnecting
	cfg := c.node.cfg
	c.mu.Unlock()

	headers := http.Header{}
	headers.Set("Authorization", cfg.Password)
	headers.Set("Num-Shards", strconv.Itoa(c.shards))
	headers.Set("User-Id", c.userID)
	headers.Set("Client-Name", "springlink")
	if cfg.ResumeKey != "" {
		headers.Set("Resume-Key", cfg.ResumeKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.Dial(cfg.WSURL(), headers)
	if err != nil {
		logger.Error("node dial failed",
			logger.String("node", c.node.Key()),
			logger.ErrorField(err))
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		c.dispatcher.NodeError(c.node, err)
		c.scheduleReconnect()
		return
	}

	c.mu.Lock()
	c.ws = ws
	c.state = StateConnected
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	pending := c.buffer
	c.buffer = nil
	c.mu.Unlock()

	c.node.setConnected(true)

	// 断线恢复配置需要先于其他指令到达节点
	if cfg.ResumeKey != "" {
		c.Send(model.ConfigureResumingPayload{
			Op:      model.OpConfigureResuming,
			Key:     cfg.ResumeKey,
			Timeout: cfg.ResumeTimeout,
		})
	}

	// 按 FIFO 冲刷断线期间积压的指令
	for _, payload := range pending {
		c.write(payload)
	}

	logger.Info("node connected", logger.String("node", c.node.Key()))
	c.dispatcher.NodeConnected(c.node)

	go c.readPump(ws)
}

// readPump 读取循环，每个 socket 实例一个
func (c *Conn) readPump(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleClose(ws, err)
			return
		}
		c.handleMessage(data)
	}
}

// handleMessage 解析入站信封并分发
func (c *Conn) handleMessage(data []byte) {
	var msg model.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Warn("malformed node message",
			logger.String("node", c.node.Key()),
			logger.ErrorField(err))
		return
	}
	msg.Raw = json.RawMessage(data)

	if msg.Op == model.OpStats {
		var stats model.NodeStats
		if err := json.Unmarshal(data, &stats); err == nil {
			c.node.setStats(stats)
		}
	} else if msg.GuildID != "" {
		c.dispatcher.DispatchEvent(msg.GuildID, &msg)
	}

	c.dispatcher.PublishRaw(c.node, &msg)
}

// handleClose 处理读取失败。关闭码 1000 视为主动关闭，其余调度一次重连。
func (c *Conn) handleClose(ws *websocket.Conn, err error) {
	c.mu.Lock()
	if c.ws != ws {
		// 已被更新的 socket 取代
		c.mu.Unlock()
		return
	}
	c.ws = nil
	c.state = StateClosed
	closed := c.closed
	c.mu.Unlock()

	c.node.setConnected(false)

	code := websocket.CloseAbnormalClosure
	reason := err.Error()
	if ce, ok := err.(*websocket.CloseError); ok {
		code = ce.Code
		reason = ce.Text
	}
	c.dispatcher.NodeClosed(c.node, code, reason)

	if closed || code == websocket.CloseNormalClosure {
		c.mu.Lock()
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}

	logger.Warn("node connection lost",
		logger.String("node", c.node.Key()),
		logger.Int("code", code),
		logger.String("reason", reason))
	c.scheduleReconnect()
}

// scheduleReconnect 调度恰好一次重连
func (c *Conn) scheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.reconnect != nil {
		return
	}
	c.state = StateReconnecting
	delay := c.node.cfg.ReconnectDelay
	c.reconnect = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnect = nil
		c.state = StateDisconnected
		c.mu.Unlock()
		c.dispatcher.NodeReconnecting(c.node)
		c.Connect()
	})
}

// Send 序列化并发送指令。未连接时进入出站缓冲，待连接就绪后冲刷。
func (c *Conn) Send(payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state != StateConnected || c.ws == nil {
		c.buffer = append(c.buffer, data)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	return c.write(data)
}

func (c *Conn) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return nil
	}
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Error("node write failed",
			logger.String("node", c.node.Key()),
			logger.ErrorField(err))
		return err
	}
	return nil
}

// Shutdown 显式拆除连接：取消待定重连并抑制自动重连。
func (c *Conn) Shutdown() {
	c.mu.Lock()
	c.closed = true
	if c.reconnect != nil {
		c.reconnect.Stop()
		c.reconnect = nil
	}
	ws := c.ws
	c.ws = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.node.setConnected(false)

	if ws != nil {
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"))
		ws.Close()
	}
}

// Buffered 返回出站缓冲中积压的指令数
func (c *Conn) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}
