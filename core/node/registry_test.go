package node

import (
	"testing"
	"time"

	"springlink/model"

	"github.com/gorilla/websocket"
)

type nopDispatcher struct{}

func (nopDispatcher) DispatchEvent(string, *model.InboundMessage) {}
func (nopDispatcher) PublishRaw(*Node, *model.InboundMessage) {}
func (nopDispatcher) NodeConnected(*Node) {}
func (nopDispatcher) NodeClosed(*Node, int, string) {}
func (nopDispatcher) NodeError(*Node, error) {}
func (nopDispatcher) NodeReconnecting(*Node) {}

// newTestRegistry 构造不发起真实连接的注册表
func newTestRegistry(nodes ...*Node) *Registry {
	r := &Registry{conns: make(map[string]*Conn)}
	for _, n := range nodes {
		key := n.Key()
		r.conns[key] = newConn(n, nil, "", 1)
		r.order = append(r.order, key)
	}
	return r
}

func testNode(id string, connected bool, cores int, load float64) *Node {
	n := &Node{cfg: Config{Identifier: id, Host: "localhost", Port: 2333}}
	n.setConnected(connected)
	n.setStats(model.NodeStats{CPU: model.CPUStats{Cores: cores, SystemLoad: load}})
	return n
}

func TestLeastLoaded(t *testing.T) {
	tests := []struct {
		name    string
		nodes   []*Node
		want    string
		wantErr error
	}{
		{
			name:    "no nodes",
			nodes:   nil,
			wantErr: ErrNoNodesAvailable,
		},
		{
			name: "all disconnected",
			nodes: []*Node{
				testNode("a", false, 2, 0.5),
				testNode("b", false, 1, 0.1),
			},
			wantErr: ErrNoNodesAvailable,
		},
		{
			name: "normalized by cores",
			nodes: []*Node{
				// a: 0.5/2*100 = 25%，b: 0.1/1*100 = 10%
				testNode("a", true, 2, 0.5),
				testNode("b", true, 1, 0.1),
			},
			want: "b",
		},
		{
			name: "skips disconnected",
			nodes: []*Node{
				testNode("a", false, 1, 0.0),
				testNode("b", true, 1, 0.9),
			},
			want: "b",
		},
		{
			name: "tie goes to first registered",
			nodes: []*Node{
				testNode("a", true, 2, 0.4),
				testNode("b", true, 1, 0.2),
			},
			want: "a",
		},
		{
			name: "no stats means zero load",
			nodes: []*Node{
				testNode("busy", true, 4, 3.6),
				func() *Node {
					n := &Node{cfg: Config{Identifier: "fresh", Host: "localhost", Port: 2334}}
					n.setConnected(true)
					return n
				}(),
			},
			want: "fresh",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRegistry(tt.nodes...)
			conn, err := r.LeastLoaded()
			if err != tt.wantErr {
				t.Fatalf("LeastLoaded() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if got := conn.Node().Key(); got != tt.want {
				t.Errorf("LeastLoaded() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLoadRatio(t *testing.T) {
	tests := []struct {
		name  string
		stats model.NodeStats
		want  float64
	}{
		{"no stats", model.NodeStats{}, 0},
		{"zero cores", model.NodeStats{CPU: model.CPUStats{SystemLoad: 0.5}}, 0},
		{"half of one core", model.NodeStats{CPU: model.CPUStats{Cores: 1, SystemLoad: 0.5}}, 50},
		{"quarter of four cores", model.NodeStats{CPU: model.CPUStats{Cores: 4, SystemLoad: 1.0}}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stats.LoadRatio(); got != tt.want {
				t.Errorf("LoadRatio() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfigKey(t *testing.T) {
	withID := Config{Identifier: "main", Host: "10.0.0.1", Port: 2333}
	if got := withID.Key(); got != "main" {
		t.Errorf("Key() = %s, want main", got)
	}
	noID := Config{Host: "10.0.0.1", Port: 2333}
	if got := noID.Key(); got != "10.0.0.1:2333" {
		t.Errorf("Key() = %s, want 10.0.0.1:2333", got)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Host != "localhost" || cfg.Port != 2333 {
		t.Errorf("defaults = %s:%d, want localhost:2333", cfg.Host, cfg.Port)
	}
	if cfg.Password != "youshallnotpass" {
		t.Errorf("default password = %s", cfg.Password)
	}
	if cfg.ResumeTimeout != 60 {
		t.Errorf("default resume timeout = %d, want 60", cfg.ResumeTimeout)
	}
}

func TestConfigURLs(t *testing.T) {
	plain := Config{Host: "node1", Port: 2333}
	if got := plain.WSURL(); got != "ws://node1:2333/" {
		t.Errorf("WSURL() = %s", got)
	}
	secure := Config{Host: "node1", Port: 443, Secure: true}
	if got := secure.WSURL(); got != "wss://node1:443/" {
		t.Errorf("secure WSURL() = %s", got)
	}
	if got := secure.RESTURL(); got != "https://node1:443" {
		t.Errorf("secure RESTURL() = %s", got)
	}
}

func TestRegisterIdempotent(t *testing.T) {
	r := NewRegistry(nopDispatcher{}, "user", 1)
	first := r.Register(Config{Identifier: "main", Host: "127.0.0.1", Port: 21333})
	second := r.Register(Config{Identifier: "main", Host: "127.0.0.1", Port: 21333})
	if first != second {
		t.Error("duplicate Register returned a new connection")
	}
	if len(r.All()) != 1 {
		t.Errorf("All() = %d conns, want 1", len(r.All()))
	}
	r.Shutdown()
}

func TestClosePolicy(t *testing.T) {
	tests := []struct {
		name          string
		code          int
		wantReconnect bool
	}{
		{"intentional close", websocket.CloseNormalClosure, false},
		{"abnormal close", websocket.CloseAbnormalClosure, true},
		{"voice session close", 4015, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Node{cfg: Config{Identifier: "x", ReconnectDelay: time.Hour}}
			c := newConn(n, nopDispatcher{}, "", 1)
			ws := &websocket.Conn{}
			c.mu.Lock()
			c.ws = ws
			c.state = StateConnected
			c.mu.Unlock()
			n.setConnected(true)

			c.handleClose(ws, &websocket.CloseError{Code: tt.code, Text: "gone"})

			c.mu.Lock()
			scheduled := c.reconnect != nil
			state := c.state
			c.mu.Unlock()
			if scheduled != tt.wantReconnect {
				t.Errorf("reconnect scheduled = %v, want %v", scheduled, tt.wantReconnect)
			}
			if tt.wantReconnect && state != StateReconnecting {
				t.Errorf("state = %v, want StateReconnecting", state)
			}
			if !tt.wantReconnect && state != StateDisconnected {
				t.Errorf("state = %v, want StateDisconnected", state)
			}
			if n.Connected() {
				t.Error("node still reported connected after close")
			}
			c.Shutdown()
		})
	}
}

func TestCloseIgnoresStaleSocket(t *testing.T) {
	n := &Node{cfg: Config{Identifier: "x", ReconnectDelay: time.Hour}}
	c := newConn(n, nopDispatcher{}, "", 1)
	current := &websocket.Conn{}
	c.mu.Lock()
	c.ws = current
	c.state = StateConnected
	c.mu.Unlock()
	n.setConnected(true)

	// 旧 socket 的关闭通知不得影响新连接
	stale := &websocket.Conn{}
	c.handleClose(stale, &websocket.CloseError{Code: websocket.CloseAbnormalClosure, Text: "old"})

	if c.State() != StateConnected || !n.Connected() {
		t.Error("stale close tore down the live connection")
	}
}

func TestSendBuffersWhileDisconnected(t *testing.T) {
	n := testNode("main", false, 1, 0)
	c := newConn(n, nopDispatcher{}, "user", 1)

	for i := 0; i < 3; i++ {
		if err := c.Send(model.StopPayload{Op: model.OpStop, GuildID: "g1"}); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	if got := c.Buffered(); got != 3 {
		t.Errorf("Buffered() = %d, want 3", got)
	}

	c.Shutdown()
	if c.State() != StateDisconnected {
		t.Errorf("State() after Shutdown = %v", c.State())
	}
}
