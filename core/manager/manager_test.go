package manager

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"springlink/core/node"
	"springlink/model"

	"github.com/gorilla/websocket"
)

// fakeBackend 扮演一个远端音频节点：接受控制连接并记录收到的指令
type fakeBackend struct {
	srv      *httptest.Server
	messages chan []byte
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{messages: make(chan []byte, 32)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			b.messages <- data
		}
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) nodeConfig(t *testing.T) node.Config {
	t.Helper()
	u, err := url.Parse(b.srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return node.Config{Identifier: "fake", Host: u.Hostname(), Port: port, Password: "secret"}
}

// next 带超时地取一条后端收到的指令
func (b *fakeBackend) next(t *testing.T) map[string]interface{} {
	t.Helper()
	select {
	case data := <-b.messages:
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("backend received malformed payload: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for backend payload")
		return nil
	}
}

type intentRecorder struct {
	mu      sync.Mutex
	intents []model.VoiceIntent
}

func (r *intentRecorder) send(intent model.VoiceIntent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intents = append(r.intents, intent)
}

func (r *intentRecorder) all() []model.VoiceIntent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.VoiceIntent(nil), r.intents...)
}

func newTestManager(t *testing.T) (*Manager, *fakeBackend, *intentRecorder) {
	t.Helper()
	backend := newFakeBackend(t)
	rec := &intentRecorder{}
	m := New(Options{
		UserID: "bot-user",
		Shards: 1,
		SendWS: rec.send,
	}, []node.Config{backend.nodeConfig(t)})
	t.Cleanup(m.Shutdown)

	// 等待控制连接建立
	deadline := time.Now().Add(2 * time.Second)
	for {
		conns := m.Registry().All()
		if len(conns) == 1 && conns[0].Node().Connected() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("node never connected")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return m, backend, rec
}

func TestCreateIsIdempotent(t *testing.T) {
	m, _, rec := newTestManager(t)

	opts := CreateOptions{GuildID: "g1", VoiceChannelID: "chan-1", TextChannelID: "text-1"}
	first, err := m.Create(opts)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	second, err := m.Create(opts)
	if err != nil {
		t.Fatalf("second Create() error = %v", err)
	}
	if first != second {
		t.Error("duplicate Create returned a different player")
	}
	if len(m.Players()) != 1 {
		t.Errorf("Players() = %d, want 1", len(m.Players()))
	}

	// 仅首次创建请求语音在场
	intents := rec.all()
	if len(intents) != 1 {
		t.Fatalf("voice intents = %d, want 1", len(intents))
	}
	if intents[0].Op != 4 || intents[0].Data.GuildID != "g1" {
		t.Errorf("intent = %+v", intents[0])
	}
	if intents[0].Data.ChannelID == nil || *intents[0].Data.ChannelID != "chan-1" {
		t.Errorf("intent channel = %v, want chan-1", intents[0].Data.ChannelID)
	}
}

func TestCreateWithoutNodes(t *testing.T) {
	m := New(Options{UserID: "bot-user"}, nil)
	defer m.Shutdown()

	if _, err := m.Create(CreateOptions{GuildID: "g1", VoiceChannelID: "c1"}); err != node.ErrNoNodesAvailable {
		t.Errorf("Create() error = %v, want ErrNoNodesAvailable", err)
	}
}

func TestVoiceHandshakeForwardsToBackend(t *testing.T) {
	m, backend, _ := newTestManager(t)
	if _, err := m.Create(CreateOptions{GuildID: "g1", VoiceChannelID: "chan-1"}); err != nil {
		t.Fatal(err)
	}

	state, _ := json.Marshal(model.VoiceStateUpdate{
		GuildID: "g1", UserID: "bot-user", SessionID: "sess-1", ChannelID: "chan-1",
	})
	m.HandleGatewayPacket(model.GatewayPacket{T: "VOICE_STATE_UPDATE", D: state})

	server, _ := json.Marshal(model.VoiceServerUpdate{
		GuildID: "g1", Token: "tok", Endpoint: "media.example.com",
	})
	m.HandleGatewayPacket(model.GatewayPacket{T: "VOICE_SERVER_UPDATE", D: server})

	msg := backend.next(t)
	if msg["op"] != model.OpVoiceUpdate {
		t.Fatalf("backend op = %v, want %s", msg["op"], model.OpVoiceUpdate)
	}
	if msg["guildId"] != "g1" || msg["sessionId"] != "sess-1" {
		t.Errorf("voice update = %v", msg)
	}
}

func TestIgnoresOtherUsersVoiceState(t *testing.T) {
	m, backend, _ := newTestManager(t)
	if _, err := m.Create(CreateOptions{GuildID: "g1", VoiceChannelID: "chan-1"}); err != nil {
		t.Fatal(err)
	}

	server, _ := json.Marshal(model.VoiceServerUpdate{GuildID: "g1", Token: "tok", Endpoint: "e"})
	m.HandleGatewayPacket(model.GatewayPacket{T: "VOICE_SERVER_UPDATE", D: server})

	// 别的用户进出语音频道不构成宿主的握手
	state, _ := json.Marshal(model.VoiceStateUpdate{
		GuildID: "g1", UserID: "someone-else", SessionID: "sess-x", ChannelID: "chan-1",
	})
	m.HandleGatewayPacket(model.GatewayPacket{T: "VOICE_STATE_UPDATE", D: state})

	select {
	case data := <-backend.messages:
		t.Errorf("backend unexpectedly received %s", data)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestEnqueueRequiresPlayer(t *testing.T) {
	m, _, _ := newTestManager(t)
	err := m.Enqueue(context.Background(), "missing", []model.Track{{Encoded: "t1"}})
	if err != ErrNoPlayer {
		t.Errorf("Enqueue() error = %v, want ErrNoPlayer", err)
	}
}

func TestEventBusDropsWhenFull(t *testing.T) {
	m, _, _ := newTestManager(t)

	// 总线无人消费时发布不得阻塞
	for i := 0; i < 300; i++ {
		m.publish(newEvent(EventRaw))
	}
	if got := len(m.events); got != cap(m.events) {
		t.Errorf("bus backlog = %d, want full at %d", got, cap(m.events))
	}
}
