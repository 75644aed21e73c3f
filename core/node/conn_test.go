package node

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"springlink/model"

	"github.com/gorilla/websocket"
)

// fakeBackend 收下控制连接上的全部出站指令供断言
type fakeBackend struct {
	srv      *httptest.Server
	messages chan []byte
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{messages: make(chan []byte, 32)}
	up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
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

func (b *fakeBackend) config(t *testing.T) Config {
	t.Helper()
	u, err := url.Parse(b.srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatal(err)
	}
	return Config{Identifier: "fake", Host: u.Hostname(), Port: port, Password: "pw"}
}

func (b *fakeBackend) next(t *testing.T) map[string]interface{} {
	t.Helper()
	select {
	case data := <-b.messages:
		var msg map[string]interface{}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("backend received no message")
		return nil
	}
}

func TestConnectFlushesBufferAfterResumeConfig(t *testing.T) {
	backend := newFakeBackend(t)
	cfg := backend.config(t)
	cfg.ResumeKey = "rk"
	cfg.ResumeTimeout = 90
	cfg.ReconnectDelay = time.Hour

	n := &Node{cfg: cfg.withDefaults()}
	c := newConn(n, nopDispatcher{}, "bot-user", 1)
	t.Cleanup(c.Shutdown)

	// 断线期间的指令进入缓冲
	for _, guild := range []string{"g1", "g2", "g3"} {
		if err := c.Send(model.StopPayload{Op: model.OpStop, GuildID: guild}); err != nil {
			t.Fatalf("Send() error = %v", err)
		}
	}
	if got := c.Buffered(); got != 3 {
		t.Fatalf("Buffered() = %d, want 3", got)
	}

	c.Connect()

	// 恢复配置必须先于积压指令到达
	first := backend.next(t)
	if first["op"] != model.OpConfigureResuming {
		t.Fatalf("first op = %v, want %s", first["op"], model.OpConfigureResuming)
	}
	if first["key"] != "rk" || first["timeout"] != float64(90) {
		t.Errorf("resume config = %v", first)
	}

	// 积压指令按先进先出冲刷
	for _, want := range []string{"g1", "g2", "g3"} {
		msg := backend.next(t)
		if msg["op"] != model.OpStop || msg["guildId"] != want {
			t.Errorf("flushed message = %v, want stop for %s", msg, want)
		}
	}
	if got := c.Buffered(); got != 0 {
		t.Errorf("Buffered() after connect = %d, want 0", got)
	}
}
