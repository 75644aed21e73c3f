package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"springlink/model"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	return ws
}

func TestIntentBridgePingsIdleHost(t *testing.T) {
	// 宿主长时间没有网关包也必须收到心跳，否则读超时会掐掉它
	bridge := NewIntentBridge()
	stop := make(chan struct{})
	defer close(stop)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		bridge.pingHost(ws, 20*time.Millisecond, stop)
	}))
	defer srv.Close()

	client := dialWS(t, srv)
	defer client.Close()

	pings := make(chan struct{}, 4)
	client.SetPingHandler(func(string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return nil
	})
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pings:
	case <-time.After(2 * time.Second):
		t.Fatal("idle host received no keepalive ping")
	}
}

func TestIntentBridgeRoundTrip(t *testing.T) {
	bridge := NewIntentBridge()
	packets := make(chan model.GatewayPacket, 1)
	bridge.SetPacketHandler(func(p model.GatewayPacket) {
		packets <- p
	})

	srv := httptest.NewServer(http.HandlerFunc(bridge.HandleIntents))
	defer srv.Close()

	client := dialWS(t, srv)
	defer client.Close()

	// 入方向：宿主发来的网关包转给回调
	if err := client.WriteJSON(model.GatewayPacket{T: "VOICE_STATE_UPDATE", D: json.RawMessage(`{}`)}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	select {
	case p := <-packets:
		if p.T != "VOICE_STATE_UPDATE" {
			t.Errorf("packet t = %q, want VOICE_STATE_UPDATE", p.T)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("gateway packet not forwarded")
	}

	// 等服务端登记完宿主连接
	deadline := time.Now().Add(2 * time.Second)
	for {
		bridge.mu.Lock()
		ready := bridge.host != nil
		bridge.mu.Unlock()
		if ready {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("host connection never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// 出方向：语音在场请求送达宿主
	channel := "voice-1"
	bridge.Send(model.VoiceIntent{Op: 4, Data: model.VoiceIntentBody{GuildID: "g1", ChannelID: &channel}})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got model.VoiceIntent
	if err := client.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if got.Op != 4 || got.Data.GuildID != "g1" {
		t.Errorf("intent = %+v", got)
	}
	if got.Data.ChannelID == nil || *got.Data.ChannelID != "voice-1" {
		t.Errorf("channel = %v, want voice-1", got.Data.ChannelID)
	}
}
