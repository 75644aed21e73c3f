package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"springlink/core/manager"
	"springlink/logger"
	"springlink/model"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // 网关部署在内网，跨域控制交给反向代理
	},
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

// EventHub 把管理器事件总线扇出给所有观察者连接
type EventHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan []byte
}

// NewEventHub 创建并启动事件泵
func NewEventHub(events <-chan manager.Event) *EventHub {
	h := &EventHub{clients: make(map[*websocket.Conn]chan []byte)}
	go h.pump(events)
	return h
}

func (h *EventHub) pump(events <-chan manager.Event) {
	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			logger.Warn("事件序列化失败", logger.ErrorField(err))
			continue
		}
		h.mu.Lock()
		for ws, send := range h.clients {
			select {
			case send <- data:
			default:
				// 慢客户端直接踢掉，不能拖住总线
				close(send)
				delete(h.clients, ws)
				ws.Close()
			}
		}
		h.mu.Unlock()
	}
}

// HandleEvents GET /ws/events 观察者端点
func (h *EventHub) HandleEvents(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("事件连接升级失败", logger.ErrorField(err))
		return
	}

	send := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ws] = send
	h.mu.Unlock()
	logger.Info("事件观察者已接入", logger.String("remote", r.RemoteAddr))

	go h.writePump(ws, send)
	h.readPump(ws, send)
}

func (h *EventHub) writePump(ws *websocket.Conn, send chan []byte) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case data, ok := <-send:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只负责消费控制帧并感知断开
func (h *EventHub) readPump(ws *websocket.Conn, send chan []byte) {
	defer func() {
		h.mu.Lock()
		if _, ok := h.clients[ws]; ok {
			close(send)
			delete(h.clients, ws)
		}
		h.mu.Unlock()
		ws.Close()
	}()

	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

// IntentBridge 与宿主应用之间的双向通道：
// 出方向投递 op:4 语音在场请求，入方向接收平台网关原始包。
type IntentBridge struct {
	mu       sync.Mutex
	writeMu  sync.Mutex
	host     *websocket.Conn
	onPacket func(model.GatewayPacket)
}

func NewIntentBridge() *IntentBridge {
	return &IntentBridge{}
}

// SetPacketHandler 注册入方向回调，须在服务启动前调用
func (b *IntentBridge) SetPacketHandler(fn func(model.GatewayPacket)) {
	b.onPacket = fn
}

// Send 实现 manager.SendWSFunc。没有宿主连接时请求被丢弃并记日志。
func (b *IntentBridge) Send(intent model.VoiceIntent) {
	b.mu.Lock()
	host := b.host
	b.mu.Unlock()
	if host == nil {
		logger.Warn("宿主未连接，语音请求被丢弃",
			logger.String("guild", intent.Data.GuildID))
		return
	}

	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	host.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := host.WriteJSON(intent); err != nil {
		logger.Error("语音请求投递失败",
			logger.String("guild", intent.Data.GuildID),
			logger.ErrorField(err))
	}
}

// pingHost 周期性向宿主发心跳，与 Send 共用写锁避免并发写同一连接
func (b *IntentBridge) pingHost(ws *websocket.Conn, period time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			b.writeMu.Lock()
			ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
			err := ws.WriteMessage(websocket.PingMessage, nil)
			b.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-stop:
			return
		}
	}
}

// HandleIntents GET /ws/intents 宿主应用端点。后连的会替换先连的。
func (b *IntentBridge) HandleIntents(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("宿主连接升级失败", logger.ErrorField(err))
		return
	}

	b.mu.Lock()
	if b.host != nil {
		b.host.Close()
	}
	b.host = ws
	b.mu.Unlock()
	logger.Info("宿主应用已接入", logger.String("remote", r.RemoteAddr))

	// 网关包本来就稀疏，得主动 ping 喂活读超时，不然安静的宿主会被掐掉
	stop := make(chan struct{})
	go b.pingHost(ws, wsPingPeriod, stop)

	defer func() {
		close(stop)
		b.mu.Lock()
		if b.host == ws {
			b.host = nil
		}
		b.mu.Unlock()
		ws.Close()
		logger.Info("宿主应用已断开", logger.String("remote", r.RemoteAddr))
	}()

	ws.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var packet model.GatewayPacket
		if err := json.Unmarshal(data, &packet); err != nil {
			logger.Warn("宿主消息解析失败", logger.ErrorField(err))
			continue
		}
		if b.onPacket != nil {
			b.onPacket(packet)
		}
	}
}
