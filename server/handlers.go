package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"springlink/core/auth"
	"springlink/core/manager"
	"springlink/core/player"
	"springlink/logger"
	"springlink/model"
	"springlink/repository"

	"github.com/gorilla/mux"
)

// APIHandler 控制网关的所有请求处理器
type APIHandler struct {
	mgr     *manager.Manager
	history repository.HistoryRepository // 可为 nil
}

// NewAPIHandler 创建处理器
func NewAPIHandler(mgr *manager.Manager, history repository.HistoryRepository) *APIHandler {
	return &APIHandler{mgr: mgr, history: history}
}

// AuthMiddleware 校验 Bearer 令牌。未配置密钥时直接放行。
func (h *APIHandler) AuthMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !auth.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header is required", http.StatusUnauthorized)
			return
		}
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}
		claims, err := auth.ParseToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

type subjectKey struct{}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("response encode failed", logger.ErrorField(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// guildPlayer 从路由变量取会话
func (h *APIHandler) guildPlayer(w http.ResponseWriter, r *http.Request) (*player.Player, string, bool) {
	guildID := mux.Vars(r)["guild_id"]
	p, ok := h.mgr.Get(guildID)
	if !ok {
		writeError(w, http.StatusNotFound, manager.ErrNoPlayer)
		return nil, guildID, false
	}
	return p, guildID, true
}

// playerView 会话状态的对外表示
type playerView struct {
	GuildID      string        `json:"guildId"`
	Node         string        `json:"node"`
	State        string        `json:"state"`
	Loop         string        `json:"loop"`
	Volume       int           `json:"volume"`
	Position     int64         `json:"position"`
	VoiceChannel string        `json:"voiceChannel,omitempty"`
	TextChannel  string        `json:"textChannel,omitempty"`
	Current      *model.Track  `json:"current,omitempty"`
	Queue        []model.Track `json:"queue"`
}

func viewOf(p *player.Player) playerView {
	states := map[player.PlaybackState]string{
		player.StateIdle:      "idle",
		player.StatePlaying:   "playing",
		player.StatePaused:    "paused",
		player.StateDestroyed: "destroyed",
	}
	loops := map[player.LoopMode]string{
		player.LoopNone:  "none",
		player.LoopTrack: "track",
		player.LoopQueue: "queue",
	}
	return playerView{
		GuildID:      p.GuildID(),
		Node:         p.Node().Node().Key(),
		State:        states[p.State()],
		Loop:         loops[p.Loop()],
		Volume:       p.Volume(),
		Position:     p.Position(),
		VoiceChannel: p.VoiceChannel(),
		TextChannel:  p.TextChannel(),
		Current:      p.Current(),
		Queue:        p.Queue().Tracks(),
	}
}

// CreatePlayerHandler 为租户创建会话（幂等）
func (h *APIHandler) CreatePlayerHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GuildID        string `json:"guildId"`
		VoiceChannelID string `json:"voiceChannelId"`
		TextChannelID  string `json:"textChannelId"`
		SelfMute       bool   `json:"selfMute"`
		SelfDeaf       bool   `json:"selfDeaf"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GuildID == "" || req.VoiceChannelID == "" {
		http.Error(w, "guildId and voiceChannelId are required", http.StatusBadRequest)
		return
	}

	p, err := h.mgr.Create(manager.CreateOptions{
		GuildID:        req.GuildID,
		VoiceChannelID: req.VoiceChannelID,
		TextChannelID:  req.TextChannelID,
		SelfMute:       req.SelfMute,
		SelfDeaf:       req.SelfDeaf,
	})
	if err != nil {
		// 没有可用节点属于容量失败
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// GetPlayerHandler 查询会话状态
func (h *APIHandler) GetPlayerHandler(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.guildPlayer(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// ResolveHandler 解析查询并可选入队
func (h *APIHandler) ResolveHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "query parameter q is required", http.StatusBadRequest)
		return
	}
	source := r.URL.Query().Get("source")

	result, err := h.mgr.Resolve(r.Context(), query, source)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// DecodeHandler 解码曲目令牌
func (h *APIHandler) DecodeHandler(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("track")
	if token == "" {
		http.Error(w, "query parameter track is required", http.StatusBadRequest)
		return
	}
	info, err := h.mgr.Decode(r.Context(), token)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if info == nil {
		http.Error(w, "track could not be decoded", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// EnqueueHandler 解析查询、入队并在空闲时开播
func (h *APIHandler) EnqueueHandler(w http.ResponseWriter, r *http.Request) {
	p, guildID, ok := h.guildPlayer(w, r)
	if !ok {
		return
	}

	var req struct {
		Query  string `json:"query"`
		Source string `json:"source,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	result, err := h.mgr.Resolve(r.Context(), req.Query, req.Source)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	if result.LoadType == model.LoadTypeNoMatches || len(result.Tracks) == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"queued": 0, "loadType": result.LoadType})
		return
	}

	// 播放列表整体入队，其余取首个匹配
	tracks := result.Tracks
	if result.LoadType != model.LoadTypePlaylistLoaded {
		tracks = tracks[:1]
	}
	if err := h.mgr.Enqueue(r.Context(), guildID, tracks); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	if p.State() == player.StateIdle {
		if _, err := p.Play(nil); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"queued":   len(tracks),
		"loadType": result.LoadType,
		"player":   viewOf(p),
	})
}

// PlayHandler 开始播放队首
func (h *APIHandler) PlayHandler(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.guildPlayer(w, r)
	if !ok {
		return
	}
	track, err := p.Play(nil)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	if track == nil {
		http.Error(w, "nothing to play", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// PauseHandler 暂停/恢复
func (h *APIHandler) PauseHandler(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.guildPlayer(w, r)
	if !ok {
		return
	}
	var req struct {
		Pause *bool `json:"pause"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pause == nil {
		// 布尔参数缺失或类型不对都是校验错误
		http.Error(w, "pause must be a boolean", http.StatusBadRequest)
		return
	}
	if err := p.Pause(*req.Pause); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// StopHandler 停止当前曲目，可携带跳过数
func (h *APIHandler) StopHandler(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.guildPlayer(w, r)
	if !ok {
		return
	}
	var req struct {
		Skip int `json:"skip,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)
			return
		}
	}
	if err := p.Stop(req.Skip); err != nil {
		status := http.StatusConflict
		if errors.Is(err, player.ErrSkipOutOfRange) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// SeekHandler 跳转
func (h *APIHandler) SeekHandler(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.guildPlayer(w, r)
	if !ok {
		return
	}
	var req struct {
		Position *int64 `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Position == nil {
		http.Error(w, "position must be a number", http.StatusBadRequest)
		return
	}
	if err := p.Seek(*req.Position); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// VolumeHandler 音量
func (h *APIHandler) VolumeHandler(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.guildPlayer(w, r)
	if !ok {
		return
	}
	var req struct {
		Volume *int `json:"volume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Volume == nil {
		http.Error(w, "volume must be a number", http.StatusBadRequest)
		return
	}
	if err := p.SetVolume(*req.Volume); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// LoopHandler 循环模式：none / track / queue
func (h *APIHandler) LoopHandler(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.guildPlayer(w, r)
	if !ok {
		return
	}
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	var err error
	switch req.Mode {
	case "track":
		err = p.SetTrackRepeat()
	case "queue":
		err = p.SetQueueRepeat()
	case "none":
		err = p.DisableRepeat()
	default:
		http.Error(w, "mode must be none, track or queue", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// EqualizerHandler 设置/清除均衡器。空的 bands 数组表示清零。
func (h *APIHandler) EqualizerHandler(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.guildPlayer(w, r)
	if !ok {
		return
	}
	var req struct {
		Bands []model.EqualizerBand `json:"bands"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	var err error
	if len(req.Bands) == 0 {
		err = p.ClearEQ()
	} else {
		err = p.SetEQ(req.Bands...)
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// FiltersHandler 按名字应用单个滤镜，零值字段回落到后端默认
func (h *APIHandler) FiltersHandler(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.guildPlayer(w, r)
	if !ok {
		return
	}
	name := mux.Vars(r)["filter"]

	var err error
	switch name {
	case "karaoke":
		var f player.Karaoke
		if err = json.NewDecoder(r.Body).Decode(&f); err == nil {
			err = p.SetKaraoke(f)
		}
	case "timescale":
		var f player.Timescale
		if err = json.NewDecoder(r.Body).Decode(&f); err == nil {
			err = p.SetTimeScale(f)
		}
	case "tremolo":
		var f player.Tremolo
		if err = json.NewDecoder(r.Body).Decode(&f); err == nil {
			err = p.SetTremolo(f)
		}
	case "vibrato":
		var f player.Vibrato
		if err = json.NewDecoder(r.Body).Decode(&f); err == nil {
			err = p.SetVibrato(f)
		}
	case "rotation":
		var f player.Rotation
		if err = json.NewDecoder(r.Body).Decode(&f); err == nil {
			err = p.SetRotation(f)
		}
	case "distortion":
		var f player.Distortion
		if err = json.NewDecoder(r.Body).Decode(&f); err == nil {
			err = p.SetDistortion(f)
		}
	case "channelmix":
		var f player.ChannelMix
		if err = json.NewDecoder(r.Body).Decode(&f); err == nil {
			err = p.SetChannelMix(f)
		}
	case "lowpass":
		var f player.LowPass
		if err = json.NewDecoder(r.Body).Decode(&f); err == nil {
			err = p.SetLowPass(f)
		}
	default:
		http.Error(w, "unknown filter: "+name, http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p))
}

// DestroyHandler 销毁会话
func (h *APIHandler) DestroyHandler(w http.ResponseWriter, r *http.Request) {
	p, guildID, ok := h.guildPlayer(w, r)
	if !ok {
		return
	}
	if err := p.Destroy(); err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"destroyed": guildID})
}

// NodesHandler 节点列表及健康统计
func (h *APIHandler) NodesHandler(w http.ResponseWriter, r *http.Request) {
	type nodeView struct {
		Key       string          `json:"key"`
		Host      string          `json:"host"`
		Port      int             `json:"port"`
		Secure    bool            `json:"secure"`
		Connected bool            `json:"connected"`
		Load      float64         `json:"load"`
		Buffered  int             `json:"buffered"`
		Stats     model.NodeStats `json:"stats"`
	}

	conns := h.mgr.Registry().All()
	out := make([]nodeView, 0, len(conns))
	for _, conn := range conns {
		n := conn.Node()
		cfg := n.Config()
		out = append(out, nodeView{
			Key:       n.Key(),
			Host:      cfg.Host,
			Port:      cfg.Port,
			Secure:    cfg.Secure,
			Connected: n.Connected(),
			Load:      n.LoadRatio(),
			Buffered:  conn.Buffered(),
			Stats:     n.Stats(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HistoryHandler 播放历史
func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		http.Error(w, "play history is not enabled", http.StatusNotImplemented)
		return
	}
	guildID := mux.Vars(r)["guild_id"]
	records, err := h.history.RecentByGuild(guildID, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// GatewayPacketHandler 宿主应用转发来的平台网关原始包
func (h *APIHandler) GatewayPacketHandler(w http.ResponseWriter, r *http.Request) {
	var packet model.GatewayPacket
	if err := json.NewDecoder(r.Body).Decode(&packet); err != nil {
		http.Error(w, "malformed gateway packet", http.StatusBadRequest)
		return
	}
	h.mgr.HandleGatewayPacket(packet)
	w.WriteHeader(http.StatusAccepted)
}
