package model

// TrackInfo 后端解码出的曲目元数据
type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"` // 时长（毫秒）
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
}

// Track represents a playable track resolved from a node's catalog.
// The Encoded token is opaque to this client; only the node can decode it.
// Immutable once constructed from a catalog response.
type Track struct {
	Encoded string    `json:"track"`
	Info    TrackInfo `json:"info"`
}

// PlaylistInfo 播放列表元数据（仅 PlaylistLoaded 时有值）
type PlaylistInfo struct {
	Name          string `json:"name"`
	SelectedTrack int    `json:"selectedTrack"`
}

// LoadType classifies a catalog resolve response.
type LoadType string

const (
	LoadTypeNoMatches      LoadType = "NO_MATCHES"
	LoadTypeTrackLoaded    LoadType = "TRACK_LOADED"
	LoadTypePlaylistLoaded LoadType = "PLAYLIST_LOADED"
	LoadTypeSearchResult   LoadType = "SEARCH_RESULT"
	LoadTypeLoadFailed     LoadType = "LOAD_FAILED"
)

// LoadResult 是 loadtracks 请求的完整响应
type LoadResult struct {
	LoadType     LoadType      `json:"loadType"`
	PlaylistInfo *PlaylistInfo `json:"playlistInfo,omitempty"`
	Tracks       []Track       `json:"tracks"`
}
