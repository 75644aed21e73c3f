package repository

import (
	"time"

	"springlink/logger"
	"springlink/model"

	"gorm.io/gorm"
)

// PlayRecord 一条播放历史
type PlayRecord struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	GuildID  string    `gorm:"index;size:64" json:"guildId"`
	Title    string    `gorm:"size:255" json:"title"`
	Author   string    `gorm:"size:255" json:"author"`
	URI      string    `gorm:"size:512" json:"uri"`
	Length   int64     `json:"length"` // 毫秒
	Reason   string    `gorm:"size:32" json:"reason"`
	PlayedAt time.Time `gorm:"index" json:"playedAt"`
}

// TableName 指定表名
func (PlayRecord) TableName() string {
	return "play_records"
}

// HistoryRepository 播放历史存储接口
type HistoryRepository interface {
	RecordTrackEnd(guildID string, track *model.Track, reason string)
	RecentByGuild(guildID string, limit int) ([]PlayRecord, error)
}

type gormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository 创建基于 GORM 的播放历史存储并迁移表结构
func NewGormHistoryRepository(db *gorm.DB) (HistoryRepository, error) {
	if err := db.AutoMigrate(&PlayRecord{}); err != nil {
		return nil, err
	}
	return &gormHistoryRepository{db: db}, nil
}

// RecordTrackEnd 曲目结束时落一条历史。失败只记日志，
// 不影响播放控制路径。
func (r *gormHistoryRepository) RecordTrackEnd(guildID string, track *model.Track, reason string) {
	if track == nil {
		return
	}
	record := PlayRecord{
		GuildID:  guildID,
		Title:    track.Info.Title,
		Author:   track.Info.Author,
		URI:      track.Info.URI,
		Length:   track.Info.Length,
		Reason:   reason,
		PlayedAt: time.Now(),
	}
	if err := r.db.Create(&record).Error; err != nil {
		logger.Warn("failed to record play history",
			logger.String("guild", guildID),
			logger.ErrorField(err))
	}
}

// RecentByGuild 按时间倒序返回某租户最近的播放历史
func (r *gormHistoryRepository) RecentByGuild(guildID string, limit int) ([]PlayRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var records []PlayRecord
	err := r.db.Where("guild_id = ?", guildID).
		Order("played_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}
