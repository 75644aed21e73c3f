package player

import (
	"sync"

	"springlink/model"
)

// Queue 每个租户一份的有序曲目队列。位置 0 即当前曲目。
// 循环操作只会重排曲目，绝不丢弃。
type Queue struct {
	mu     sync.RWMutex
	tracks []model.Track
}

// NewQueue 创建空队列
func NewQueue() *Queue {
	return &Queue{}
}

// Add 追加单曲
func (q *Queue) Add(t model.Track) {
	q.mu.Lock()
	q.tracks = append(q.tracks, t)
	q.mu.Unlock()
}

// AddBatch 批量追加（例如整个播放列表）
func (q *Queue) AddBatch(tracks []model.Track) {
	q.mu.Lock()
	q.tracks = append(q.tracks, tracks...)
	q.mu.Unlock()
}

// First 查看队首曲目，不移除
func (q *Queue) First() (model.Track, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if len(q.tracks) == 0 {
		return model.Track{}, false
	}
	return q.tracks[0], true
}

// Shift 移除并返回队首曲目
func (q *Queue) Shift() (model.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tracks) == 0 {
		return model.Track{}, false
	}
	head := q.tracks[0]
	q.tracks = q.tracks[1:]
	return head, true
}

// Rotate 将队首移到队尾（队列循环模式）
func (q *Queue) Rotate() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tracks) < 2 {
		return
	}
	head := q.tracks[0]
	q.tracks = append(q.tracks[1:], head)
}

// Splice 从 start 起移除 count 首，返回实际移除数
func (q *Queue) Splice(start, count int) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if start < 0 || start >= len(q.tracks) || count <= 0 {
		return 0
	}
	end := start + count
	if end > len(q.tracks) {
		end = len(q.tracks)
	}
	removed := end - start
	q.tracks = append(q.tracks[:start], q.tracks[end:]...)
	return removed
}

// Size 队列长度
func (q *Queue) Size() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tracks)
}

// Empty 队列是否为空
func (q *Queue) Empty() bool {
	return q.Size() == 0
}

// Tracks 返回队列快照
func (q *Queue) Tracks() []model.Track {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]model.Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}

// Clear 清空队列
func (q *Queue) Clear() {
	q.mu.Lock()
	q.tracks = nil
	q.mu.Unlock()
}
