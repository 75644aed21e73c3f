package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"springlink/logger"

	"github.com/fsnotify/fsnotify"
)

// NodeEntry 节点静态配置文件中的一项
type NodeEntry struct {
	Identifier     string `json:"identifier,omitempty"`
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Password       string `json:"password"`
	Secure         bool   `json:"secure"`
	ResumeKey      string `json:"resumeKey,omitempty"`
	ResumeTimeout  int    `json:"resumeTimeout,omitempty"`  // 秒
	ReconnectDelay int    `json:"reconnectDelay,omitempty"` // 秒
}

// LoadNodes 读取节点配置文件
func LoadNodes(path string) ([]NodeEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read nodes file: %w", err)
	}
	var entries []NodeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse nodes file: %w", err)
	}
	return entries, nil
}

// WatchNodes 监听节点配置文件变更，每次可解析的写入都回调一次。
// 编辑器常用 rename+create 落盘，所以监听所在目录而不是文件本身。
func WatchNodes(path string, onChange func([]NodeEntry)) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Clean(path)
	go func() {
		// 去抖：连续写入只取最后一次，安静 200ms 之后才重新加载，
		// 避免截断后未写完的半个文件被读进来。
		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if !debounce.Stop() {
					select {
					case <-debounce.C:
					default:
					}
				}
				debounce.Reset(200 * time.Millisecond)

			case <-debounce.C:
				entries, err := LoadNodes(path)
				if err != nil {
					logger.Warn("nodes file reload failed",
						logger.String("path", path),
						logger.ErrorField(err))
					continue
				}
				logger.Info("nodes file reloaded",
					logger.String("path", path),
					logger.Int("entries", len(entries)))
				onChange(entries)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("nodes file watcher error", logger.ErrorField(err))
			}
		}
	}()

	return watcher, nil
}
