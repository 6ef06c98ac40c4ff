package watcher

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/docschat/backend/internal/infrastructure/log"
)

// ChangeKind 内容变更类型
type ChangeKind string

const (
	// ChangeModified 文档新增或内容变更
	ChangeModified ChangeKind = "modified"
	// ChangeRemoved 文档被删除或移走
	ChangeRemoved ChangeKind = "removed"
)

// ChangeHandler 内容变更回调
type ChangeHandler func(path string, kind ChangeKind)

// WatchConfig ContentWatcher 配置
type WatchConfig struct {
	// Roots 监听的内容根目录
	Roots []string
	// Extensions 关注的文件扩展名（小写，含点）
	Extensions []string
	// DenyDirs 跳过的目录名
	DenyDirs []string
	// DebounceDelay 防抖延迟，编辑器连续写入只触发一次
	DebounceDelay time.Duration
}

// DefaultWatchConfig 返回默认配置
func DefaultWatchConfig(roots []string) WatchConfig {
	return WatchConfig{
		Roots:         roots,
		Extensions:    []string{".md", ".markdown", ".txt", ".rst"},
		DenyDirs:      []string{".git", "node_modules", "_build", "build", "dist", "mirror"},
		DebounceDelay: 500 * time.Millisecond,
	}
}

// ContentWatcher 内容目录监听器
// 监听内容根目录的文件变更，防抖后触发增量摄取回调
type ContentWatcher struct {
	config  WatchConfig
	handler ChangeHandler
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	// 防抖相关
	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	// 控制
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewContentWatcher 创建内容监听器
func NewContentWatcher(config WatchConfig, handler ChangeHandler) (*ContentWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &ContentWatcher{
		config:         config,
		handler:        handler,
		watcher:        watcher,
		logger:         log.NewModuleLogger("watcher", "content_watcher"),
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
	}, nil
}

// Start 启动内容监听
func (cw *ContentWatcher) Start() error {
	cw.logger.Info("Starting content watcher",
		"roots", cw.config.Roots,
	)

	for _, root := range cw.config.Roots {
		if err := cw.addDirRecursive(root); err != nil {
			cw.logger.Warn("Failed to add content root to watch",
				"root", root,
				"error", err,
			)
		}
	}

	cw.wg.Add(1)
	go cw.watchLoop()

	return nil
}

// Stop 停止内容监听
func (cw *ContentWatcher) Stop() {
	cw.stopOnce.Do(func() {
		cw.logger.Info("Stopping content watcher")

		close(cw.stopCh)
		cw.watcher.Close()
		cw.wg.Wait()

		cw.debounceMu.Lock()
		for _, timer := range cw.debounceTimers {
			timer.Stop()
		}
		cw.debounceMu.Unlock()

		cw.logger.Info("Content watcher stopped")
	})
}

// addDirRecursive 递归添加目录监听
func (cw *ContentWatcher) addDirRecursive(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // 忽略无法访问的目录
		}

		if !info.IsDir() {
			return nil
		}

		if cw.isDeniedDir(info.Name()) && path != dir {
			return filepath.SkipDir
		}

		if err := cw.watcher.Add(path); err != nil {
			cw.logger.Debug("Failed to add directory to watch",
				"path", path,
				"error", err,
			)
		} else {
			cw.logger.Debug("Added directory to watch", "path", path)
		}
		return nil
	})
}

// isDeniedDir 判断是否为跳过目录
func (cw *ContentWatcher) isDeniedDir(name string) bool {
	for _, deny := range cw.config.DenyDirs {
		if name == deny {
			return true
		}
	}
	return false
}

// isContentFile 判断是否为关注的内容文件
func (cw *ContentWatcher) isContentFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range cw.config.Extensions {
		if ext == supported {
			return true
		}
	}
	return false
}

// watchLoop 事件监听循环
func (cw *ContentWatcher) watchLoop() {
	defer cw.wg.Done()

	for {
		select {
		case <-cw.stopCh:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handleFsEvent(event)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Watcher error", "error", err)
		}
	}
}

// handleFsEvent 处理文件系统事件
func (cw *ContentWatcher) handleFsEvent(event fsnotify.Event) {
	// 新建目录需要纳入监听
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if !cw.isDeniedDir(filepath.Base(event.Name)) {
				cw.addDirRecursive(event.Name)
			}
			return
		}
	}

	if !cw.isContentFile(event.Name) {
		return
	}

	cw.debounceEvent(event)
}

// debounceEvent 按文件路径防抖
func (cw *ContentWatcher) debounceEvent(fsEvent fsnotify.Event) {
	cw.debounceMu.Lock()
	defer cw.debounceMu.Unlock()

	if timer, exists := cw.debounceTimers[fsEvent.Name]; exists {
		timer.Stop()
	}

	cw.debounceTimers[fsEvent.Name] = time.AfterFunc(cw.config.DebounceDelay, func() {
		cw.emitChange(fsEvent)

		cw.debounceMu.Lock()
		delete(cw.debounceTimers, fsEvent.Name)
		cw.debounceMu.Unlock()
	})
}

// emitChange 发送内容变更回调
func (cw *ContentWatcher) emitChange(fsEvent fsnotify.Event) {
	var kind ChangeKind
	switch {
	case fsEvent.Has(fsnotify.Remove) || fsEvent.Has(fsnotify.Rename):
		kind = ChangeRemoved
	case fsEvent.Has(fsnotify.Create) || fsEvent.Has(fsnotify.Write):
		kind = ChangeModified
	default:
		return
	}

	// Rename 后文件可能仍在原地（原子写入），以实际状态为准
	if kind == ChangeRemoved {
		if _, err := os.Stat(fsEvent.Name); err == nil {
			kind = ChangeModified
		}
	}

	cw.logger.Debug("Content change emitted",
		"path", fsEvent.Name,
		"kind", kind,
	)

	if cw.handler != nil {
		cw.handler(fsEvent.Name, kind)
	}
}
