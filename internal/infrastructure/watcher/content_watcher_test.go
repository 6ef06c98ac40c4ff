package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// changeRecorder 线程安全的变更记录器
type changeRecorder struct {
	mu      sync.Mutex
	changes map[string]ChangeKind
}

func newChangeRecorder() *changeRecorder {
	return &changeRecorder{changes: make(map[string]ChangeKind)}
}

func (r *changeRecorder) handler(path string, kind ChangeKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes[path] = kind
}

func (r *changeRecorder) get(path string) (ChangeKind, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kind, ok := r.changes[path]
	return kind, ok
}

// waitFor 轮询等待条件满足
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(50 * time.Millisecond)
	}
	return cond()
}

// TestContentWatcher_DetectsWrite 测试文件写入触发变更回调
func TestContentWatcher_DetectsWrite(t *testing.T) {
	root := t.TempDir()
	recorder := newChangeRecorder()

	config := DefaultWatchConfig([]string{root})
	config.DebounceDelay = 50 * time.Millisecond

	cw, err := NewContentWatcher(config, recorder.handler)
	require.NoError(t, err)
	require.NoError(t, cw.Start())
	defer cw.Stop()

	docPath := filepath.Join(root, "guide.md")
	require.NoError(t, os.WriteFile(docPath, []byte("# Guide\n\nSome content."), 0644))

	ok := waitFor(t, 3*time.Second, func() bool {
		kind, found := recorder.get(docPath)
		return found && kind == ChangeModified
	})
	assert.True(t, ok, "expected modified change for %s", docPath)
}

// TestContentWatcher_IgnoresUnsupportedExtension 测试非内容文件不触发回调
func TestContentWatcher_IgnoresUnsupportedExtension(t *testing.T) {
	root := t.TempDir()
	recorder := newChangeRecorder()

	config := DefaultWatchConfig([]string{root})
	config.DebounceDelay = 50 * time.Millisecond

	cw, err := NewContentWatcher(config, recorder.handler)
	require.NoError(t, err)
	require.NoError(t, cw.Start())
	defer cw.Stop()

	binPath := filepath.Join(root, "image.png")
	require.NoError(t, os.WriteFile(binPath, []byte{0x89, 0x50}, 0644))

	time.Sleep(300 * time.Millisecond)
	_, found := recorder.get(binPath)
	assert.False(t, found)
}

// TestContentWatcher_DetectsRemove 测试文件删除触发移除回调
func TestContentWatcher_DetectsRemove(t *testing.T) {
	root := t.TempDir()
	docPath := filepath.Join(root, "old.md")
	require.NoError(t, os.WriteFile(docPath, []byte("obsolete"), 0644))

	recorder := newChangeRecorder()
	config := DefaultWatchConfig([]string{root})
	config.DebounceDelay = 50 * time.Millisecond

	cw, err := NewContentWatcher(config, recorder.handler)
	require.NoError(t, err)
	require.NoError(t, cw.Start())
	defer cw.Stop()

	require.NoError(t, os.Remove(docPath))

	ok := waitFor(t, 3*time.Second, func() bool {
		kind, found := recorder.get(docPath)
		return found && kind == ChangeRemoved
	})
	assert.True(t, ok, "expected removed change for %s", docPath)
}

// TestIsDeniedDir 测试目录排除规则
func TestIsDeniedDir(t *testing.T) {
	cw := &ContentWatcher{config: DefaultWatchConfig(nil)}

	assert.True(t, cw.isDeniedDir(".git"))
	assert.True(t, cw.isDeniedDir("node_modules"))
	assert.True(t, cw.isDeniedDir("mirror"))
	assert.False(t, cw.isDeniedDir("docs"))
}
