package watcher

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	domainDocs "github.com/docstack/backend/internal/domain/docs"
	"github.com/docstack/backend/internal/infrastructure/config"
	"github.com/docstack/backend/internal/infrastructure/log"
)

// PageQueuer 监听器投递页面的目标
type PageQueuer interface {
	Queue(pages []*domainDocs.ScrapedPage)
}

// DropWatcher 抓取制品目录监听器
// 外部抓取器把页面 JSON 落盘到约定目录，这里监听新文件并喂给增量索引队列
// 同一文件的连续写入做防抖，等抓取器写完整后再解析
type DropWatcher struct {
	dir      string
	debounce time.Duration
	queue    PageQueuer
	watcher  *fsnotify.Watcher
	logger   *slog.Logger

	debounceTimers map[string]*time.Timer
	debounceMu     sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup

	enabled bool
}

// NewDropWatcher 创建抓取制品监听器
// 配置未启用时返回空壳实例，Start/Stop 都是空操作
func NewDropWatcher(cfg *config.Config, queue PageQueuer) *DropWatcher {
	return &DropWatcher{
		dir:            cfg.Watcher.DropDir,
		debounce:       500 * time.Millisecond,
		queue:          queue,
		logger:         log.NewModuleLogger("watcher", "drop_watcher"),
		debounceTimers: make(map[string]*time.Timer),
		stopCh:         make(chan struct{}),
		enabled:        cfg.Watcher.Enabled && cfg.Watcher.DropDir != "",
	}
}

// Start 启动目录监听，并先处理启动前已落盘的文件
func (w *DropWatcher) Start() error {
	if !w.enabled {
		w.logger.Info("Drop watcher disabled")
		return nil
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create drop dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch drop dir: %w", err)
	}
	w.watcher = watcher

	w.processExisting()

	w.wg.Add(1)
	go w.watchLoop()

	w.logger.Info("Drop watcher started", "dir", w.dir)
	return nil
}

// Stop 停止监听
func (w *DropWatcher) Stop() {
	if !w.enabled || w.watcher == nil {
		return
	}

	close(w.stopCh)
	w.watcher.Close()
	w.wg.Wait()

	w.debounceMu.Lock()
	for _, timer := range w.debounceTimers {
		timer.Stop()
	}
	w.debounceMu.Unlock()

	w.logger.Info("Drop watcher stopped")
}

// processExisting 处理启动前已经存在的制品文件
func (w *DropWatcher) processExisting() {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Warn("Failed to list drop dir", "error", err)
		return
	}

	for _, entry := range entries {
		if entry.IsDir() || !isArtifact(entry.Name()) {
			continue
		}
		w.ProcessFile(filepath.Join(w.dir, entry.Name()))
	}
}

// watchLoop 事件处理循环
func (w *DropWatcher) watchLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isArtifact(filepath.Base(event.Name)) {
				continue
			}
			w.scheduleProcess(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}

// scheduleProcess 对同一文件的连续事件做防抖
func (w *DropWatcher) scheduleProcess(path string) {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if timer, ok := w.debounceTimers[path]; ok {
		timer.Stop()
	}
	w.debounceTimers[path] = time.AfterFunc(w.debounce, func() {
		w.debounceMu.Lock()
		delete(w.debounceTimers, path)
		w.debounceMu.Unlock()

		w.ProcessFile(path)
	})
}

// ProcessFile 解析一个制品文件并投递到队列，成功后重命名防止重复处理
// 支持单页对象和页面数组两种格式
func (w *DropWatcher) ProcessFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.Warn("Failed to read artifact", "path", path, "error", err)
		return
	}

	pages, err := parseArtifact(data)
	if err != nil {
		w.logger.Warn("Failed to parse artifact", "path", path, "error", err)
		return
	}
	if len(pages) == 0 {
		return
	}

	for _, page := range pages {
		w.logger.Debug("Artifact page parsed",
			"url", page.URL,
			"preview", page.ContentPreview(),
		)
	}

	w.queue.Queue(pages)
	w.logger.Info("Artifact queued", "path", path, "pages", len(pages))

	if err := os.Rename(path, path+".done"); err != nil {
		w.logger.Warn("Failed to mark artifact as processed", "path", path, "error", err)
	}
}

// parseArtifact 解析抓取器落盘的 JSON
func parseArtifact(data []byte) ([]*domainDocs.ScrapedPage, error) {
	var pages []*domainDocs.ScrapedPage
	if err := json.Unmarshal(data, &pages); err == nil {
		return validPages(pages), nil
	}

	var single domainDocs.ScrapedPage
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("artifact is neither a page nor a page array: %w", err)
	}
	return validPages([]*domainDocs.ScrapedPage{&single}), nil
}

// validPages 过滤缺少 URL 或内容的条目
func validPages(pages []*domainDocs.ScrapedPage) []*domainDocs.ScrapedPage {
	out := make([]*domainDocs.ScrapedPage, 0, len(pages))
	for _, p := range pages {
		if p == nil || p.URL == "" || strings.TrimSpace(p.Content) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// isArtifact 判断文件名是否是待处理制品
func isArtifact(name string) bool {
	return strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".done")
}
