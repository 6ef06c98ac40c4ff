package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docschat/backend/internal/domain/corpus"
	"github.com/docschat/backend/internal/infrastructure/log"
)

// supportedExtensions 可摄取的文档扩展名
var supportedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
	".rst":      true,
}

// denyDirs 跳过的目录名（非正式内容：构建产物、镜像副本等）
var denyDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"_build":       true,
	"build":        true,
	"dist":         true,
	"mirror":       true,
}

// IsSupportedFile 判断路径是否为可摄取的文档文件
func IsSupportedFile(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// Loader 文档加载器
// 在内容根目录下发现正式文档，读取原始文本与结构元数据
type Loader struct {
	roots  []string
	logger *slog.Logger
}

// NewLoader 创建文档加载器
func NewLoader(roots []string) *Loader {
	return &Loader{
		roots:  roots,
		logger: log.NewModuleLogger("ingest", "loader"),
	}
}

// DiscoverPaths 发现所有可摄取文档的绝对路径，按路径排序保证确定性
func (l *Loader) DiscoverPaths() ([]string, error) {
	var paths []string

	for _, root := range l.roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("content root not accessible: %w", err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("content root is not a directory: %s", root)
		}

		err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				l.logger.Warn("Skipping inaccessible path",
					"path", path,
					"error", err,
				)
				return nil
			}

			if info.IsDir() {
				if denyDirs[info.Name()] && path != root {
					return filepath.SkipDir
				}
				return nil
			}

			if IsSupportedFile(path) {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk content root %s: %w", root, err)
		}
	}

	sort.Strings(paths)

	l.logger.Info("Discovered documents",
		"roots", l.roots,
		"documents", len(paths),
	)

	return paths, nil
}

// LoadDocument 加载单个文档
// SourcePath 使用相对内容根的斜杠路径，保证跨平台引用稳定
func (l *Loader) LoadDocument(path string) (*corpus.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat document %s: %w", path, err)
	}

	rawText := string(data)

	return &corpus.Document{
		Path:         l.relativePath(path),
		Title:        extractTitle(rawText, path),
		RawText:      rawText,
		LastModified: info.ModTime(),
	}, nil
}

// LoadAll 加载所有发现的文档
func (l *Loader) LoadAll() ([]*corpus.Document, error) {
	paths, err := l.DiscoverPaths()
	if err != nil {
		return nil, err
	}

	documents := make([]*corpus.Document, 0, len(paths))
	for _, path := range paths {
		doc, err := l.LoadDocument(path)
		if err != nil {
			l.logger.Warn("Failed to load document",
				"path", path,
				"error", err,
			)
			continue
		}
		documents = append(documents, doc)
	}

	return documents, nil
}

// relativePath 将绝对路径转换为相对内容根的斜杠路径
func (l *Loader) relativePath(path string) string {
	for _, root := range l.roots {
		if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

// extractTitle 提取文档标题：首个一级标题，退化为文件名
func extractTitle(rawText, path string) string {
	for _, line := range strings.Split(rawText, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, "# "))
		}
	}

	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
