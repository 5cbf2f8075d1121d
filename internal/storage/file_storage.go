// internal/storage/file_storage.go
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Corphon/ScriptStudio/internal/utils"
)

// FileStorage 每个键保存为 BaseDir 下的一个文件
type FileStorage struct {
	BaseDir string

	// 并发控制
	fileLocks sync.Map // 文件级别锁 path -> *sync.RWMutex
}

// NewFileStorage 创建文件存储服务
func NewFileStorage(baseDir string) (*FileStorage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("创建存储目录失败: %w", err)
	}
	return &FileStorage{BaseDir: baseDir}, nil
}

// 获取文件锁
func (fs *FileStorage) getFileLock(fullPath string) *sync.RWMutex {
	value, _ := fs.fileLocks.LoadOrStore(fullPath, &sync.RWMutex{})
	return value.(*sync.RWMutex)
}

func (fs *FileStorage) pathFor(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(fs.BaseDir, key+".json"), nil
}

// Get 读取记录
func (fs *FileStorage) Get(_ context.Context, key string) (string, bool, error) {
	fullPath, err := fs.pathFor(key)
	if err != nil {
		return "", false, err
	}

	lock := fs.getFileLock(fullPath)
	lock.RLock()
	defer lock.RUnlock()

	content, err := os.ReadFile(fullPath)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("读取文件失败: %w", err)
	}
	return string(content), true, nil
}

// Set 原子性写入记录
func (fs *FileStorage) Set(_ context.Context, key, value string) error {
	fullPath, err := fs.pathFor(key)
	if err != nil {
		return err
	}

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	tempPath := fullPath + ".tmp"
	if err := os.WriteFile(tempPath, []byte(value), 0644); err != nil {
		return fmt.Errorf("保存临时文件失败: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		if removeErr := os.Remove(tempPath); removeErr != nil {
			utils.GetLogger().Warn("failed to clean up temporary file after rename failure", map[string]interface{}{
				"path":  tempPath,
				"error": removeErr.Error(),
			})
		}
		return fmt.Errorf("保存文件失败: %w", err)
	}
	return nil
}

// Delete 删除记录，不存在时不报错
func (fs *FileStorage) Delete(_ context.Context, key string) error {
	fullPath, err := fs.pathFor(key)
	if err != nil {
		return err
	}

	lock := fs.getFileLock(fullPath)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("删除文件失败: %w", err)
	}
	return nil
}

// Close 文件存储无需释放资源
func (fs *FileStorage) Close() error {
	return nil
}
