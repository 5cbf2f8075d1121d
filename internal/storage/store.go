// internal/storage/store.go
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
)

// Record keys used by the service
const (
	LibraryKey     = "yt-script-library"
	CredentialsKey = "gemini-api-keys"
)

var validKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// KVStore 字符串键值存储，每次读写整条记录
type KVStore interface {
	// Get returns the stored value and whether the key exists
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// ValidateKey rejects keys that cannot be mapped safely onto every backend
func ValidateKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("非法的存储键: %q", key)
	}
	return nil
}

// LoadJSON reads key and decodes it into v. A missing key leaves v untouched.
func LoadJSON(ctx context.Context, store KVStore, key string, v interface{}) (bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("解析记录 %s 失败: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and writes it under key
func SaveJSON(ctx context.Context, store KVStore, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("序列化记录 %s 失败: %w", key, err)
	}
	return store.Set(ctx, key, string(data))
}
