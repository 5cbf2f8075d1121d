// internal/services/credentials.go
package services

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/models"
	"github.com/Corphon/ScriptStudio/internal/storage"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

// ErrNoCredentials is returned before any provider call when no key is available
var ErrNoCredentials = apperrors.NewUnauthorizedError("no API key configured, add one in the credentials settings", nil)

// CredentialService manages the ordered key list, newest first
type CredentialService struct {
	store     storage.KVStore
	validator KeyValidator
	sealer    *utils.Sealer
	envKey    string
	metrics   *utils.MetricsCollector

	// writeMu serializes Add/Delete, including their validation calls
	writeMu sync.Mutex

	mu     sync.RWMutex
	loaded bool
	keys   []string
	// locked holds stored values the current secret cannot open; they are
	// written back unchanged so a later secret can still read them
	locked []string
}

// NewCredentialService 创建凭据服务；envKey 在没有保存的密钥时使用
func NewCredentialService(store storage.KVStore, validator KeyValidator, sealer *utils.Sealer, envKey string, metrics *utils.MetricsCollector) *CredentialService {
	return &CredentialService{
		store:     store,
		validator: validator,
		sealer:    sealer,
		envKey:    strings.TrimSpace(envKey),
		metrics:   metrics,
	}
}

// SetValidator replaces the validator, used when the provider is switched
func (c *CredentialService) SetValidator(v KeyValidator) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.validator = v
}

// ParseKeyInput splits multi-line input into trimmed, non-empty keys
func ParseKeyInput(text string) []string {
	var keys []string
	for _, line := range strings.Split(text, "\n") {
		if k := strings.TrimSpace(line); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func (c *CredentialService) load(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	if c.loaded {
		keys := append([]string(nil), c.keys...)
		c.mu.RUnlock()
		return keys, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return append([]string(nil), c.keys...), nil
	}

	var stored []string
	if _, err := storage.LoadJSON(ctx, c.store, storage.CredentialsKey, &stored); err != nil {
		return nil, apperrors.NewProcessingError("failed to load API keys", err)
	}

	keys := make([]string, 0, len(stored))
	var locked []string
	for _, v := range stored {
		k, err := c.sealer.Open(v)
		if err != nil {
			utils.GetLogger().Warn("stored API key cannot be opened with the current secret, keeping it sealed", map[string]interface{}{
				"error": err.Error(),
			})
			locked = append(locked, v)
			continue
		}
		keys = append(keys, k)
	}
	c.keys = keys
	c.locked = locked
	c.loaded = true
	return append([]string(nil), keys...), nil
}

func (c *CredentialService) persist(ctx context.Context, keys []string) error {
	sealed := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := c.sealer.Seal(k)
		if err != nil {
			return apperrors.NewProcessingError("failed to seal API key", err)
		}
		sealed = append(sealed, v)
	}
	c.mu.RLock()
	sealed = append(sealed, c.locked...)
	c.mu.RUnlock()

	err := storage.SaveJSON(ctx, c.store, storage.CredentialsKey, sealed)
	if c.metrics != nil {
		c.metrics.RecordStoreWrite(storage.CredentialsKey, err)
	}
	if err != nil {
		return apperrors.NewProcessingError("failed to save API keys", err)
	}

	c.mu.Lock()
	c.keys = append([]string(nil), keys...)
	c.mu.Unlock()
	return nil
}

// Add validates and stores a batch of keys. Keys already stored or repeated
// within the batch are rejected without a validation call. Accepted keys are
// prepended in submission order.
func (c *CredentialService) Add(ctx context.Context, batch []string) (models.CredentialAddResult, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	result := models.CredentialAddResult{Errors: []models.CredentialError{}}

	existing, err := c.load(ctx)
	if err != nil {
		return result, err
	}
	stored := make(map[string]bool, len(existing))
	for _, k := range existing {
		stored[k] = true
	}

	seen := make(map[string]bool)
	var accepted []string
	for _, raw := range batch {
		key := strings.TrimSpace(raw)
		if key == "" {
			continue
		}
		if stored[key] {
			result.Errors = append(result.Errors, models.CredentialError{Key: utils.SecretTail(key), Message: "already exists"})
			continue
		}
		if seen[key] {
			result.Errors = append(result.Errors, models.CredentialError{Key: utils.SecretTail(key), Message: "duplicated in this batch"})
			continue
		}
		seen[key] = true

		if c.validator != nil {
			if err := c.validator.ValidateKey(ctx, key); err != nil {
				result.Errors = append(result.Errors, models.CredentialError{Key: utils.SecretTail(key), Message: err.Error()})
				continue
			}
		}
		accepted = append(accepted, key)
		result.SuccessCount++
	}

	if len(accepted) > 0 {
		updated := append(accepted, existing...)
		if err := c.persist(ctx, updated); err != nil {
			return models.CredentialAddResult{Errors: []models.CredentialError{}}, err
		}
	}

	utils.GetLogger().Info("api key batch processed", map[string]interface{}{
		"submitted": len(batch),
		"accepted":  result.SuccessCount,
		"rejected":  len(result.Errors),
	})
	return result, nil
}

// Delete removes a key. Deleting an unknown key is not an error.
func (c *CredentialService) Delete(ctx context.Context, key string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	existing, err := c.load(ctx)
	if err != nil {
		return err
	}
	return c.deleteLocked(ctx, existing, strings.TrimSpace(key))
}

// DeleteAt removes the key at index, matching the masked listing
func (c *CredentialService) DeleteAt(ctx context.Context, index int) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	existing, err := c.load(ctx)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(existing) {
		return apperrors.NewNotFoundError("API key not found", nil)
	}
	return c.deleteLocked(ctx, existing, existing[index])
}

func (c *CredentialService) deleteLocked(ctx context.Context, existing []string, key string) error {
	updated := make([]string, 0, len(existing))
	for _, k := range existing {
		if k != key {
			updated = append(updated, k)
		}
	}
	if len(updated) == len(existing) {
		return nil
	}
	return c.persist(ctx, updated)
}

// List returns masked keys; index 0 is shown as active
func (c *CredentialService) List(ctx context.Context) ([]models.CredentialView, error) {
	keys, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.CredentialView, 0, len(keys))
	for i, k := range keys {
		out = append(out, models.CredentialView{
			Index:  i,
			Masked: utils.MaskSecret(k),
			Active: i == 0,
		})
	}
	return out, nil
}

// Keys returns the stored keys in order, or the environment key when none are stored
func (c *CredentialService) Keys(ctx context.Context) ([]string, error) {
	keys, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 && c.envKey != "" {
		keys = []string{c.envKey}
	}
	if len(keys) == 0 {
		return nil, ErrNoCredentials
	}
	return keys, nil
}
