// internal/services/library.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/models"
	"github.com/Corphon/ScriptStudio/internal/storage"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

// LibraryService persists saved scripts, newest first, as one record
type LibraryService struct {
	store   storage.KVStore
	metrics *utils.MetricsCollector
	now     func() time.Time

	mu      sync.Mutex
	loaded  bool
	entries []models.LibraryEntry
	lastID  int64
}

// NewLibraryService 创建脚本库服务
func NewLibraryService(store storage.KVStore, metrics *utils.MetricsCollector) *LibraryService {
	return &LibraryService{
		store:   store,
		metrics: metrics,
		now:     time.Now,
	}
}

// ensureLoaded reads the record once; callers hold mu
func (l *LibraryService) ensureLoaded(ctx context.Context) error {
	if l.loaded {
		return nil
	}
	var entries []models.LibraryEntry
	if _, err := storage.LoadJSON(ctx, l.store, storage.LibraryKey, &entries); err != nil {
		return apperrors.NewProcessingError("failed to load script library", err)
	}
	l.entries = entries
	for _, e := range entries {
		if e.ID > l.lastID {
			l.lastID = e.ID
		}
	}
	l.loaded = true
	return nil
}

// persist writes the whole collection and swaps it in only on success
func (l *LibraryService) persist(ctx context.Context, entries []models.LibraryEntry) error {
	if entries == nil {
		entries = []models.LibraryEntry{}
	}
	err := storage.SaveJSON(ctx, l.store, storage.LibraryKey, entries)
	if l.metrics != nil {
		l.metrics.RecordStoreWrite(storage.LibraryKey, err)
	}
	if err != nil {
		return apperrors.NewProcessingError("failed to save script library", err)
	}
	l.entries = entries
	return nil
}

// List returns all entries, newest first
func (l *LibraryService) List(ctx context.Context) ([]models.LibraryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	out := make([]models.LibraryEntry, len(l.entries))
	copy(out, l.entries)
	return out, nil
}

// Get returns one entry by id
func (l *LibraryService) Get(ctx context.Context, id int64) (models.LibraryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(ctx); err != nil {
		return models.LibraryEntry{}, err
	}
	for _, e := range l.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return models.LibraryEntry{}, apperrors.NewNotFoundError(fmt.Sprintf("library entry %d not found", id), nil)
}

// Save prepends a new entry. Blank topic or script is a silent no-op and
// returns a nil entry.
func (l *LibraryService) Save(ctx context.Context, topic, script string, snapshot models.CachedData) (*models.LibraryEntry, error) {
	if strings.TrimSpace(topic) == "" || strings.TrimSpace(script) == "" {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(ctx); err != nil {
		return nil, err
	}

	id := l.now().UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}

	cached := snapshot
	entry := models.LibraryEntry{
		ID:         id,
		Topic:      topic,
		Script:     script,
		CachedData: &cached,
	}

	updated := make([]models.LibraryEntry, 0, len(l.entries)+1)
	updated = append(updated, entry)
	updated = append(updated, l.entries...)
	if err := l.persist(ctx, updated); err != nil {
		return nil, err
	}
	l.lastID = id

	utils.GetLogger().Info("script saved to library", map[string]interface{}{
		"entry_id": id,
		"topic":    topic,
		"entries":  len(updated),
	})
	return &entry, nil
}

// Delete removes an entry by id
func (l *LibraryService) Delete(ctx context.Context, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureLoaded(ctx); err != nil {
		return err
	}

	updated := make([]models.LibraryEntry, 0, len(l.entries))
	for _, e := range l.entries {
		if e.ID != id {
			updated = append(updated, e)
		}
	}
	if len(updated) == len(l.entries) {
		return apperrors.NewNotFoundError(fmt.Sprintf("library entry %d not found", id), nil)
	}
	return l.persist(ctx, updated)
}
