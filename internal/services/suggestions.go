// internal/services/suggestions.go
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/models"
)

// SuggestionKind 建议类型
type SuggestionKind string

const (
	SuggestTopics   SuggestionKind = "topics"
	SuggestKeywords SuggestionKind = "keywords"
	SuggestStyle    SuggestionKind = "style"
)

// SuggestionService serves topic, keyword and style suggestions. Results are
// cached per topic and identical concurrent requests share one provider call.
type SuggestionService struct {
	writer ScriptWriter
	cache  *cache.Cache
	group  singleflight.Group
}

// NewSuggestionService 创建建议服务
func NewSuggestionService(writer ScriptWriter, ttl time.Duration) *SuggestionService {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SuggestionService{
		writer: writer,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func suggestionKey(kind SuggestionKind, topic string) string {
	return string(kind) + ":" + strings.ToLower(topic)
}

func requireTopic(topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", apperrors.NewValidationError("please enter a topic first", nil)
	}
	return topic, nil
}

func (s *SuggestionService) fetch(ctx context.Context, kind SuggestionKind, topic string, call func(ctx context.Context, topic string) (interface{}, error)) (interface{}, error) {
	topic, err := requireTopic(topic)
	if err != nil {
		return nil, err
	}
	key := suggestionKey(kind, topic)
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		if v, ok := s.cache.Get(key); ok {
			return v, nil
		}
		res, err := call(ctx, topic)
		if err != nil {
			return nil, err
		}
		s.cache.SetDefault(key, res)
		return res, nil
	})
	return v, err
}

// Topics returns related video topics
func (s *SuggestionService) Topics(ctx context.Context, topic string) ([]string, error) {
	v, err := s.fetch(ctx, SuggestTopics, topic, func(ctx context.Context, topic string) (interface{}, error) {
		return s.writer.SuggestTopics(ctx, topic)
	})
	if err != nil {
		return nil, err
	}
	list, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("unexpected suggestion type: %T", v)
	}
	return append([]string(nil), list...), nil
}

// Keywords returns search keywords for topic
func (s *SuggestionService) Keywords(ctx context.Context, topic string) ([]string, error) {
	v, err := s.fetch(ctx, SuggestKeywords, topic, func(ctx context.Context, topic string) (interface{}, error) {
		return s.writer.SuggestKeywords(ctx, topic)
	})
	if err != nil {
		return nil, err
	}
	list, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("unexpected suggestion type: %T", v)
	}
	return append([]string(nil), list...), nil
}

// Style returns the suggested tone, style and voice
func (s *SuggestionService) Style(ctx context.Context, topic string) (models.StyleOptions, error) {
	v, err := s.fetch(ctx, SuggestStyle, topic, func(ctx context.Context, topic string) (interface{}, error) {
		return s.writer.SuggestStyle(ctx, topic)
	})
	if err != nil {
		return models.StyleOptions{}, err
	}
	opts, ok := v.(models.StyleOptions)
	if !ok {
		return models.StyleOptions{}, fmt.Errorf("unexpected suggestion type: %T", v)
	}
	return opts, nil
}

// Flush drops cached suggestions, e.g. after the provider changed
func (s *SuggestionService) Flush() {
	s.cache.Flush()
}
