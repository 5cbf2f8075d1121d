// internal/services/interfaces.go
package services

import (
	"context"

	"github.com/Corphon/ScriptStudio/internal/models"
)

// ScriptWriter 文本生成能力，所有方法均可能返回提供者错误
type ScriptWriter interface {
	GenerateScript(ctx context.Context, params models.GenerationParams) (string, error)
	GenerateOutline(ctx context.Context, topic string, wordCount int, audience string) (string, error)
	GeneratePart(ctx context.Context, fullOutline, priorScript, partOutline string, params models.GenerationParams) (string, error)
	ReviseScript(ctx context.Context, script, instructions string, params models.GenerationParams) (string, error)
	ExtractDialogue(ctx context.Context, script, audience string) (string, error)
	SuggestTopics(ctx context.Context, topic string) ([]string, error)
	SuggestKeywords(ctx context.Context, topic string) ([]string, error)
	SuggestStyle(ctx context.Context, topic string) (models.StyleOptions, error)
	GenerateVisualPrompt(ctx context.Context, scene string) (models.VisualPrompt, error)
	GenerateAllVisualPrompts(ctx context.Context, script string) ([]models.ScenePrompt, error)
	GenerateVideoPlan(ctx context.Context, script string) (*models.VideoPlan, error)
}

// KeyValidator checks one credential against the provider
type KeyValidator interface {
	ValidateKey(ctx context.Context, key string) error
}

// CredentialSource supplies the keys presented to the provider, in stored order
type CredentialSource interface {
	Keys(ctx context.Context) ([]string, error)
}

// EventSink receives session events, e.g. the websocket hub
type EventSink interface {
	Publish(event models.SessionEvent)
}

type noopSink struct{}

func (noopSink) Publish(models.SessionEvent) {}
