// internal/mocks/script_writer.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/Corphon/ScriptStudio/internal/models"
)

// ScriptWriter is a testify mock of the text-generation capability
type ScriptWriter struct {
	mock.Mock
}

func (m *ScriptWriter) GenerateScript(ctx context.Context, params models.GenerationParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *ScriptWriter) GenerateOutline(ctx context.Context, topic string, wordCount int, audience string) (string, error) {
	args := m.Called(ctx, topic, wordCount, audience)
	return args.String(0), args.Error(1)
}

func (m *ScriptWriter) GeneratePart(ctx context.Context, fullOutline, priorScript, partOutline string, params models.GenerationParams) (string, error) {
	args := m.Called(ctx, fullOutline, priorScript, partOutline, params)
	return args.String(0), args.Error(1)
}

func (m *ScriptWriter) ReviseScript(ctx context.Context, script, instructions string, params models.GenerationParams) (string, error) {
	args := m.Called(ctx, script, instructions, params)
	return args.String(0), args.Error(1)
}

func (m *ScriptWriter) ExtractDialogue(ctx context.Context, script, audience string) (string, error) {
	args := m.Called(ctx, script, audience)
	return args.String(0), args.Error(1)
}

func (m *ScriptWriter) SuggestTopics(ctx context.Context, topic string) ([]string, error) {
	args := m.Called(ctx, topic)
	if v := args.Get(0); v != nil {
		return v.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ScriptWriter) SuggestKeywords(ctx context.Context, topic string) ([]string, error) {
	args := m.Called(ctx, topic)
	if v := args.Get(0); v != nil {
		return v.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ScriptWriter) SuggestStyle(ctx context.Context, topic string) (models.StyleOptions, error) {
	args := m.Called(ctx, topic)
	return args.Get(0).(models.StyleOptions), args.Error(1)
}

func (m *ScriptWriter) GenerateVisualPrompt(ctx context.Context, scene string) (models.VisualPrompt, error) {
	args := m.Called(ctx, scene)
	return args.Get(0).(models.VisualPrompt), args.Error(1)
}

func (m *ScriptWriter) GenerateAllVisualPrompts(ctx context.Context, script string) ([]models.ScenePrompt, error) {
	args := m.Called(ctx, script)
	if v := args.Get(0); v != nil {
		return v.([]models.ScenePrompt), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ScriptWriter) GenerateVideoPlan(ctx context.Context, script string) (*models.VideoPlan, error) {
	args := m.Called(ctx, script)
	if v := args.Get(0); v != nil {
		return v.(*models.VideoPlan), args.Error(1)
	}
	return nil, args.Error(1)
}

// KeyValidator is a testify mock of the credential check
type KeyValidator struct {
	mock.Mock
}

func (m *KeyValidator) ValidateKey(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}
