package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/llm"
	"github.com/Corphon/ScriptStudio/internal/models"
	"github.com/Corphon/ScriptStudio/internal/storage"
)

// scriptedProvider answers by API key: keys listed in failures return that error
type scriptedProvider struct {
	key string
}

var (
	scriptedMu       sync.Mutex
	scriptedFailures = map[string]error{}
	scriptedReply    = "ok"
	scriptedCalls    []string
	scriptedRequests []llm.CompletionRequest
)

func init() {
	llm.Register("scripted", func() llm.Provider { return &scriptedProvider{} })
}

func resetScripted(reply string, failures map[string]error) {
	scriptedMu.Lock()
	defer scriptedMu.Unlock()
	scriptedReply = reply
	scriptedFailures = failures
	scriptedCalls = nil
	scriptedRequests = nil
}

func (p *scriptedProvider) Initialize(cfg map[string]string) error {
	p.key = cfg["api_key"]
	return nil
}

func (p *scriptedProvider) GetName() string              { return "scripted" }
func (p *scriptedProvider) GetSupportedModels() []string { return []string{"m"} }

func (p *scriptedProvider) CompleteText(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	scriptedMu.Lock()
	defer scriptedMu.Unlock()
	scriptedCalls = append(scriptedCalls, p.key)
	scriptedRequests = append(scriptedRequests, req)
	if err := scriptedFailures[p.key]; err != nil {
		return nil, err
	}
	return &llm.CompletionResponse{Text: scriptedReply, ModelName: "m"}, nil
}

func (p *scriptedProvider) FetchAvailableModels(context.Context) error {
	scriptedMu.Lock()
	defer scriptedMu.Unlock()
	return scriptedFailures[p.key]
}

type staticKeys []string

func (k staticKeys) Keys(context.Context) ([]string, error) {
	if len(k) == 0 {
		return nil, ErrNoCredentials
	}
	return k, nil
}

func newScriptedLLM(t *testing.T, keys CredentialSource) *LLMService {
	t.Helper()
	svc, err := NewLLMService(keys, nil, LLMOptions{RateLimit: 1000, RateBurst: 100})
	require.NoError(t, err)
	require.NoError(t, svc.UpdateProvider("scripted", map[string]string{"api_key": "ignored"}))
	return svc
}

func TestLLMServiceFallsThroughRejectedKeys(t *testing.T) {
	resetScripted("the script", map[string]error{
		"k1": fmt.Errorf("401: %w", llm.ErrInvalidCredential),
		"k2": fmt.Errorf("429: %w", llm.ErrRateLimited),
	})
	svc := newScriptedLLM(t, staticKeys{"k1", "k2", "k3"})

	params := models.DefaultGenerationParams()
	params.Topic = "Coffee"
	text, err := svc.GenerateScript(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, "the script", text)
	assert.Equal(t, []string{"k1", "k2", "k3"}, scriptedCalls)
}

func TestLLMServiceStopsOnOtherErrors(t *testing.T) {
	resetScripted("x", map[string]error{
		"k1": fmt.Errorf("model overloaded"),
	})
	svc := newScriptedLLM(t, staticKeys{"k1", "k2"})

	_, err := svc.ExtractDialogue(context.Background(), "script", "Vietnamese")
	require.Error(t, err)
	assert.True(t, apperrors.IsProviderError(err))
	assert.Equal(t, "model overloaded", err.Error())
	assert.Equal(t, []string{"k1"}, scriptedCalls)
}

func TestLLMServiceRequiresCredentials(t *testing.T) {
	resetScripted("x", nil)
	svc := newScriptedLLM(t, staticKeys{})

	_, err := svc.SuggestTopics(context.Background(), "Coffee")
	assert.True(t, apperrors.IsUnauthorizedError(err))
	assert.Empty(t, scriptedCalls)
}

func TestLLMServiceUsesStoredCredentials(t *testing.T) {
	resetScripted(`{"suggestions":["a"," ","b"]}`, nil)
	creds := NewCredentialService(storage.NewMemoryStore(), nil, nil, "", nil)
	_, err := creds.Add(context.Background(), []string{"stored-key-1"})
	require.NoError(t, err)
	svc := newScriptedLLM(t, creds)

	got, err := svc.SuggestKeywords(context.Background(), "Coffee")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, []string{"stored-key-1"}, scriptedCalls)
	require.Len(t, scriptedRequests, 1)
	assert.True(t, scriptedRequests[0].JSONMode)
}

func TestLLMServiceParsesVideoPlan(t *testing.T) {
	resetScripted("```json\n"+`{"characterBible":"Bob","scriptSummary":"s","parts":[{"partTitle":"P1","scenes":[{"sceneNumber":1,"description":"d","imagePrompt":{"english":"i","vietnamese":"ả"},"videoPrompt":{"english":"v","vietnamese":"v"}}]}]}`+"\n```", nil)
	svc := newScriptedLLM(t, staticKeys{"k"})

	plan, err := svc.GenerateVideoPlan(context.Background(), "script")
	require.NoError(t, err)
	assert.Equal(t, "Bob", plan.CharacterBible)
	assert.Equal(t, 1, plan.SceneCount())
	assert.Equal(t, "ả", plan.Parts[0].Scenes[0].ImagePrompt.Vietnamese)
}

func TestLLMServiceMalformedJSONIsProviderError(t *testing.T) {
	resetScripted("no json here", nil)
	svc := newScriptedLLM(t, staticKeys{"k"})

	_, err := svc.GenerateVisualPrompt(context.Background(), "scene")
	assert.True(t, apperrors.IsProviderError(err))
}

func TestLLMServiceValidateKey(t *testing.T) {
	resetScripted("x", map[string]error{
		"bad": fmt.Errorf("401: %w", llm.ErrInvalidCredential),
	})
	svc := newScriptedLLM(t, staticKeys{"k"})

	assert.NoError(t, svc.ValidateKey(context.Background(), "good"))
	assert.EqualError(t, svc.ValidateKey(context.Background(), "bad"), "invalid API key")
}

func TestLLMServiceUpdateProviderRejectsUnknown(t *testing.T) {
	svc := newScriptedLLM(t, staticKeys{"k"})
	err := svc.UpdateProvider("does-not-exist", nil)
	assert.True(t, apperrors.IsValidationError(err))
	assert.Equal(t, "scripted", svc.GetProviderName())
}
