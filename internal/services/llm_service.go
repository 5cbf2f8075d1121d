// internal/services/llm_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Corphon/ScriptStudio/internal/config"
	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/llm"
	"github.com/Corphon/ScriptStudio/internal/models"
	"github.com/Corphon/ScriptStudio/internal/prompts"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

var providerDefaultModels = map[string]string{
	"google":       "gemini-2.5-flash",
	"openai":       "gpt-4o-mini",
	"anthropic":    "claude-sonnet-4-5",
	"deepseek":     "deepseek-chat",
	"glm":          "glm-4.5-air",
	"qwen":         "qwen2.5-max",
	"githubmodels": "gpt-4o",
	"grok":         "grok-3",
	"openrouter":   "google/gemma-3-27b-it:free",
	"ollama":       "llama3.1",
}

// LLMOptions 文本生成服务选项
type LLMOptions struct {
	// RequestTimeout bounds one provider call, including fall-through to later keys
	RequestTimeout time.Duration
	// RateLimit is the sustained number of provider calls per second
	RateLimit float64
	RateBurst int
}

// LLMService 提供统一的大语言模型调用接口，实现 ScriptWriter 和 KeyValidator
type LLMService struct {
	providerMutex  sync.RWMutex
	providerName   string
	providerConfig map[string]string
	// one initialized provider per key
	providers map[string]llm.Provider

	keys    CredentialSource
	prompts *prompts.Builder
	limiter *rate.Limiter
	metrics *utils.MetricsCollector
	timeout time.Duration
}

// NewLLMService 创建文本生成服务，提供商取自当前配置
func NewLLMService(keys CredentialSource, metrics *utils.MetricsCollector, opts LLMOptions) (*LLMService, error) {
	builder, err := prompts.NewBuilder()
	if err != nil {
		return nil, err
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 3 * time.Minute
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.RateBurst < 1 {
		opts.RateBurst = 1
	}

	cfg := config.GetCurrentConfig()
	s := &LLMService{
		providerName:   cfg.LLMProvider,
		providerConfig: cfg.LLMConfig,
		providers:      make(map[string]llm.Provider),
		keys:           keys,
		prompts:        builder,
		limiter:        rate.NewLimiter(rate.Limit(opts.RateLimit), opts.RateBurst),
		metrics:        metrics,
		timeout:        opts.RequestTimeout,
	}
	if !isRegistered(s.providerName) {
		utils.GetLogger().Warn("configured llm provider is not registered", map[string]interface{}{
			"provider":  s.providerName,
			"available": llm.ListProviders(),
		})
	}
	return s, nil
}

// SetCredentialSource wires the key source after construction
func (s *LLMService) SetCredentialSource(keys CredentialSource) {
	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()
	s.keys = keys
}

func isRegistered(name string) bool {
	for _, n := range llm.ListProviders() {
		if n == name {
			return true
		}
	}
	return false
}

// UpdateProvider 更新LLM服务的提供商；api_key 不在此处保存
func (s *LLMService) UpdateProvider(providerName string, cfg map[string]string) error {
	if !isRegistered(providerName) {
		return apperrors.NewValidationError(fmt.Sprintf("unknown provider: %s", providerName), llm.ErrUnknownProvider)
	}

	clean := make(map[string]string, len(cfg))
	for k, v := range cfg {
		if k != "api_key" {
			clean[k] = v
		}
	}

	s.providerMutex.Lock()
	s.providerName = providerName
	s.providerConfig = clean
	s.providers = make(map[string]llm.Provider)
	s.providerMutex.Unlock()

	utils.GetLogger().Info("llm provider updated", map[string]interface{}{
		"provider": providerName,
		"model":    s.GetDefaultModel(),
	})
	return nil
}

// GetProviderName 返回当前提供商名称
func (s *LLMService) GetProviderName() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	return s.providerName
}

// GetDefaultModel 返回当前使用的模型
func (s *LLMService) GetDefaultModel() string {
	s.providerMutex.RLock()
	defer s.providerMutex.RUnlock()
	if model := strings.TrimSpace(s.providerConfig["default_model"]); model != "" {
		return model
	}
	return providerDefaultModels[s.providerName]
}

// providerFor returns the provider bound to key, creating it on first use
func (s *LLMService) providerFor(key string) (llm.Provider, string, error) {
	s.providerMutex.RLock()
	p, ok := s.providers[key]
	name := s.providerName
	s.providerMutex.RUnlock()
	if ok {
		return p, name, nil
	}

	s.providerMutex.Lock()
	defer s.providerMutex.Unlock()
	if p, ok := s.providers[key]; ok {
		return p, s.providerName, nil
	}
	p, err := s.newProvider(key)
	if err != nil {
		return nil, s.providerName, err
	}
	s.providers[key] = p
	return p, s.providerName, nil
}

// newProvider initializes a fresh provider; callers hold providerMutex
func (s *LLMService) newProvider(key string) (llm.Provider, error) {
	cfg := make(map[string]string, len(s.providerConfig)+1)
	for k, v := range s.providerConfig {
		cfg[k] = v
	}
	cfg["api_key"] = key
	if cfg["default_model"] == "" {
		cfg["default_model"] = providerDefaultModels[s.providerName]
	}
	return llm.GetProvider(s.providerName, cfg)
}

// complete sends one prompt, trying each key in stored order. Only rejected
// or rate-limited keys fall through to the next one.
func (s *LLMService) complete(ctx context.Context, p prompts.Prompt) (string, error) {
	s.providerMutex.RLock()
	source := s.keys
	s.providerMutex.RUnlock()
	if source == nil {
		return "", ErrNoCredentials
	}
	keys, err := source.Keys(ctx)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return "", apperrors.NewTimeoutError("request cancelled while waiting for rate limiter", err)
	}

	req := llm.CompletionRequest{
		Prompt:       p.User,
		SystemPrompt: p.System,
		Temperature:  p.Temperature,
		JSONMode:     p.JSON,
	}

	var lastErr error
	for i, key := range keys {
		provider, name, err := s.providerFor(key)
		if err != nil {
			lastErr = err
			if llm.IsRetryable(err) {
				continue
			}
			return "", apperrors.NewProviderError(err)
		}

		started := time.Now()
		resp, err := provider.CompleteText(ctx, req)
		if s.metrics != nil {
			s.metrics.ObserveProviderRequest(name, p.Name, started, err)
		}
		if err == nil {
			utils.GetLogger().Debug("llm completion finished", map[string]interface{}{
				"operation":     p.Name,
				"provider":      name,
				"model":         resp.ModelName,
				"prompt_tokens": resp.PromptTokens,
				"output_tokens": resp.OutputTokens,
				"duration_ms":   time.Since(started).Milliseconds(),
			})
			return resp.Text, nil
		}

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperrors.NewTimeoutError(fmt.Sprintf("%s request timed out after %s", p.Name, s.timeout), err)
		}
		lastErr = err
		if !llm.IsRetryable(err) {
			break
		}
		utils.GetLogger().Warn("api key rejected, trying next key", map[string]interface{}{
			"operation": p.Name,
			"key":       utils.SecretTail(key),
			"position":  i,
			"error":     err.Error(),
		})
	}
	return "", apperrors.NewProviderError(lastErr)
}

func (s *LLMService) render(name string, data prompts.Data) (prompts.Prompt, error) {
	p, err := s.prompts.Build(name, data)
	if err != nil {
		return prompts.Prompt{}, apperrors.NewProcessingError("failed to build prompt", err)
	}
	return p, nil
}

func (s *LLMService) completeText(ctx context.Context, name string, data prompts.Data) (string, error) {
	p, err := s.render(name, data)
	if err != nil {
		return "", err
	}
	text, err := s.complete(ctx, p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (s *LLMService) completeJSON(ctx context.Context, name string, data prompts.Data, out interface{}) error {
	p, err := s.render(name, data)
	if err != nil {
		return err
	}
	text, err := s.complete(ctx, p)
	if err != nil {
		return err
	}
	if err := decodeJSONResponse(text, out); err != nil {
		return apperrors.NewProviderError(err)
	}
	return nil
}

// ---------------------------------------------------
// ScriptWriter

func (s *LLMService) GenerateScript(ctx context.Context, params models.GenerationParams) (string, error) {
	return s.completeText(ctx, prompts.Script, prompts.FromParams(params))
}

func (s *LLMService) GenerateOutline(ctx context.Context, topic string, wordCount int, audience string) (string, error) {
	return s.completeText(ctx, prompts.Outline, prompts.Data{
		Topic:     topic,
		WordCount: wordCount,
		Audience:  audience,
	})
}

func (s *LLMService) GeneratePart(ctx context.Context, fullOutline, priorScript, partOutline string, params models.GenerationParams) (string, error) {
	data := prompts.FromParams(params)
	data.FullOutline = fullOutline
	data.PriorScript = priorScript
	data.PartOutline = partOutline

	tokens := EstimateTokens(fullOutline + priorScript + partOutline)
	utils.GetLogger().Debug("generating script part", map[string]interface{}{
		"context_tokens": tokens,
	})
	return s.completeText(ctx, prompts.Part, data)
}

func (s *LLMService) ReviseScript(ctx context.Context, script, instructions string, params models.GenerationParams) (string, error) {
	data := prompts.FromParams(params)
	data.Script = script
	data.Instructions = instructions
	return s.completeText(ctx, prompts.Revise, data)
}

func (s *LLMService) ExtractDialogue(ctx context.Context, script, audience string) (string, error) {
	return s.completeText(ctx, prompts.Dialogue, prompts.Data{Script: script, Audience: audience})
}

type suggestionList struct {
	Suggestions []string `json:"suggestions"`
}

func (s *LLMService) suggest(ctx context.Context, name, topic string) ([]string, error) {
	var out suggestionList
	if err := s.completeJSON(ctx, name, prompts.Data{Topic: topic}, &out); err != nil {
		return nil, err
	}
	list := make([]string, 0, len(out.Suggestions))
	for _, v := range out.Suggestions {
		if v = strings.TrimSpace(v); v != "" {
			list = append(list, v)
		}
	}
	return list, nil
}

func (s *LLMService) SuggestTopics(ctx context.Context, topic string) ([]string, error) {
	return s.suggest(ctx, prompts.Topics, topic)
}

func (s *LLMService) SuggestKeywords(ctx context.Context, topic string) ([]string, error) {
	return s.suggest(ctx, prompts.Keywords, topic)
}

func (s *LLMService) SuggestStyle(ctx context.Context, topic string) (models.StyleOptions, error) {
	var out models.StyleOptions
	if err := s.completeJSON(ctx, prompts.Style, prompts.Data{Topic: topic}, &out); err != nil {
		return models.StyleOptions{}, err
	}
	return out, nil
}

func (s *LLMService) GenerateVisualPrompt(ctx context.Context, scene string) (models.VisualPrompt, error) {
	var out models.VisualPrompt
	if err := s.completeJSON(ctx, prompts.VisualPrompt, prompts.Data{Scene: scene}, &out); err != nil {
		return models.VisualPrompt{}, err
	}
	return out, nil
}

func (s *LLMService) GenerateAllVisualPrompts(ctx context.Context, script string) ([]models.ScenePrompt, error) {
	var out struct {
		Prompts []models.ScenePrompt `json:"prompts"`
	}
	if err := s.completeJSON(ctx, prompts.AllVisualPrompts, prompts.Data{Script: script}, &out); err != nil {
		return nil, err
	}
	return out.Prompts, nil
}

func (s *LLMService) GenerateVideoPlan(ctx context.Context, script string) (*models.VideoPlan, error) {
	var plan models.VideoPlan
	if err := s.completeJSON(ctx, prompts.VideoPlan, prompts.Data{Script: script}, &plan); err != nil {
		return nil, err
	}
	if len(plan.Parts) == 0 {
		return nil, apperrors.NewProviderError(errors.New("video plan has no parts"))
	}
	return &plan, nil
}

// ---------------------------------------------------
// KeyValidator

// ValidateKey lists models with a fresh provider bound to key
func (s *LLMService) ValidateKey(ctx context.Context, key string) error {
	s.providerMutex.RLock()
	p, err := s.newProvider(key)
	name := s.providerName
	s.providerMutex.RUnlock()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()
	err = p.FetchAvailableModels(ctx)
	if s.metrics != nil {
		s.metrics.ObserveProviderRequest(name, "validate_key", started, err)
	}
	if err != nil {
		if errors.Is(err, llm.ErrInvalidCredential) {
			return errors.New("invalid API key")
		}
		return err
	}
	return nil
}
