// internal/llm/providers/openai/openai.go
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openaigo "github.com/sashabaranov/go-openai"

	"github.com/Corphon/ScriptStudio/internal/llm"
)

func init() {
	llm.Register("openai", NewCompatible("openai", "OpenAI", "https://api.openai.com/v1", "gpt-4o-mini",
		[]string{"gpt-4o", "gpt-4o-mini", "gpt-4.1", "gpt-4.1-mini"}))
	llm.Register("deepseek", NewCompatible("deepseek", "DeepSeek", "https://api.deepseek.com/v1", "deepseek-chat",
		[]string{"deepseek-chat", "deepseek-reasoner"}))
}

// Provider talks to any OpenAI-compatible chat completions endpoint
type Provider struct {
	name              string
	displayName       string
	baseURL           string
	defaultModel      string
	recommendedModels []string
	availableModels   []string
	client            *openaigo.Client
}

// NewCompatible 返回一个 OpenAI 兼容提供者的工厂
func NewCompatible(name, displayName, baseURL, defaultModel string, recommended []string) llm.ProviderFactory {
	return func() llm.Provider {
		return &Provider{
			name:              name,
			displayName:       displayName,
			baseURL:           baseURL,
			defaultModel:      defaultModel,
			recommendedModels: recommended,
		}
	}
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey := strings.TrimSpace(config["api_key"])
	if apiKey == "" {
		return fmt.Errorf("%s API密钥未提供: %w", p.displayName, llm.ErrInvalidCredential)
	}

	if model := config["default_model"]; model != "" {
		p.defaultModel = model
	}
	if baseURL := config["base_url"]; baseURL != "" {
		p.baseURL = baseURL
	}

	cfg := openaigo.DefaultConfig(apiKey)
	cfg.BaseURL = p.baseURL
	p.client = openaigo.NewClientWithConfig(cfg)
	return nil
}

func (p *Provider) GetName() string {
	return p.displayName
}

func (p *Provider) GetSupportedModels() []string {
	if len(p.availableModels) > 0 {
		return p.availableModels
	}
	return p.recommendedModels
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if p.client == nil {
		return nil, errors.New("provider not initialized")
	}
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := make([]openaigo.ChatCompletionMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openaigo.ChatCompletionMessage{
			Role:    openaigo.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openaigo.ChatCompletionMessage{
		Role:    openaigo.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openaigo.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stop:        req.StopWords,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openaigo.ChatCompletionResponseFormat{
			Type: openaigo.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, ClassifyError(p.displayName, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, fmt.Errorf("%s: %w", p.displayName, llm.ErrEmptyResponse)
	}

	return &llm.CompletionResponse{
		Text:         resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		TokensUsed:   resp.Usage.TotalTokens,
		PromptTokens: resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		ModelName:    model,
		ProviderName: p.name,
	}, nil
}

// FetchAvailableModels 获取账户可用的模型列表
func (p *Provider) FetchAvailableModels(ctx context.Context) error {
	if p.client == nil {
		return errors.New("provider not initialized")
	}
	list, err := p.client.ListModels(ctx)
	if err != nil {
		return ClassifyError(p.displayName, err)
	}
	p.availableModels = make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		p.availableModels = append(p.availableModels, m.ID)
	}
	return nil
}

// ClassifyError maps HTTP status codes onto the llm sentinel errors
func ClassifyError(provider string, err error) error {
	status := 0
	var apiErr *openaigo.APIError
	var reqErr *openaigo.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s API错误(%d): %w: %v", provider, status, llm.ErrInvalidCredential, err)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%s API错误(%d): %w: %v", provider, status, llm.ErrRateLimited, err)
	case 0:
		return fmt.Errorf("%s 请求失败: %w", provider, err)
	default:
		return fmt.Errorf("%s API错误(%d): %w", provider, status, err)
	}
}
