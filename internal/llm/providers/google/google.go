// internal/llm/providers/google/google.go
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/Corphon/ScriptStudio/internal/llm"
)

func init() {
	llm.Register("google", func() llm.Provider {
		return &Provider{
			recommendedModels: []string{
				"gemini-2.5-pro",
				"gemini-2.5-flash",
			},
		}
	})
}

type Provider struct {
	apiKey            string
	defaultModel      string
	recommendedModels []string
	availableModels   []string
	clientOptions     []option.ClientOption
}

func (p *Provider) Initialize(config map[string]string) error {
	apiKey := strings.TrimSpace(config["api_key"])
	if apiKey == "" {
		return fmt.Errorf("google_api密钥未提供: %w", llm.ErrInvalidCredential)
	}
	p.apiKey = apiKey

	if model := config["default_model"]; model != "" {
		p.defaultModel = model
	} else {
		p.defaultModel = "gemini-2.5-flash"
	}

	p.clientOptions = []option.ClientOption{option.WithAPIKey(apiKey)}
	if baseURL := config["base_url"]; baseURL != "" {
		p.clientOptions = append(p.clientOptions, option.WithEndpoint(baseURL))
	}
	return nil
}

func (p *Provider) GetName() string {
	return "google gemini"
}

func (p *Provider) GetSupportedModels() []string {
	if len(p.availableModels) > 0 {
		return p.availableModels
	}
	return p.recommendedModels
}

// newClient opens a client per call; genai clients are bound to one key
func (p *Provider) newClient(ctx context.Context) (*genai.Client, error) {
	if p.apiKey == "" {
		return nil, errors.New("provider not initialized")
	}
	client, err := genai.NewClient(ctx, p.clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("创建 gemini 客户端失败: %w", err)
	}
	return client, nil
}

func (p *Provider) CompleteText(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	client, err := p.newClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	gm := client.GenerativeModel(model)
	if req.SystemPrompt != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemPrompt)}}
	}
	if req.Temperature > 0 {
		gm.SetTemperature(req.Temperature)
	}
	if req.TopP > 0 {
		gm.SetTopP(req.TopP)
	}
	if req.MaxTokens > 0 {
		gm.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if len(req.StopWords) > 0 {
		gm.StopSequences = req.StopWords
	}
	if req.JSONMode {
		gm.ResponseMIMEType = "application/json"
	}

	resp, err := gm.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, classifyError(err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("google gemini: %w", llm.ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return nil, fmt.Errorf("google gemini: %w", llm.ErrEmptyResponse)
	}

	out := &llm.CompletionResponse{
		Text:         sb.String(),
		FinishReason: resp.Candidates[0].FinishReason.String(),
		ModelName:    model,
		ProviderName: "google",
	}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	return out, nil
}

// FetchAvailableModels 获取用户账户可用的模型列表
func (p *Provider) FetchAvailableModels(ctx context.Context) error {
	client, err := p.newClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	var names []string
	it := client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return classifyError(err)
		}
		// "models/gemini-pro" -> "gemini-pro"
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	p.availableModels = names
	return nil
}

func classifyError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusBadRequest:
			if strings.Contains(gerr.Message, "API key") || strings.Contains(gerr.Message, "API_KEY") {
				return fmt.Errorf("google gemini API错误(%d): %w: %v", gerr.Code, llm.ErrInvalidCredential, err)
			}
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("google gemini API错误(%d): %w: %v", gerr.Code, llm.ErrInvalidCredential, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("google gemini API错误(%d): %w: %v", gerr.Code, llm.ErrRateLimited, err)
		}
		return fmt.Errorf("google gemini API错误(%d): %w", gerr.Code, err)
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "API_KEY_INVALID"), strings.Contains(msg, "API key not valid"):
		return fmt.Errorf("google gemini: %w: %v", llm.ErrInvalidCredential, err)
	case strings.Contains(msg, "RESOURCE_EXHAUSTED"):
		return fmt.Errorf("google gemini: %w: %v", llm.ErrRateLimited, err)
	}
	return fmt.Errorf("google gemini 请求失败: %w", err)
}
