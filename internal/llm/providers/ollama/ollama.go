// internal/llm/providers/ollama/ollama.go
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/Corphon/ScriptStudio/internal/llm"
)

const defaultBaseURL = "http://localhost:11434"

func init() {
	llm.Register("ollama", func() llm.Provider {
		return &Provider{
			defaultModel:      "llama3.1",
			recommendedModels: []string{"llama3.1", "qwen2.5", "mistral"},
		}
	})
}

// Provider 调用本地 ollama 服务；本地服务不校验密钥，凭据只用于轮换
type Provider struct {
	defaultModel      string
	recommendedModels []string
	availableModels   []string
	client            *api.Client
}

func (p *Provider) Initialize(config map[string]string) error {
	if model := config["default_model"]; model != "" {
		p.defaultModel = model
	}

	baseURL := config["base_url"]
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("无效的 ollama 地址 %q: %w", baseURL, err)
	}

	p.client = api.NewClient(parsed, &http.Client{Timeout: 10 * time.Minute})
	return nil
}

func (p *Provider) GetName() string {
	return "Ollama"
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

	messages := make([]api.Message, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.Prompt})

	options := map[string]interface{}{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.TopP > 0 {
		options["top_p"] = req.TopP
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}
	if len(req.StopWords) > 0 {
		options["stop"] = req.StopWords
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}
	if req.JSONMode {
		chatReq.Format = json.RawMessage(`"json"`)
	}

	var final api.ChatResponse
	var sb strings.Builder
	err := p.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		if resp.Done {
			final = resp
		}
		return nil
	})
	if err != nil {
		return nil, classifyError(err)
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("ollama: %w", llm.ErrEmptyResponse)
	}

	return &llm.CompletionResponse{
		Text:         text,
		FinishReason: final.DoneReason,
		PromptTokens: final.PromptEvalCount,
		OutputTokens: final.EvalCount,
		TokensUsed:   final.PromptEvalCount + final.EvalCount,
		ModelName:    model,
		ProviderName: "ollama",
	}, nil
}

// FetchAvailableModels 列出本地已拉取的模型
func (p *Provider) FetchAvailableModels(ctx context.Context) error {
	if p.client == nil {
		return errors.New("provider not initialized")
	}
	resp, err := p.client.List(ctx)
	if err != nil {
		return classifyError(err)
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	p.availableModels = names
	return nil
}

func classifyError(err error) error {
	var serr api.StatusError
	if errors.As(err, &serr) {
		if serr.ErrorMessage == "" {
			serr.ErrorMessage = serr.Status
		}
		switch serr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("ollama API错误(%d): %w: %s", serr.StatusCode, llm.ErrInvalidCredential, serr.ErrorMessage)
		case http.StatusTooManyRequests:
			return fmt.Errorf("ollama API错误(%d): %w: %s", serr.StatusCode, llm.ErrRateLimited, serr.ErrorMessage)
		}
		return fmt.Errorf("ollama API错误(%d): %s", serr.StatusCode, serr.ErrorMessage)
	}
	return fmt.Errorf("ollama 请求失败: %w", err)
}
