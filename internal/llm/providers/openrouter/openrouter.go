// internal/llm/providers/openrouter/openrouter.go
package openrouter

import (
	"github.com/Corphon/ScriptStudio/internal/llm"
	"github.com/Corphon/ScriptStudio/internal/llm/providers/openai"
)

func init() {
	llm.Register("openrouter", openai.NewCompatible("openrouter", "OpenRouter",
		"https://openrouter.ai/api/v1", "google/gemma-3-27b-it:free",
		[]string{
			"google/gemma-3-27b-it:free",
			"qwen/qwen3-235b-a22b:free",
			"nousresearch/hermes-3-llama-3.1-405b:free",
		}))
}
