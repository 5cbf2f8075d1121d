// internal/llm/providers/anthropic/anthropic.go
package anthropic

import (
	"github.com/Corphon/ScriptStudio/internal/llm"
	"github.com/Corphon/ScriptStudio/internal/llm/providers/openai"
)

func init() {
	llm.Register("anthropic", openai.NewCompatible("anthropic", "Anthropic",
		"https://api.anthropic.com/v1/", "claude-sonnet-4-5",
		[]string{
			"claude-sonnet-4-5",
			"claude-haiku-4-5",
		}))
}
