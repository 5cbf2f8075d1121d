// internal/llm/providers/grok/grok.go
package grok

import (
	"github.com/Corphon/ScriptStudio/internal/llm"
	"github.com/Corphon/ScriptStudio/internal/llm/providers/openai"
)

func init() {
	llm.Register("grok", openai.NewCompatible("grok", "Grok",
		"https://api.x.ai/v1", "grok-3",
		[]string{
			"grok-4",
			"grok-4-fast",
			"grok-3",
			"grok-3-mini",
		}))
}
