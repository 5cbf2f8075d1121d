// internal/llm/providers/githubmodels/github.go
package githubmodels

import (
	"github.com/Corphon/ScriptStudio/internal/llm"
	"github.com/Corphon/ScriptStudio/internal/llm/providers/openai"
)

func init() {
	llm.Register("githubmodels", openai.NewCompatible("githubmodels", "GitHub Models",
		"https://models.inference.ai.azure.com", "gpt-4o",
		[]string{
			"gpt-4o",
			"o3-mini",
			"Phi-4",
		}))
}
