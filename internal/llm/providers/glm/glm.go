// internal/llm/providers/glm/glm.go
package glm

import (
	"github.com/Corphon/ScriptStudio/internal/llm"
	"github.com/Corphon/ScriptStudio/internal/llm/providers/openai"
)

func init() {
	llm.Register("glm", openai.NewCompatible("glm", "GLM",
		"https://open.bigmodel.cn/api/paas/v4", "glm-4",
		[]string{
			"glm-4",
			"glm-4-plus",
			"glm-4.5-air",
			"glm-4.5",
			"glm-4.6",
		}))
}
