// internal/llm/providers/qwen/qwen.go
package qwen

import (
	"github.com/Corphon/ScriptStudio/internal/llm"
	"github.com/Corphon/ScriptStudio/internal/llm/providers/openai"
)

func init() {
	llm.Register("qwen", openai.NewCompatible("qwen", "Qwen",
		"https://dashscope.aliyuncs.com/compatible-mode/v1", "qwen2.5-max",
		[]string{
			"qwen2.5-max",
			"qwen2.5-plus",
			"qwq-32b",
		}))
}
