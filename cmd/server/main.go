// cmd/server/main.go
package main

import (
	"context"
	"log"
	"time"

	"github.com/Corphon/ScriptStudio/internal/app"
	"github.com/Corphon/ScriptStudio/internal/config"

	// 注册文本生成提供商
	_ "github.com/Corphon/ScriptStudio/internal/llm/providers/anthropic"
	_ "github.com/Corphon/ScriptStudio/internal/llm/providers/githubmodels"
	_ "github.com/Corphon/ScriptStudio/internal/llm/providers/glm"
	_ "github.com/Corphon/ScriptStudio/internal/llm/providers/google"
	_ "github.com/Corphon/ScriptStudio/internal/llm/providers/grok"
	_ "github.com/Corphon/ScriptStudio/internal/llm/providers/ollama"
	_ "github.com/Corphon/ScriptStudio/internal/llm/providers/openai"
	_ "github.com/Corphon/ScriptStudio/internal/llm/providers/openrouter"
	_ "github.com/Corphon/ScriptStudio/internal/llm/providers/qwen"
)

func main() {
	log.Println("🚀 启动 ScriptStudio 服务器...")

	// 1. 加载基础配置
	baseConfig, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	log.Printf("✅ 基础配置加载完成，端口: %s，存储: %s", baseConfig.Port, baseConfig.StorageBackend)

	// 2. 初始化服务
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	application, err := app.New(ctx, baseConfig)
	cancel()
	if err != nil {
		log.Fatalf("初始化应用失败: %v", err)
	}
	log.Println("✅ 所有服务初始化完成")
	log.Printf("🔗 访问地址: http://localhost:%s", baseConfig.Port)

	// 3. 运行直到收到 SIGINT/SIGTERM
	if err := application.Run(); err != nil {
		log.Fatalf("❌ %v", err)
	}
	log.Println("✅ 服务器优雅关闭完成")
}
