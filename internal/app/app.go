// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/Corphon/ScriptStudio/internal/api"
	"github.com/Corphon/ScriptStudio/internal/config"
	"github.com/Corphon/ScriptStudio/internal/services"
	"github.com/Corphon/ScriptStudio/internal/storage"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

// httpServer is the part of *http.Server the app drives
type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// App 组装所有服务并管理其生命周期
type App struct {
	config *config.Config

	store       storage.KVStore
	metrics     *utils.MetricsCollector
	llm         *services.LLMService
	credentials *services.CredentialService
	library     *services.LibraryService
	suggestions *services.SuggestionService
	sessions    *services.SessionService
	hub         *api.WebSocketManager

	router   http.Handler
	server   httpServer
	stopChan chan os.Signal
}

// New 初始化日志、配置、存储和服务
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := initLogger(cfg); err != nil {
		return nil, err
	}
	if err := config.InitConfig(cfg); err != nil {
		return nil, fmt.Errorf("初始化配置失败: %w", err)
	}

	a := &App{
		config:   cfg,
		metrics:  utils.GetMetricsCollector(),
		stopChan: make(chan os.Signal, 1),
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.store = store

	if err := a.initServices(); err != nil {
		a.cleanup()
		return nil, err
	}

	a.router = api.SetupRouter(a.newHandler(), api.RouterOptions{
		DebugMode: cfg.DebugMode,
		Metrics:   a.metrics,
	})
	a.server = &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	utils.GetLogger().Info("application initialized", map[string]interface{}{
		"port":     cfg.Port,
		"storage":  cfg.StorageBackend,
		"provider": a.llm.GetProviderName(),
		"model":    a.llm.GetDefaultModel(),
	})
	return a, nil
}

// initLogger 初始化日志系统
func initLogger(cfg *config.Config) error {
	logCfg := utils.LoggerConfig{
		Level:    cfg.LogLevel,
		Encoding: cfg.LogEncoding,
	}
	if cfg.LogDir != "" {
		logCfg.File = filepath.Join(cfg.LogDir, "app.log")
	}
	if err := utils.InitLogger(logCfg); err != nil {
		return fmt.Errorf("初始化日志系统失败: %w", err)
	}
	return nil
}

// newStore selects the persistence backend
func newStore(ctx context.Context, cfg *config.Config) (storage.KVStore, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return storage.NewMemoryStore(), nil
	case config.StorageRedis:
		store, err := storage.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix)
		if err != nil {
			return nil, fmt.Errorf("连接 Redis 失败: %w", err)
		}
		return store, nil
	case config.StorageFile, "":
		store, err := storage.NewFileStorage(filepath.Join(cfg.DataDir, "store"))
		if err != nil {
			return nil, fmt.Errorf("创建文件存储失败: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("未知的存储后端: %s", cfg.StorageBackend)
	}
}

// initServices 按依赖顺序创建服务
func (a *App) initServices() error {
	cfg := a.config

	sealer, err := utils.NewSealer(cfg.CredentialSecret)
	if err != nil {
		return fmt.Errorf("初始化密钥加密失败: %w", err)
	}

	// 文本生成服务先于凭据服务创建：凭据服务用它验证密钥，它又从凭据服务取密钥
	llmService, err := services.NewLLMService(nil, a.metrics, services.LLMOptions{
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("初始化文本生成服务失败: %w", err)
	}
	a.llm = llmService

	a.credentials = services.NewCredentialService(a.store, llmService, sealer, cfg.EnvAPIKey(), a.metrics)
	llmService.SetCredentialSource(a.credentials)

	a.hub = api.NewWebSocketManager()
	a.library = services.NewLibraryService(a.store, a.metrics)
	a.suggestions = services.NewSuggestionService(llmService, cfg.SuggestionTTL)
	a.sessions = services.NewSessionService(llmService, a.library, a.hub, a.metrics, services.SessionOptions{
		LongFormThreshold: cfg.LongFormThreshold,
		PartTimeout:       cfg.RequestTimeout,
	})
	return nil
}

func (a *App) newHandler() *api.Handler {
	handler := api.NewHandler(a.sessions, a.library, a.suggestions, a.credentials, a.llm, a.hub)
	handler.StorageBackend = a.config.StorageBackend
	return handler
}

// Router exposes the HTTP handler, mainly for tests
func (a *App) Router() http.Handler {
	return a.router
}

// GetConfig 返回启动配置
func (a *App) GetConfig() *config.Config {
	return a.config
}

// Run 启动服务器并在收到停止信号后优雅关闭
func (a *App) Run() error {
	signal.Notify(a.stopChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(a.stopChan)

	errCh := make(chan error, 1)
	go func() {
		utils.GetLogger().Info("http server listening", map[string]interface{}{
			"port": a.config.Port,
		})
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.cleanup()
		return fmt.Errorf("启动服务器失败: %w", err)
	case sig := <-a.stopChan:
		utils.GetLogger().Info("shutting down", map[string]interface{}{
			"signal": sig.String(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := a.server.Shutdown(ctx)
	a.cleanup()
	if err != nil {
		return fmt.Errorf("服务器强制关闭: %w", err)
	}
	return nil
}

// Stop 请求关闭，与收到 SIGTERM 等效
func (a *App) Stop() {
	select {
	case a.stopChan <- syscall.SIGTERM:
	default:
	}
}

// cleanup 释放资源：后台分段生成、WebSocket、存储、日志
func (a *App) cleanup() {
	if a.sessions != nil {
		a.sessions.Close()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			utils.GetLogger().Warn("failed to close store", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	_ = utils.GetLogger().Sync()
}
