// internal/api/handlers.go
package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/ScriptStudio/internal/config"
	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/llm"
	"github.com/Corphon/ScriptStudio/internal/models"
	"github.com/Corphon/ScriptStudio/internal/services"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

// LLMController is the part of the text-generation service the settings endpoints drive
type LLMController interface {
	UpdateProvider(providerName string, cfg map[string]string) error
	GetProviderName() string
	GetDefaultModel() string
}

// Handler 处理API请求
type Handler struct {
	Sessions    *services.SessionService
	Library     *services.LibraryService
	Suggestions *services.SuggestionService
	Credentials *services.CredentialService
	LLM         LLMController
	Hub         *WebSocketManager
	Response    *ResponseHelper

	// StorageBackend is reported by the settings endpoint
	StorageBackend string
}

// NewHandler 创建API处理器
func NewHandler(
	sessions *services.SessionService,
	library *services.LibraryService,
	suggestions *services.SuggestionService,
	credentials *services.CredentialService,
	llmController LLMController,
	hub *WebSocketManager,
) *Handler {
	return &Handler{
		Sessions:    sessions,
		Library:     library,
		Suggestions: suggestions,
		Credentials: credentials,
		LLM:         llmController,
		Hub:         hub,
		Response:    NewResponseHelper(),
	}
}

// ReviseRequest 修改脚本的请求
type ReviseRequest struct {
	Instructions string `json:"instructions"`
}

// SequentialStartRequest 开始分段生成的请求
type SequentialStartRequest struct {
	Auto bool `json:"auto"`
}

// VisualPromptRequest 单场景视觉提示请求
type VisualPromptRequest struct {
	Scene string `json:"scene"`
}

// CustomPlanRequest 从粘贴的脚本生成视频计划
type CustomPlanRequest struct {
	Script string `json:"script"`
}

// TopicRequest 建议请求
type TopicRequest struct {
	Topic string `json:"topic"`
}

// AddCredentialsRequest accepts keys as a list, as multi-line text, or both
type AddCredentialsRequest struct {
	Keys []string `json:"keys"`
	Text string   `json:"text"`
}

// DeleteCredentialRequest deletes by exact key or by listing index
type DeleteCredentialRequest struct {
	Key   string `json:"key"`
	Index *int   `json:"index" binding:"omitempty,min=0"`
}

// LLMConfigRequest 更新提供商配置
type LLMConfigRequest struct {
	Provider string            `json:"provider" binding:"required"`
	Config   map[string]string `json:"config"`
}

// bindOptionalJSON binds a body that may be empty
func (h *Handler) bindOptionalJSON(c *gin.Context, v interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return false
	}
	return true
}

func (h *Handler) bindJSON(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		h.Response.BadRequest(c, "invalid request body", err.Error())
		return false
	}
	return true
}

// ========================================
// 会话
// ========================================

// CreateSession 创建新会话
func (h *Handler) CreateSession(c *gin.Context) {
	h.Response.Created(c, h.Sessions.Create())
}

// GetSession 获取会话视图
func (h *Handler) GetSession(c *gin.Context) {
	view, err := h.Sessions.Get(c.Param("id"))
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	h.Response.Success(c, view)
}

// DeleteSession 删除会话
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.Sessions.Delete(c.Param("id")); err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	h.Response.Success(c, nil, "session deleted")
}

// Generate 生成脚本或长篇大纲
func (h *Handler) Generate(c *gin.Context) {
	params := models.DefaultGenerationParams()
	if !h.bindJSON(c, &params) {
		return
	}
	view, err := h.Sessions.Generate(c.Request.Context(), c.Param("id"), params)
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	h.Response.Success(c, view)
}

// Revise 按指令修改脚本
func (h *Handler) Revise(c *gin.Context) {
	var req ReviseRequest
	if !h.bindJSON(c, &req) {
		return
	}
	view, err := h.Sessions.Revise(c.Request.Context(), c.Param("id"), req.Instructions)
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	h.Response.Success(c, view)
}

// StartSequential 开始分段生成
func (h *Handler) StartSequential(c *gin.Context) {
	var req SequentialStartRequest
	if !h.bindOptionalJSON(c, &req) {
		return
	}
	view, err := h.Sessions.StartSequential(c.Request.Context(), c.Param("id"), req.Auto)
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	if req.Auto {
		h.Response.Accepted(c, view, "sequential generation running")
		return
	}
	h.Response.Success(c, view)
}

// NextPart 生成下一部分
func (h *Handler) NextPart(c *gin.Context) {
	result, err := h.Sessions.NextPart(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	h.Response.Success(c, result)
}

// StopSequential 停止分段生成
func (h *Handler) StopSequential(c *gin.Context) {
	view, err := h.Sessions.StopSequential(c.Param("id"))
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	h.Response.Success(c, view)
}

// ========================================
// 派生结果
// ========================================

// ExtractDialogue 提取对白
func (h *Handler) ExtractDialogue(c *gin.Context) {
	dialogue, err := h.Sessions.ExtractDialogue(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	h.Response.Success(c, gin.H{"dialogue": dialogue})
}

// VisualPrompt 单场景视觉提示
func (h *Handler) VisualPrompt(c *gin.Context) {
	var req VisualPromptRequest
	if !h.bindJSON(c, &req) {
		return
	}
	prompt, err := h.Sessions.VisualPrompt(c.Request.Context(), c.Param("id"), req.Scene)
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	h.Response.Success(c, prompt)
}

// AllVisualPrompts 全部场景的视觉提示
func (h *Handler) AllVisualPrompts(c *gin.Context) {
	prompts, err := h.Sessions.AllVisualPrompts(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	h.Response.Success(c, prompts)
}

// VideoPlan 会话脚本的视频计划
func (h *Handler) VideoPlan(c *gin.Context) {
	plan, err := h.Sessions.VideoPlan(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	h.Response.Success(c, plan)
}

// CustomVideoPlan 粘贴脚本的视频计划
func (h *Handler) CustomVideoPlan(c *gin.Context) {
	var req CustomPlanRequest
	if !h.bindJSON(c, &req) {
		return
	}
	plan, err := h.Sessions.VideoPlanFromScript(c.Request.Context(), c.Param("id"), req.Script)
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	h.Response.Success(c, plan)
}

// ClearVideoPlan 清除视频计划
func (h *Handler) ClearVideoPlan(c *gin.Context) {
	view, err := h.Sessions.ClearVideoPlan(c.Param("id"))
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	h.Response.Success(c, view)
}

// ========================================
// 脚本库
// ========================================

func parseEntryID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("entryID"), 10, 64)
	return id, err == nil
}

// SaveToLibrary 保存当前脚本
func (h *Handler) SaveToLibrary(c *gin.Context) {
	entry, err := h.Sessions.SaveToLibrary(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.HandleError(c, err, "session")
		return
	}
	if entry == nil {
		h.Response.Success(c, nil, "nothing to save")
		return
	}
	h.Response.Created(c, entry, "saved to library")
}

// LoadFromLibrary 载入库中的脚本
func (h *Handler) LoadFromLibrary(c *gin.Context) {
	entryID, ok := parseEntryID(c)
	if !ok {
		h.Response.BadRequest(c, "invalid library entry id")
		return
	}
	view, err := h.Sessions.LoadFromLibrary(c.Request.Context(), c.Param("id"), entryID)
	if err != nil {
		resource := "session"
		if apperrors.IsNotFoundError(err) && strings.Contains(err.Error(), "library") {
			resource = "library entry"
		}
		h.Response.HandleError(c, err, resource)
		return
	}
	h.Response.Success(c, view)
}

// ListLibrary 列出库条目，最新在前
func (h *Handler) ListLibrary(c *gin.Context) {
	entries, err := h.Library.List(c.Request.Context())
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, entries)
}

// DeleteLibraryEntry 删除库条目
func (h *Handler) DeleteLibraryEntry(c *gin.Context) {
	entryID, ok := parseEntryID(c)
	if !ok {
		h.Response.BadRequest(c, "invalid library entry id")
		return
	}
	if err := h.Library.Delete(c.Request.Context(), entryID); err != nil {
		h.Response.HandleError(c, err, "library entry")
		return
	}
	h.Response.Success(c, nil, "library entry deleted")
}

// ========================================
// 建议
// ========================================

// SuggestTopics 主题建议
func (h *Handler) SuggestTopics(c *gin.Context) {
	var req TopicRequest
	if !h.bindJSON(c, &req) {
		return
	}
	list, err := h.Suggestions.Topics(c.Request.Context(), req.Topic)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"suggestions": list})
}

// SuggestKeywords 关键词建议
func (h *Handler) SuggestKeywords(c *gin.Context) {
	var req TopicRequest
	if !h.bindJSON(c, &req) {
		return
	}
	list, err := h.Suggestions.Keywords(c.Request.Context(), req.Topic)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"suggestions": list})
}

// SuggestStyle 风格建议
func (h *Handler) SuggestStyle(c *gin.Context) {
	var req TopicRequest
	if !h.bindJSON(c, &req) {
		return
	}
	style, err := h.Suggestions.Style(c.Request.Context(), req.Topic)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, style)
}

// ========================================
// 凭据
// ========================================

// ListCredentials 列出遮蔽后的密钥
func (h *Handler) ListCredentials(c *gin.Context) {
	views, err := h.Credentials.List(c.Request.Context())
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, views)
}

// AddCredentials 验证并保存一批密钥
func (h *Handler) AddCredentials(c *gin.Context) {
	var req AddCredentialsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	batch := append([]string{}, req.Keys...)
	batch = append(batch, services.ParseKeyInput(req.Text)...)
	if len(services.ParseKeyInput(strings.Join(batch, "\n"))) == 0 {
		h.Response.Error(c, http.StatusBadRequest, ErrorCredentialInput, "please enter at least one API key")
		return
	}

	result, err := h.Credentials.Add(c.Request.Context(), batch)
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, result)
}

// DeleteCredential 删除一个密钥
func (h *Handler) DeleteCredential(c *gin.Context) {
	var req DeleteCredentialRequest
	if !h.bindJSON(c, &req) {
		return
	}

	var err error
	switch {
	case req.Index != nil:
		err = h.Credentials.DeleteAt(c.Request.Context(), *req.Index)
	case strings.TrimSpace(req.Key) != "":
		err = h.Credentials.Delete(c.Request.Context(), req.Key)
	default:
		h.Response.Error(c, http.StatusBadRequest, ErrorCredentialInput, "key or index is required")
		return
	}
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}
	h.Response.Success(c, nil, "API key deleted")
}

// ========================================
// 设置
// ========================================

// GetSettings 获取当前设置；不含密钥
func (h *Handler) GetSettings(c *gin.Context) {
	cfg := config.GetCurrentConfig()
	creds, err := h.Credentials.List(c.Request.Context())
	if err != nil {
		h.Response.HandleError(c, err)
		return
	}

	llmConfig := make(map[string]string, len(cfg.LLMConfig))
	for k, v := range cfg.LLMConfig {
		if k != "api_key" {
			llmConfig[k] = v
		}
	}

	h.Response.Success(c, gin.H{
		"llm_provider":     h.LLM.GetProviderName(),
		"llm_model":        h.LLM.GetDefaultModel(),
		"llm_config":       llmConfig,
		"credential_count": len(creds),
		"storage_backend":  h.StorageBackend,
		"debug_mode":       cfg.DebugMode,
	})
}

// ListProviders 列出已注册的提供商及其推荐模型
func (h *Handler) ListProviders(c *gin.Context) {
	names := llm.ListProviders()
	out := make([]gin.H, 0, len(names))
	for _, name := range names {
		out = append(out, gin.H{
			"name":    name,
			"models":  llm.GetSupportedModelsForProvider(name),
			"current": name == h.LLM.GetProviderName(),
		})
	}
	h.Response.Success(c, out)
}

// UpdateLLMConfig 切换提供商或模型并持久化
func (h *Handler) UpdateLLMConfig(c *gin.Context) {
	var req LLMConfigRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if req.Config == nil {
		req.Config = map[string]string{}
	}
	delete(req.Config, "api_key")

	if err := h.LLM.UpdateProvider(req.Provider, req.Config); err != nil {
		h.Response.HandleError(c, err)
		return
	}
	if err := config.UpdateLLMConfig(req.Provider, req.Config); err != nil {
		utils.GetLogger().Warn("llm config applied but not persisted", map[string]interface{}{
			"provider": req.Provider,
			"error":    err.Error(),
		})
	}
	// 建议结果依赖提供商，切换后失效
	h.Suggestions.Flush()

	h.Response.Success(c, gin.H{
		"llm_provider": h.LLM.GetProviderName(),
		"llm_model":    h.LLM.GetDefaultModel(),
	}, "LLM config updated")
}

// GetWebSocketStatus 获取 WebSocket 连接状态
func (h *Handler) GetWebSocketStatus(c *gin.Context) {
	h.Response.Success(c, h.Hub.GetStatus())
}
