// internal/models/library.go
package models

// CachedData 派生结果快照，随脚本一起保存到库中
type CachedData struct {
	VisualPrompts                []SceneVisualPrompt `json:"visualPrompts"`
	AllVisualPrompts             []ScenePrompt       `json:"allVisualPrompts"`
	VideoPlan                    *VideoPlan          `json:"videoPlan"`
	ExtractedDialogue            *string             `json:"extractedDialogue"`
	HasExtractedDialogue         bool                `json:"hasExtractedDialogue"`
	HasGeneratedAllVisualPrompts bool                `json:"hasGeneratedAllVisualPrompts"`
	HasSummarizedScript          bool                `json:"hasSummarizedScript"`
}

// LibraryEntry 库中的一条脚本记录，ID 为创建时间（毫秒）
type LibraryEntry struct {
	ID         int64       `json:"id"`
	Topic      string      `json:"topic"`
	Script     string      `json:"script"`
	CachedData *CachedData `json:"cachedData,omitempty"`
}

// CredentialError describes why one submitted key was not stored
type CredentialError struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// CredentialAddResult 批量添加密钥的结果
type CredentialAddResult struct {
	SuccessCount int               `json:"successCount"`
	Errors       []CredentialError `json:"errors"`
}

// CredentialView is the display form of a stored key
type CredentialView struct {
	Index  int    `json:"index"`
	Masked string `json:"masked"`
	Active bool   `json:"active"`
}
