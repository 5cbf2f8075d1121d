// internal/models/session.go
package models

import "time"

// SequenceView 分段生成进度
type SequenceView struct {
	Active      bool     `json:"active"`
	CurrentPart int      `json:"currentPart"`
	TotalParts  int      `json:"totalParts"`
	Parts       []string `json:"parts,omitempty"`
}

// CacheView reports which derived artifacts are currently held
type CacheView struct {
	VisualPromptScenes           int  `json:"visualPromptScenes"`
	HasAllVisualPrompts          bool `json:"hasAllVisualPrompts"`
	HasVideoPlan                 bool `json:"hasVideoPlan"`
	HasDialogue                  bool `json:"hasDialogue"`
	HasExtractedDialogue         bool `json:"hasExtractedDialogue"`
	HasGeneratedAllVisualPrompts bool `json:"hasGeneratedAllVisualPrompts"`
	HasSavedToLibrary            bool `json:"hasSavedToLibrary"`
}

// SessionView 会话的只读视图
type SessionView struct {
	ID             string            `json:"id"`
	State          string            `json:"state"`
	Topic          string            `json:"topic"`
	Script         string            `json:"script"`
	ScriptVersion  uint64            `json:"scriptVersion"`
	RevisionCount  int               `json:"revisionCount"`
	Params         *GenerationParams `json:"params,omitempty"`
	Sequence       SequenceView      `json:"sequence"`
	Cache          CacheView         `json:"cache"`
	Busy           []string          `json:"busy"`
	Errors         map[string]string `json:"errors"`
	StandalonePlan *VideoPlan        `json:"standalonePlan,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}
