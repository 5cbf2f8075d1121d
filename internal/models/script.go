// internal/models/script.go
package models

// ScriptType 脚本类型
type ScriptType string

const (
	ScriptTypeVideo   ScriptType = "Video"
	ScriptTypePodcast ScriptType = "Podcast"
)

// Auto is accepted wherever a count may be left to the model
const Auto = "Auto"

type StyleOptions struct {
	Tone  string `json:"tone" validate:"required"`
	Style string `json:"style" validate:"required"`
	Voice string `json:"voice" validate:"required"`
}

type FormattingOptions struct {
	Headings     bool `json:"headings"`
	Bullets      bool `json:"bullets"`
	Bold         bool `json:"bold"`
	IncludeIntro bool `json:"includeIntro"`
	IncludeOutro bool `json:"includeOutro"`
}

// GenerationParams is captured when generation starts and reused unchanged
// for every part of a sequential run.
type GenerationParams struct {
	Topic             string            `json:"topic" validate:"required,notblank"`
	TargetAudience    string            `json:"targetAudience" validate:"required"`
	StyleOptions      StyleOptions      `json:"styleOptions"`
	Keywords          string            `json:"keywords"`
	FormattingOptions FormattingOptions `json:"formattingOptions"`
	WordCount         int               `json:"wordCount" validate:"gte=50,lte=20000"`
	ScriptParts       string            `json:"scriptParts" validate:"auto_or_count"`
	ScriptType        ScriptType        `json:"scriptType" validate:"oneof=Video Podcast"`
	NumberOfSpeakers  string            `json:"numberOfSpeakers" validate:"auto_or_count"`
}

// DefaultGenerationParams mirrors the form defaults
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		TargetAudience: "Vietnamese",
		StyleOptions: StyleOptions{
			Tone:  "Informative",
			Style: "Narrative",
			Voice: "Friendly",
		},
		FormattingOptions: FormattingOptions{
			Headings:     true,
			Bullets:      true,
			Bold:         true,
			IncludeIntro: true,
			IncludeOutro: true,
		},
		WordCount:        800,
		ScriptParts:      Auto,
		ScriptType:       ScriptTypeVideo,
		NumberOfSpeakers: Auto,
	}
}

// VisualPrompt 双语画面提示词
type VisualPrompt struct {
	English    string `json:"english"`
	Vietnamese string `json:"vietnamese"`
}

// ScenePrompt is one element of a whole-script prompt batch
type ScenePrompt struct {
	Scene      string `json:"scene"`
	English    string `json:"english"`
	Vietnamese string `json:"vietnamese"`
}

// SceneVisualPrompt is the persisted form of one per-scene cache entry
type SceneVisualPrompt struct {
	Scene  string       `json:"scene"`
	Prompt VisualPrompt `json:"prompt"`
}

type VideoPlan struct {
	CharacterBible string          `json:"characterBible"`
	ScriptSummary  string          `json:"scriptSummary"`
	Parts          []VideoPlanPart `json:"parts"`
}

type VideoPlanPart struct {
	PartTitle string       `json:"partTitle"`
	Scenes    []VideoScene `json:"scenes"`
}

type VideoScene struct {
	SceneNumber int          `json:"sceneNumber"`
	Description string       `json:"description"`
	ImagePrompt VisualPrompt `json:"imagePrompt"`
	VideoPrompt VisualPrompt `json:"videoPrompt"`
}

// SceneCount returns the number of scenes across all parts
func (p *VideoPlan) SceneCount() int {
	if p == nil {
		return 0
	}
	n := 0
	for _, part := range p.Parts {
		n += len(part.Scenes)
	}
	return n
}
