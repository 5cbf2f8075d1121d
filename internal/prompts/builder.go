// internal/prompts/builder.go
package prompts

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/Corphon/ScriptStudio/internal/models"
)

//go:embed templates.yaml
var templatesYAML []byte

// 模板名称
const (
	Script           = "script"
	Outline          = "outline"
	Part             = "part"
	Revise           = "revise"
	Dialogue         = "dialogue"
	Topics           = "topics"
	Keywords         = "keywords"
	Style            = "style"
	VisualPrompt     = "visual_prompt"
	AllVisualPrompts = "all_visual_prompts"
	VideoPlan        = "video_plan"
)

type templateSpec struct {
	System      string  `yaml:"system"`
	User        string  `yaml:"user"`
	Temperature float32 `yaml:"temperature"`
	JSON        bool    `yaml:"json"`
}

// Prompt is a rendered request ready for a provider
type Prompt struct {
	Name        string
	System      string
	User        string
	Temperature float32
	JSON        bool
}

// Data feeds the templates
type Data struct {
	Topic      string
	Audience   string
	Tone       string
	Style      string
	Voice      string
	Keywords   string
	WordCount  int
	Parts      string
	ScriptType string
	Speakers   string

	Headings     bool
	Bullets      bool
	Bold         bool
	IncludeIntro bool
	IncludeOutro bool

	Script       string
	Instructions string
	FullOutline  string
	PriorScript  string
	PartOutline  string
	Scene        string
}

// FromParams copies generation params into template data
func FromParams(p models.GenerationParams) Data {
	return Data{
		Topic:        p.Topic,
		Audience:     p.TargetAudience,
		Tone:         p.StyleOptions.Tone,
		Style:        p.StyleOptions.Style,
		Voice:        p.StyleOptions.Voice,
		Keywords:     p.Keywords,
		WordCount:    p.WordCount,
		Parts:        p.ScriptParts,
		ScriptType:   string(p.ScriptType),
		Speakers:     p.NumberOfSpeakers,
		Headings:     p.FormattingOptions.Headings,
		Bullets:      p.FormattingOptions.Bullets,
		Bold:         p.FormattingOptions.Bold,
		IncludeIntro: p.FormattingOptions.IncludeIntro,
		IncludeOutro: p.FormattingOptions.IncludeOutro,
	}
}

type compiled struct {
	spec   templateSpec
	system *template.Template
	user   *template.Template
}

// Builder renders the embedded templates
type Builder struct {
	templates map[string]compiled
}

// NewBuilder parses the embedded templates
func NewBuilder() (*Builder, error) {
	return Parse(templatesYAML)
}

// Parse builds a Builder from YAML source
func Parse(src []byte) (*Builder, error) {
	var specs map[string]templateSpec
	if err := yaml.Unmarshal(src, &specs); err != nil {
		return nil, fmt.Errorf("解析提示词模板失败: %w", err)
	}

	b := &Builder{templates: make(map[string]compiled, len(specs))}
	for name, spec := range specs {
		if strings.TrimSpace(spec.User) == "" {
			return nil, fmt.Errorf("提示词模板 '%s' 缺少 user 内容", name)
		}
		user, err := template.New(name).Option("missingkey=error").Parse(spec.User)
		if err != nil {
			return nil, fmt.Errorf("提示词模板 '%s' 解析失败: %w", name, err)
		}
		system, err := template.New(name + ".system").Parse(spec.System)
		if err != nil {
			return nil, fmt.Errorf("提示词模板 '%s' 解析失败: %w", name, err)
		}
		b.templates[name] = compiled{spec: spec, system: system, user: user}
	}
	return b, nil
}

// Names returns the loaded template names
func (b *Builder) Names() []string {
	names := make([]string, 0, len(b.templates))
	for name := range b.templates {
		names = append(names, name)
	}
	return names
}

// Build renders one template
func (b *Builder) Build(name string, data Data) (Prompt, error) {
	t, ok := b.templates[name]
	if !ok {
		return Prompt{}, fmt.Errorf("未知的提示词模板: '%s'", name)
	}

	var user, system strings.Builder
	if err := t.user.Execute(&user, data); err != nil {
		return Prompt{}, fmt.Errorf("提示词模板 '%s' 执行失败: %w", name, err)
	}
	if err := t.system.Execute(&system, data); err != nil {
		return Prompt{}, fmt.Errorf("提示词模板 '%s' 执行失败: %w", name, err)
	}

	return Prompt{
		Name:        name,
		System:      strings.TrimSpace(system.String()),
		User:        strings.TrimSpace(user.String()),
		Temperature: t.spec.Temperature,
		JSON:        t.spec.JSON,
	}, nil
}
