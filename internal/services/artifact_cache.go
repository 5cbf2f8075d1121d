// internal/services/artifact_cache.go
package services

import (
	"github.com/Corphon/ScriptStudio/internal/models"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

// CacheSlot names one of the four derived-artifact slots
type CacheSlot string

const (
	SlotVisualPrompt     CacheSlot = "visual_prompt"
	SlotAllVisualPrompts CacheSlot = "all_visual_prompts"
	SlotVideoPlan        CacheSlot = "video_plan"
	SlotDialogue         CacheSlot = "dialogue"
)

// ArtifactCache holds results derived from exactly one script text.
// It is not safe for concurrent use; the owning Session serializes access.
type ArtifactCache struct {
	sceneOrder []string
	scenes     map[string]models.VisualPrompt
	all        []models.ScenePrompt
	plan       *models.VideoPlan
	dialogue   *string

	hasExtractedDialogue         bool
	hasGeneratedAllVisualPrompts bool
	hasSavedToLibrary            bool

	metrics *utils.MetricsCollector
}

// NewArtifactCache 创建空缓存
func NewArtifactCache(metrics *utils.MetricsCollector) *ArtifactCache {
	return &ArtifactCache{
		scenes:  make(map[string]models.VisualPrompt),
		metrics: metrics,
	}
}

func (c *ArtifactCache) record(slot CacheSlot, hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheLookup(string(slot), hit)
	}
}

// VisualPrompt looks up a per-scene prompt by exact scene text
func (c *ArtifactCache) VisualPrompt(scene string) (models.VisualPrompt, bool) {
	p, ok := c.scenes[scene]
	c.record(SlotVisualPrompt, ok)
	return p, ok
}

// PutVisualPrompt stores a per-scene prompt, keeping first-insertion order
func (c *ArtifactCache) PutVisualPrompt(scene string, prompt models.VisualPrompt) {
	if _, exists := c.scenes[scene]; !exists {
		c.sceneOrder = append(c.sceneOrder, scene)
	}
	c.scenes[scene] = prompt
}

// AllVisualPrompts returns the batch result with per-scene entries overlaid
func (c *ArtifactCache) AllVisualPrompts() ([]models.ScenePrompt, bool) {
	ok := c.all != nil
	c.record(SlotAllVisualPrompts, ok)
	if !ok {
		return nil, false
	}
	return MergeScenePrompts(c.all, c.scenes), true
}

// PutAllVisualPrompts stores a batch result after applying the merge rule
func (c *ArtifactCache) PutAllVisualPrompts(batch []models.ScenePrompt) []models.ScenePrompt {
	merged := MergeScenePrompts(batch, c.scenes)
	c.all = merged
	c.hasGeneratedAllVisualPrompts = true
	return cloneScenePrompts(merged)
}

// VideoPlan returns the cached storyboard
func (c *ArtifactCache) VideoPlan() (*models.VideoPlan, bool) {
	ok := c.plan != nil
	c.record(SlotVideoPlan, ok)
	return cloneVideoPlan(c.plan), ok
}

func (c *ArtifactCache) PutVideoPlan(plan *models.VideoPlan) {
	c.plan = cloneVideoPlan(plan)
}

// ClearVideoPlan empties only the video-plan slot
func (c *ArtifactCache) ClearVideoPlan() {
	c.plan = nil
}

// Dialogue returns the cached dialogue extraction
func (c *ArtifactCache) Dialogue() (string, bool) {
	ok := c.dialogue != nil
	c.record(SlotDialogue, ok)
	if !ok {
		return "", false
	}
	return *c.dialogue, true
}

func (c *ArtifactCache) PutDialogue(dialogue string) {
	c.dialogue = &dialogue
	c.hasExtractedDialogue = true
}

// InvalidateAll empties every slot and resets the completion flags
func (c *ArtifactCache) InvalidateAll() {
	c.sceneOrder = nil
	c.scenes = make(map[string]models.VisualPrompt)
	c.all = nil
	c.plan = nil
	c.dialogue = nil
	c.hasExtractedDialogue = false
	c.hasGeneratedAllVisualPrompts = false
	c.hasSavedToLibrary = false
}

// IsEmpty reports whether all four slots miss
func (c *ArtifactCache) IsEmpty() bool {
	return len(c.scenes) == 0 && c.all == nil && c.plan == nil && c.dialogue == nil
}

func (c *ArtifactCache) MarkSaved() {
	c.hasSavedToLibrary = true
}

// Snapshot captures the cache for persistence
func (c *ArtifactCache) Snapshot() models.CachedData {
	visual := make([]models.SceneVisualPrompt, 0, len(c.sceneOrder))
	for _, scene := range c.sceneOrder {
		visual = append(visual, models.SceneVisualPrompt{Scene: scene, Prompt: c.scenes[scene]})
	}

	var dialogue *string
	if c.dialogue != nil {
		d := *c.dialogue
		dialogue = &d
	}

	return models.CachedData{
		VisualPrompts:                visual,
		AllVisualPrompts:             cloneScenePrompts(c.all),
		VideoPlan:                    cloneVideoPlan(c.plan),
		ExtractedDialogue:            dialogue,
		HasExtractedDialogue:         c.hasExtractedDialogue,
		HasGeneratedAllVisualPrompts: c.hasGeneratedAllVisualPrompts,
		HasSummarizedScript:          c.plan != nil,
	}
}

// Restore replaces the whole cache with a stored snapshot. A nil snapshot
// leaves the cache empty.
func (c *ArtifactCache) Restore(data *models.CachedData) {
	c.InvalidateAll()
	if data == nil {
		return
	}

	for _, entry := range data.VisualPrompts {
		c.PutVisualPrompt(entry.Scene, entry.Prompt)
	}
	c.all = cloneScenePrompts(data.AllVisualPrompts)
	c.plan = cloneVideoPlan(data.VideoPlan)
	if data.ExtractedDialogue != nil {
		d := *data.ExtractedDialogue
		c.dialogue = &d
	}
	c.hasExtractedDialogue = data.HasExtractedDialogue
	c.hasGeneratedAllVisualPrompts = data.HasGeneratedAllVisualPrompts
}

// View summarizes slot occupancy
func (c *ArtifactCache) View() models.CacheView {
	return models.CacheView{
		VisualPromptScenes:           len(c.scenes),
		HasAllVisualPrompts:          c.all != nil,
		HasVideoPlan:                 c.plan != nil,
		HasDialogue:                  c.dialogue != nil,
		HasExtractedDialogue:         c.hasExtractedDialogue,
		HasGeneratedAllVisualPrompts: c.hasGeneratedAllVisualPrompts,
		HasSavedToLibrary:            c.hasSavedToLibrary,
	}
}

// MergeScenePrompts overlays per-scene prompts onto a batch result. For a scene
// present in both, the per-scene prompt replaces both batch fields.
func MergeScenePrompts(batch []models.ScenePrompt, scenes map[string]models.VisualPrompt) []models.ScenePrompt {
	if batch == nil {
		return nil
	}
	out := make([]models.ScenePrompt, len(batch))
	for i, p := range batch {
		if single, ok := scenes[p.Scene]; ok {
			p.English = single.English
			p.Vietnamese = single.Vietnamese
		}
		out[i] = p
	}
	return out
}

func cloneScenePrompts(in []models.ScenePrompt) []models.ScenePrompt {
	if in == nil {
		return nil
	}
	out := make([]models.ScenePrompt, len(in))
	copy(out, in)
	return out
}

func cloneVideoPlan(plan *models.VideoPlan) *models.VideoPlan {
	if plan == nil {
		return nil
	}
	cp := *plan
	if plan.Parts != nil {
		cp.Parts = make([]models.VideoPlanPart, len(plan.Parts))
		for i, part := range plan.Parts {
			cp.Parts[i] = part
			if part.Scenes != nil {
				cp.Parts[i].Scenes = make([]models.VideoScene, len(part.Scenes))
				copy(cp.Parts[i].Scenes, part.Scenes)
			}
		}
	}
	return &cp
}
