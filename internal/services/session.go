// internal/services/session.go
package services

import (
	"sort"
	"sync"
	"time"

	"github.com/Corphon/ScriptStudio/internal/models"
)

// SessionState 会话状态
type SessionState string

const (
	StateIdle             SessionState = "idle"
	StateGenerating       SessionState = "generating"
	StateReady            SessionState = "ready"
	StateRevising         SessionState = "revising"
	StateSequentialActive SessionState = "sequential_active"
)

// Action names a logical user action. At most one call per action is in flight.
type Action string

const (
	ActionGenerate         Action = "generate"
	ActionRevise           Action = "revise"
	ActionPart             Action = "part"
	ActionDialogue         Action = "dialogue"
	ActionVisualPrompt     Action = "visual_prompt"
	ActionAllVisualPrompts Action = "all_visual_prompts"
	ActionVideoPlan        Action = "video_plan"
	ActionLibrary          Action = "library"
)

// writerActions replace or extend the script and share one slot
var writerActions = []Action{ActionGenerate, ActionRevise, ActionPart}

// Session is the state of one "current script". All fields are guarded by mu,
// which is never held across a provider call.
type Session struct {
	mu sync.Mutex

	id            string
	state         SessionState
	topic         string
	script        string
	version       uint64
	revisionCount int
	params        *models.GenerationParams

	seq   Sequencer
	cache *ArtifactCache

	// in-flight actions and the last error per action
	busy map[Action]bool
	errs map[Action]string

	standalonePlan *models.VideoPlan
	autoDrive      bool

	createdAt time.Time
	updatedAt time.Time
}

func newSession(id string, cache *ArtifactCache) *Session {
	now := time.Now()
	return &Session{
		id:        id,
		state:     StateIdle,
		cache:     cache,
		busy:      make(map[Action]bool),
		errs:      make(map[Action]string),
		createdAt: now,
		updatedAt: now,
	}
}

// ID returns the session identifier
func (s *Session) ID() string { return s.id }

// writerBusy reports whether any script-writing call is in flight
func (s *Session) writerBusy() (Action, bool) {
	for _, a := range writerActions {
		if s.busy[a] {
			return a, true
		}
	}
	return "", false
}

// replaceScript sets new script text and invalidates everything derived from the old one
func (s *Session) replaceScript(script string) {
	s.script = script
	s.version++
	s.cache.InvalidateAll()
	s.updatedAt = time.Now()
}

func (s *Session) begin(action Action) {
	s.busy[action] = true
	delete(s.errs, action)
}

func (s *Session) finish(action Action, err error) {
	delete(s.busy, action)
	if err != nil {
		s.errs[action] = err.Error()
	}
	s.updatedAt = time.Now()
}

// view builds a read-only copy; callers hold mu
func (s *Session) view() *models.SessionView {
	busy := make([]string, 0, len(s.busy))
	for a := range s.busy {
		busy = append(busy, string(a))
	}
	sort.Strings(busy)

	errs := make(map[string]string, len(s.errs))
	for a, msg := range s.errs {
		errs[string(a)] = msg
	}

	var params *models.GenerationParams
	if s.params != nil {
		p := *s.params
		params = &p
	}

	return &models.SessionView{
		ID:            s.id,
		State:         string(s.state),
		Topic:         s.topic,
		Script:        s.script,
		ScriptVersion: s.version,
		RevisionCount: s.revisionCount,
		Params:        params,
		Sequence: models.SequenceView{
			Active:      s.seq.Active(),
			CurrentPart: s.seq.Cursor(),
			TotalParts:  s.seq.Total(),
			Parts:       s.seq.Parts(),
		},
		Cache:          s.cache.View(),
		Busy:           busy,
		Errors:         errs,
		StandalonePlan: cloneVideoPlan(s.standalonePlan),
		CreatedAt:      s.createdAt,
		UpdatedAt:      s.updatedAt,
	}
}
