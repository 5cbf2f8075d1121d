// internal/services/session_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/models"
	"github.com/Corphon/ScriptStudio/internal/utils"
)

// SessionOptions tunes the session service
type SessionOptions struct {
	// LongFormThreshold is the word count above which a Video script is
	// produced as an outline only
	LongFormThreshold int
	// PartTimeout bounds background part generation
	PartTimeout time.Duration
}

// SessionService owns all script sessions and drives their state machine
type SessionService struct {
	writer  ScriptWriter
	library *LibraryService
	sink    EventSink
	metrics *utils.MetricsCollector
	opts    SessionOptions

	mu       sync.RWMutex
	sessions map[string]*Session

	// background part generation
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NextPartResult reports the outcome of one sequential step
type NextPartResult struct {
	Part    string              `json:"part,omitempty"`
	Done    bool                `json:"done"`
	Session *models.SessionView `json:"session"`
}

// NewSessionService 创建会话服务
func NewSessionService(writer ScriptWriter, library *LibraryService, sink EventSink, metrics *utils.MetricsCollector, opts SessionOptions) *SessionService {
	if sink == nil {
		sink = noopSink{}
	}
	if opts.LongFormThreshold <= 0 {
		opts.LongFormThreshold = 1000
	}
	if opts.PartTimeout <= 0 {
		opts.PartTimeout = 3 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &SessionService{
		writer:   writer,
		library:  library,
		sink:     sink,
		metrics:  metrics,
		opts:     opts,
		sessions: make(map[string]*Session),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

// Close stops scheduling background parts and waits for in-flight ones
func (s *SessionService) Close() {
	s.cancel()
	s.wg.Wait()
}

// Wait blocks until background part generation has finished
func (s *SessionService) Wait() {
	s.wg.Wait()
}

// Create 创建新会话
func (s *SessionService) Create() *models.SessionView {
	sess := newSession(uuid.NewString(), NewArtifactCache(s.metrics))

	s.mu.Lock()
	s.sessions[sess.id] = sess
	count := len(s.sessions)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetActiveSessions(count)
	}
	utils.GetLogger().Info("session created", map[string]interface{}{"session_id": sess.id})

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view()
}

// Delete removes a session; in-flight calls finish but their results are dropped
func (s *SessionService) Delete(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return apperrors.NewNotFoundError(fmt.Sprintf("session %s not found", id), nil)
	}
	sess.mu.Lock()
	sess.seq.Stop()
	sess.autoDrive = false
	sess.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetActiveSessions(count)
	}
	return nil
}

func (s *SessionService) get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("session %s not found", id), nil)
	}
	return sess, nil
}

// Get returns the session view
func (s *SessionService) Get(id string) (*models.SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.view(), nil
}

// setState records a transition; callers hold sess.mu
func (s *SessionService) setState(sess *Session, to SessionState) {
	from := sess.state
	if from == to {
		return
	}
	sess.state = to
	if s.metrics != nil {
		s.metrics.RecordTransition(string(from), string(to))
	}
	s.publish(sess, models.EventStateChanged, "", map[string]any{"from": string(from)})
}

// publish sends an event; callers hold sess.mu
func (s *SessionService) publish(sess *Session, eventType string, action Action, data map[string]any) {
	s.sink.Publish(models.SessionEvent{
		Type:      eventType,
		SessionID: sess.id,
		Action:    string(action),
		State:     string(sess.state),
		Data:      data,
		Timestamp: time.Now(),
	})
}

// failAction records a provider failure against action; callers hold sess.mu
func (s *SessionService) failAction(sess *Session, action Action, err error) error {
	wrapped := err
	if apperrors.TypeOf(err) == "" {
		wrapped = apperrors.NewProviderError(err)
	}
	sess.finish(action, wrapped)
	s.publish(sess, models.EventActionFailed, action, map[string]any{"error": wrapped.Error()})
	utils.GetLogger().Warn("session action failed", map[string]interface{}{
		"session_id": sess.id,
		"action":     string(action),
		"error":      err.Error(),
	})
	return wrapped
}

func writerConflict(active Action) error {
	return apperrors.NewConflictError(fmt.Sprintf("script is busy: %s in progress", active), nil)
}

func actionConflict(action Action) error {
	return apperrors.NewConflictError(fmt.Sprintf("%s already in progress", action), nil)
}

// ---------------------------------------------------
// Script-writing transitions

// Generate starts a fresh generation. Any previous sequence is abandoned.
// Long Video requests produce an outline only.
func (s *SessionService) Generate(ctx context.Context, id string, params models.GenerationParams) (*models.SessionView, error) {
	params = normalizeParams(params)
	if err := ValidateParams(params); err != nil {
		return nil, err
	}

	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if active, busy := sess.writerBusy(); busy {
		sess.mu.Unlock()
		return nil, writerConflict(active)
	}

	sess.seq.Abandon()
	sess.autoDrive = false
	sess.revisionCount = 0
	sess.topic = params.Topic
	snapshot := params
	sess.params = &snapshot
	sess.standalonePlan = nil
	sess.replaceScript("")
	sess.begin(ActionGenerate)
	s.setState(sess, StateGenerating)
	version := sess.version
	sess.mu.Unlock()

	longForm := params.WordCount > s.opts.LongFormThreshold && params.ScriptType == models.ScriptTypeVideo

	var (
		text    string
		callErr error
	)
	if longForm {
		text, callErr = s.writer.GenerateOutline(ctx, params.Topic, params.WordCount, params.TargetAudience)
	} else {
		text, callErr = s.writer.GenerateScript(ctx, params)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if callErr != nil {
		err := s.failAction(sess, ActionGenerate, callErr)
		if sess.version == version {
			s.setState(sess, StateIdle)
		}
		return sess.view(), err
	}

	sess.finish(ActionGenerate, nil)
	if sess.version != version {
		return sess.view(), nil
	}
	sess.replaceScript(text)
	s.setState(sess, StateReady)

	utils.GetLogger().Info("script generated", map[string]interface{}{
		"session_id": sess.id,
		"long_form":  longForm,
		"chars":      len(text),
	})
	return sess.view(), nil
}

// Revise rewrites the current script following instructions
func (s *SessionService) Revise(ctx context.Context, id, instructions string) (*models.SessionView, error) {
	if strings.TrimSpace(instructions) == "" {
		return nil, apperrors.NewValidationError("please enter revision instructions", nil)
	}
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if strings.TrimSpace(sess.script) == "" {
		sess.mu.Unlock()
		return nil, apperrors.NewValidationError("there is no script to revise", nil)
	}
	if active, busy := sess.writerBusy(); busy {
		sess.mu.Unlock()
		return nil, writerConflict(active)
	}
	if sess.state != StateReady {
		state := sess.state
		sess.mu.Unlock()
		return nil, apperrors.NewConflictError(fmt.Sprintf("cannot revise while session is %s", state), nil)
	}

	script := sess.script
	params := models.DefaultGenerationParams()
	if sess.params != nil {
		params = *sess.params
	}
	params.Topic = sess.topic

	// derived results computed for the old text must not survive the revision
	sess.version++
	sess.cache.InvalidateAll()
	sess.begin(ActionRevise)
	s.setState(sess, StateRevising)
	version := sess.version
	sess.mu.Unlock()

	revised, callErr := s.writer.ReviseScript(ctx, script, instructions, params)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if callErr != nil {
		err := s.failAction(sess, ActionRevise, callErr)
		if sess.version == version {
			s.setState(sess, StateReady)
		}
		return sess.view(), err
	}

	sess.finish(ActionRevise, nil)
	if sess.version != version {
		return sess.view(), nil
	}
	sess.replaceScript(revised)
	sess.revisionCount++
	s.setState(sess, StateReady)
	return sess.view(), nil
}

// StartSequential splits the current outline into parts, clears the script
// and fires the first part in the background. With auto set, every following
// part is triggered as soon as the previous one lands.
func (s *SessionService) StartSequential(ctx context.Context, id string, auto bool) (*models.SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if active, busy := sess.writerBusy(); busy {
		return nil, writerConflict(active)
	}
	if sess.state != StateReady {
		return nil, apperrors.NewConflictError(fmt.Sprintf("cannot start sequential generation while session is %s", sess.state), nil)
	}

	parts, err := ParseOutline(sess.script)
	if err != nil {
		return nil, err
	}

	sess.seq.Begin(parts)
	sess.autoDrive = auto
	sess.replaceScript("")
	s.setState(sess, StateSequentialActive)

	utils.GetLogger().Info("sequential generation started", map[string]interface{}{
		"session_id": sess.id,
		"parts":      len(parts),
		"auto":       auto,
	})

	// the first part is reserved here so no manual trigger can overtake it
	job, _ := s.preparePart(sess)
	s.spawnPart(sess, job)
	return sess.view(), nil
}

// spawnPart runs a reserved part in the background, then keeps going while
// auto-drive is on
func (s *SessionService) spawnPart(sess *Session, job *partJob) {
	if job == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.baseCtx, s.opts.PartTimeout)
		res, err := s.runPart(ctx, sess, job)
		cancel()

		for err == nil && !res.Done {
			sess.mu.Lock()
			keepGoing := sess.autoDrive && sess.seq.Active()
			sess.mu.Unlock()
			if !keepGoing || s.baseCtx.Err() != nil {
				return
			}

			ctx, cancel := context.WithTimeout(s.baseCtx, s.opts.PartTimeout)
			res, err = s.NextPart(ctx, sess.id)
			cancel()
		}
	}()
}

// partJob carries everything one part call needs, captured under sess.mu
type partJob struct {
	part        string
	fullOutline string
	prior       string
	params      models.GenerationParams
	index       int
	total       int
	version     uint64
}

// preparePart reserves the writer slot for the part at the cursor. It returns
// nil when the sequence is inactive or exhausted. Callers hold sess.mu.
func (s *SessionService) preparePart(sess *Session) (*partJob, bool) {
	part, fullOutline, ok := sess.seq.Next()
	if !ok {
		if sess.state == StateSequentialActive {
			s.setState(sess, StateReady)
		}
		return nil, false
	}

	params := models.DefaultGenerationParams()
	if sess.params != nil {
		params = *sess.params
	}
	params.Topic = sess.topic

	sess.begin(ActionPart)
	return &partJob{
		part:        part,
		fullOutline: fullOutline,
		prior:       sess.script,
		params:      params,
		index:       sess.seq.Cursor(),
		total:       sess.seq.Total(),
		version:     sess.version,
	}, true
}

// NextPart generates the part at the cursor and appends it to the script.
// When the sequence is inactive or exhausted it is a no-op returning Done.
func (s *SessionService) NextPart(ctx context.Context, id string) (*NextPartResult, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if active, busy := sess.writerBusy(); busy {
		sess.mu.Unlock()
		return nil, writerConflict(active)
	}
	job, ok := s.preparePart(sess)
	if !ok {
		view := sess.view()
		sess.mu.Unlock()
		return &NextPartResult{Done: true, Session: view}, nil
	}
	sess.mu.Unlock()

	return s.runPart(ctx, sess, job)
}

// runPart performs a reserved part call and applies its result
func (s *SessionService) runPart(ctx context.Context, sess *Session, job *partJob) (*NextPartResult, error) {
	if s.metrics != nil {
		s.metrics.ObservePromptTokens(string(ActionPart), EstimateTokens(job.fullOutline+job.prior+job.part))
	}
	text, callErr := s.writer.GeneratePart(ctx, job.fullOutline, job.prior, job.part, job.params)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if callErr != nil {
		partial := apperrors.NewPartialSequenceError(job.index, job.total, callErr)
		sess.seq.Stop()
		sess.autoDrive = false
		_ = s.failAction(sess, ActionPart, partial)
		if sess.state == StateSequentialActive {
			s.setState(sess, StateReady)
		}
		return &NextPartResult{Session: sess.view()}, partial
	}

	sess.finish(ActionPart, nil)
	if sess.version != job.version {
		return &NextPartResult{Done: true, Session: sess.view()}, nil
	}

	script := text
	if sess.script != "" {
		script = sess.script + "\n\n" + text
	}
	sess.replaceScript(script)
	sess.seq.Advance()

	s.publish(sess, models.EventPartGenerated, ActionPart, map[string]any{
		"index": job.index,
		"total": job.total,
	})

	done := !sess.seq.Active()
	if done {
		if sess.state == StateSequentialActive {
			s.setState(sess, StateReady)
		}
		if sess.seq.Cursor() >= sess.seq.Total() {
			s.publish(sess, models.EventSequenceFinished, ActionPart, map[string]any{"parts": job.total})
		}
	}
	return &NextPartResult{Part: text, Done: done, Session: sess.view()}, nil
}

// StopSequential prevents the next part from being scheduled. A part already
// in flight still lands.
func (s *SessionService) StopSequential(id string) (*models.SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.seq.Stop()
	sess.autoDrive = false
	if sess.state == StateSequentialActive {
		s.setState(sess, StateReady)
	}
	return sess.view(), nil
}

// ---------------------------------------------------
// Derived artifacts

// derive serves a derived artifact from the cache or computes it from the
// current script. Results are cached only if the script is unchanged.
func derive[T any](
	ctx context.Context,
	s *SessionService,
	id string,
	action Action,
	cached func(sess *Session) (T, bool),
	call func(ctx context.Context, script string, params models.GenerationParams) (T, error),
	store func(sess *Session, v T) T,
) (T, error) {
	var zero T

	sess, err := s.get(id)
	if err != nil {
		return zero, err
	}

	sess.mu.Lock()
	if strings.TrimSpace(sess.script) == "" {
		sess.mu.Unlock()
		return zero, apperrors.NewValidationError("generate a script first", nil)
	}
	if active, busy := sess.writerBusy(); busy {
		sess.mu.Unlock()
		return zero, writerConflict(active)
	}
	if v, ok := cached(sess); ok {
		sess.mu.Unlock()
		return v, nil
	}
	if sess.busy[action] {
		sess.mu.Unlock()
		return zero, actionConflict(action)
	}

	script := sess.script
	params := models.DefaultGenerationParams()
	if sess.params != nil {
		params = *sess.params
	}
	sess.begin(action)
	version := sess.version
	sess.mu.Unlock()

	v, callErr := call(ctx, script, params)

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if callErr != nil {
		return zero, s.failAction(sess, action, callErr)
	}
	sess.finish(action, nil)
	if sess.version == version {
		v = store(sess, v)
	}
	return v, nil
}

// ExtractDialogue returns the spoken lines of the current script
func (s *SessionService) ExtractDialogue(ctx context.Context, id string) (string, error) {
	return derive(ctx, s, id, ActionDialogue,
		func(sess *Session) (string, bool) { return sess.cache.Dialogue() },
		func(ctx context.Context, script string, params models.GenerationParams) (string, error) {
			return s.writer.ExtractDialogue(ctx, script, params.TargetAudience)
		},
		func(sess *Session, v string) string {
			sess.cache.PutDialogue(v)
			return v
		})
}

// VisualPrompt returns the bilingual prompt for one scene of the current script
func (s *SessionService) VisualPrompt(ctx context.Context, id, scene string) (models.VisualPrompt, error) {
	if strings.TrimSpace(scene) == "" {
		return models.VisualPrompt{}, apperrors.NewValidationError("scene text is required", nil)
	}
	return derive(ctx, s, id, ActionVisualPrompt,
		func(sess *Session) (models.VisualPrompt, bool) { return sess.cache.VisualPrompt(scene) },
		func(ctx context.Context, _ string, _ models.GenerationParams) (models.VisualPrompt, error) {
			return s.writer.GenerateVisualPrompt(ctx, scene)
		},
		func(sess *Session, v models.VisualPrompt) models.VisualPrompt {
			sess.cache.PutVisualPrompt(scene, v)
			return v
		})
}

// AllVisualPrompts returns prompts for every scene, with individually
// generated prompts taking precedence
func (s *SessionService) AllVisualPrompts(ctx context.Context, id string) ([]models.ScenePrompt, error) {
	return derive(ctx, s, id, ActionAllVisualPrompts,
		func(sess *Session) ([]models.ScenePrompt, bool) { return sess.cache.AllVisualPrompts() },
		func(ctx context.Context, script string, _ models.GenerationParams) ([]models.ScenePrompt, error) {
			return s.writer.GenerateAllVisualPrompts(ctx, script)
		},
		func(sess *Session, v []models.ScenePrompt) []models.ScenePrompt {
			return sess.cache.PutAllVisualPrompts(v)
		})
}

// VideoPlan returns the storyboard for the current script
func (s *SessionService) VideoPlan(ctx context.Context, id string) (*models.VideoPlan, error) {
	return derive(ctx, s, id, ActionVideoPlan,
		func(sess *Session) (*models.VideoPlan, bool) { return sess.cache.VideoPlan() },
		func(ctx context.Context, script string, _ models.GenerationParams) (*models.VideoPlan, error) {
			return s.writer.GenerateVideoPlan(ctx, script)
		},
		func(sess *Session, v *models.VideoPlan) *models.VideoPlan {
			sess.cache.PutVideoPlan(v)
			return v
		})
}

// VideoPlanFromScript builds a storyboard for pasted text. The result is kept
// as the session's standalone plan and never enters the cache.
func (s *SessionService) VideoPlanFromScript(ctx context.Context, id, script string) (*models.VideoPlan, error) {
	if strings.TrimSpace(script) == "" {
		return nil, apperrors.NewValidationError("please paste a script", nil)
	}
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.busy[ActionVideoPlan] {
		sess.mu.Unlock()
		return nil, actionConflict(ActionVideoPlan)
	}
	sess.begin(ActionVideoPlan)
	sess.standalonePlan = nil
	sess.mu.Unlock()

	plan, callErr := s.writer.GenerateVideoPlan(ctx, script)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if callErr != nil {
		return nil, s.failAction(sess, ActionVideoPlan, callErr)
	}
	sess.finish(ActionVideoPlan, nil)
	sess.standalonePlan = cloneVideoPlan(plan)
	return plan, nil
}

// ClearVideoPlan empties the video-plan slot and the standalone plan
func (s *SessionService) ClearVideoPlan(id string) (*models.SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.cache.ClearVideoPlan()
	sess.standalonePlan = nil
	delete(sess.errs, ActionVideoPlan)
	return sess.view(), nil
}

// ---------------------------------------------------
// Library

// SaveToLibrary stores the current script and cache. It returns a nil entry
// when topic or script is blank.
func (s *SessionService) SaveToLibrary(ctx context.Context, id string) (*models.LibraryEntry, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	topic, script := sess.topic, sess.script
	snapshot := sess.cache.Snapshot()
	version := sess.version
	sess.mu.Unlock()

	entry, err := s.library.Save(ctx, topic, script, snapshot)
	if err != nil {
		sess.mu.Lock()
		sess.errs[ActionLibrary] = err.Error()
		sess.mu.Unlock()
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	sess.mu.Lock()
	delete(sess.errs, ActionLibrary)
	if sess.version == version {
		sess.cache.MarkSaved()
	}
	sess.mu.Unlock()
	return entry, nil
}

// LoadFromLibrary replaces the session's script and cache with a stored entry
func (s *SessionService) LoadFromLibrary(ctx context.Context, id string, entryID int64) (*models.SessionView, error) {
	sess, err := s.get(id)
	if err != nil {
		return nil, err
	}
	entry, err := s.library.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if active, busy := sess.writerBusy(); busy {
		return nil, writerConflict(active)
	}

	sess.seq.Abandon()
	sess.autoDrive = false
	sess.revisionCount = 0
	sess.topic = entry.Topic
	sess.standalonePlan = nil
	sess.errs = make(map[Action]string)
	sess.replaceScript(entry.Script)
	sess.cache.Restore(entry.CachedData)
	sess.cache.MarkSaved()
	s.setState(sess, StateReady)
	return sess.view(), nil
}
