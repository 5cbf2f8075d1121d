package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/mocks"
	"github.com/Corphon/ScriptStudio/internal/models"
	"github.com/Corphon/ScriptStudio/internal/storage"
)

const twoPartOutline = "# Rome\n\n### Dàn Ý Chi Tiết\n---\n## A\nfirst beats\n## B\nsecond beats\n---\nnotes"

type recordingSink struct {
	mu     sync.Mutex
	events []models.SessionEvent
}

func (r *recordingSink) Publish(e models.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingSink) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type sessionFixture struct {
	svc     *SessionService
	writer  *mocks.ScriptWriter
	library *LibraryService
	sink    *recordingSink
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	writer := &mocks.ScriptWriter{}
	library := NewLibraryService(storage.NewMemoryStore(), nil)
	sink := &recordingSink{}
	svc := NewSessionService(writer, library, sink, nil, SessionOptions{LongFormThreshold: 1000, PartTimeout: 5 * time.Second})
	t.Cleanup(svc.Close)
	return &sessionFixture{svc: svc, writer: writer, library: library, sink: sink}
}

func videoParams(topic string, words int) models.GenerationParams {
	p := models.DefaultGenerationParams()
	p.Topic = topic
	p.WordCount = words
	return p
}

// readySession generates a short script so the session is Ready
func (f *sessionFixture) readySession(t *testing.T, script string) string {
	t.Helper()
	id := f.svc.Create().ID
	f.writer.On("GenerateScript", mock.Anything, mock.Anything).Return(script, nil).Once()
	view, err := f.svc.Generate(context.Background(), id, videoParams("Coffee", 600))
	require.NoError(t, err)
	require.Equal(t, string(StateReady), view.State)
	return id
}

// outlineSession generates a long Video request, leaving the outline as the script
func (f *sessionFixture) outlineSession(t *testing.T) string {
	t.Helper()
	id := f.svc.Create().ID
	f.writer.On("GenerateOutline", mock.Anything, "Rome", 1500, "Vietnamese").Return(twoPartOutline, nil).Once()
	view, err := f.svc.Generate(context.Background(), id, videoParams("Rome", 1500))
	require.NoError(t, err)
	require.Equal(t, twoPartOutline, view.Script)
	return id
}

func TestGenerateShortScript(t *testing.T) {
	f := newSessionFixture(t)
	id := f.readySession(t, "Hello viewers")

	view, err := f.svc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Hello viewers", view.Script)
	assert.Equal(t, "Coffee", view.Topic)
	assert.Zero(t, view.RevisionCount)
	assert.False(t, view.Sequence.Active)
	assert.Empty(t, view.Busy)
	assert.Contains(t, f.sink.types(), models.EventStateChanged)
	f.writer.AssertNotCalled(t, "GenerateOutline", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateBlankTopicIsValidationError(t *testing.T) {
	f := newSessionFixture(t)
	id := f.svc.Create().ID

	_, err := f.svc.Generate(context.Background(), id, videoParams("   ", 600))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidationError(err))

	view, _ := f.svc.Get(id)
	assert.Equal(t, string(StateIdle), view.State)
	f.writer.AssertNotCalled(t, "GenerateScript", mock.Anything, mock.Anything)
}

func TestGenerateLongVideoProducesOutlineOnly(t *testing.T) {
	f := newSessionFixture(t)
	id := f.outlineSession(t)

	view, err := f.svc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, string(StateReady), view.State)
	assert.False(t, view.Sequence.Active)
	assert.Zero(t, view.Sequence.TotalParts)
	f.writer.AssertNotCalled(t, "GenerateScript", mock.Anything, mock.Anything)
}

func TestGenerateLongPodcastIsFullScript(t *testing.T) {
	f := newSessionFixture(t)
	id := f.svc.Create().ID

	params := videoParams("Rome", 1500)
	params.ScriptType = models.ScriptTypePodcast
	f.writer.On("GenerateScript", mock.Anything, mock.Anything).Return("HOST: hi", nil).Once()

	view, err := f.svc.Generate(context.Background(), id, params)
	require.NoError(t, err)
	assert.Equal(t, "HOST: hi", view.Script)
	f.writer.AssertNotCalled(t, "GenerateOutline", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateFailureReturnsToIdle(t *testing.T) {
	f := newSessionFixture(t)
	id := f.svc.Create().ID
	f.writer.On("GenerateScript", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded")).Once()

	view, err := f.svc.Generate(context.Background(), id, videoParams("Coffee", 600))
	require.Error(t, err)
	assert.True(t, apperrors.IsProviderError(err))
	assert.Equal(t, "quota exceeded", err.Error())
	assert.Equal(t, string(StateIdle), view.State)
	assert.Equal(t, "quota exceeded", view.Errors[string(ActionGenerate)])
	assert.Empty(t, view.Busy)
}

func TestReviseIncrementsRevisionCount(t *testing.T) {
	f := newSessionFixture(t)
	id := f.readySession(t, "v1")

	f.writer.On("ReviseScript", mock.Anything, "v1", "shorter", mock.Anything).Return("v2", nil).Once()
	view, err := f.svc.Revise(context.Background(), id, "shorter")
	require.NoError(t, err)
	assert.Equal(t, "v2", view.Script)
	assert.Equal(t, 1, view.RevisionCount)
	assert.Equal(t, string(StateReady), view.State)
}

func TestReviseFailureKeepsScriptAndCount(t *testing.T) {
	f := newSessionFixture(t)
	id := f.readySession(t, "v1")

	f.writer.On("ReviseScript", mock.Anything, "v1", "shorter", mock.Anything).Return("", errors.New("boom")).Once()
	view, err := f.svc.Revise(context.Background(), id, "shorter")
	require.Error(t, err)
	assert.Equal(t, "v1", view.Script)
	assert.Zero(t, view.RevisionCount)
	assert.Equal(t, string(StateReady), view.State)
}

func TestReviseBlankInstructions(t *testing.T) {
	f := newSessionFixture(t)
	id := f.readySession(t, "v1")

	_, err := f.svc.Revise(context.Background(), id, "  ")
	assert.True(t, apperrors.IsValidationError(err))
}

func TestDerivedArtifactsAreCachedUntilScriptChanges(t *testing.T) {
	f := newSessionFixture(t)
	id := f.readySession(t, "v1")
	ctx := context.Background()

	f.writer.On("ExtractDialogue", mock.Anything, "v1", "Vietnamese").Return("lines v1", nil).Once()
	d1, err := f.svc.ExtractDialogue(ctx, id)
	require.NoError(t, err)
	d2, err := f.svc.ExtractDialogue(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "lines v1", d1)
	assert.Equal(t, d1, d2)

	f.writer.On("ReviseScript", mock.Anything, "v1", "more", mock.Anything).Return("v2", nil).Once()
	view, err := f.svc.Revise(ctx, id, "more")
	require.NoError(t, err)
	assert.False(t, view.Cache.HasDialogue)
	assert.False(t, view.Cache.HasExtractedDialogue)

	f.writer.On("ExtractDialogue", mock.Anything, "v2", "Vietnamese").Return("lines v2", nil).Once()
	d3, err := f.svc.ExtractDialogue(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "lines v2", d3)
	f.writer.AssertExpectations(t)
}

func TestAllVisualPromptsMergesSingleScenePrompts(t *testing.T) {
	f := newSessionFixture(t)
	id := f.readySession(t, "Scene A. Scene B.")
	ctx := context.Background()

	f.writer.On("GenerateVisualPrompt", mock.Anything, "Scene A.").
		Return(models.VisualPrompt{English: "single A", Vietnamese: "đơn A"}, nil).Once()
	_, err := f.svc.VisualPrompt(ctx, id, "Scene A.")
	require.NoError(t, err)

	f.writer.On("GenerateAllVisualPrompts", mock.Anything, "Scene A. Scene B.").Return([]models.ScenePrompt{
		{Scene: "Scene A.", English: "batch A", Vietnamese: "lô A"},
		{Scene: "Scene B.", English: "batch B", Vietnamese: "lô B"},
	}, nil).Once()
	all, err := f.svc.AllVisualPrompts(ctx, id)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "single A", all[0].English)
	assert.Equal(t, "đơn A", all[0].Vietnamese)
	assert.Equal(t, "batch B", all[1].English)

	view, _ := f.svc.Get(id)
	assert.True(t, view.Cache.HasGeneratedAllVisualPrompts)
}

func TestVisualPromptBlankScene(t *testing.T) {
	f := newSessionFixture(t)
	id := f.readySession(t, "v1")
	_, err := f.svc.VisualPrompt(context.Background(), id, " ")
	assert.True(t, apperrors.IsValidationError(err))
}

func TestDerivedRequiresScript(t *testing.T) {
	f := newSessionFixture(t)
	id := f.svc.Create().ID
	_, err := f.svc.VideoPlan(context.Background(), id)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestDerivedRejectedWhileRevising(t *testing.T) {
	f := newSessionFixture(t)
	id := f.readySession(t, "v1")

	release := make(chan struct{})
	f.writer.On("ReviseScript", mock.Anything, "v1", "slow", mock.Anything).
		Run(func(mock.Arguments) { <-release }).Return("v2", nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Revise(context.Background(), id, "slow")
		done <- err
	}()

	require.Eventually(t, func() bool {
		v, _ := f.svc.Get(id)
		return v.State == string(StateRevising)
	}, 2*time.Second, 5*time.Millisecond)

	_, err := f.svc.ExtractDialogue(context.Background(), id)
	assert.True(t, apperrors.IsConflictError(err))

	_, err = f.svc.Generate(context.Background(), id, videoParams("Other", 600))
	assert.True(t, apperrors.IsConflictError(err))

	close(release)
	require.NoError(t, <-done)
	f.writer.AssertNotCalled(t, "ExtractDialogue", mock.Anything, mock.Anything, mock.Anything)
}

func TestVideoPlanFromScriptStaysOutOfCache(t *testing.T) {
	f := newSessionFixture(t)
	id := f.readySession(t, "v1")
	plan := &models.VideoPlan{ScriptSummary: "custom", Parts: []models.VideoPlanPart{{PartTitle: "p"}}}
	f.writer.On("GenerateVideoPlan", mock.Anything, "pasted text").Return(plan, nil).Once()

	got, err := f.svc.VideoPlanFromScript(context.Background(), id, "pasted text")
	require.NoError(t, err)
	assert.Equal(t, "custom", got.ScriptSummary)

	view, _ := f.svc.Get(id)
	assert.False(t, view.Cache.HasVideoPlan)
	require.NotNil(t, view.StandalonePlan)

	view, err = f.svc.ClearVideoPlan(id)
	require.NoError(t, err)
	assert.Nil(t, view.StandalonePlan)

	_, err = f.svc.VideoPlanFromScript(context.Background(), id, "")
	assert.True(t, apperrors.IsValidationError(err))
}

func TestSequentialManualSteps(t *testing.T) {
	f := newSessionFixture(t)
	id := f.outlineSession(t)
	ctx := context.Background()
	full := "## A\nfirst beats\n## B\nsecond beats"

	f.writer.On("GeneratePart", mock.Anything, full, "", "## A\nfirst beats", mock.Anything).Return("Part A", nil).Once()
	f.writer.On("GeneratePart", mock.Anything, full, "Part A", "## B\nsecond beats", mock.Anything).Return("Part B", nil).Once()

	view, err := f.svc.StartSequential(ctx, id, false)
	require.NoError(t, err)
	assert.Equal(t, string(StateSequentialActive), view.State)
	assert.Equal(t, 2, view.Sequence.TotalParts)

	// the first part runs in the background
	f.svc.Wait()
	view, _ = f.svc.Get(id)
	assert.Equal(t, "Part A", view.Script)
	assert.Equal(t, 1, view.Sequence.CurrentPart)
	assert.True(t, view.Sequence.Active)
	assert.Equal(t, string(StateSequentialActive), view.State)

	res, err := f.svc.NextPart(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, "Part B", res.Part)
	assert.Equal(t, "Part A\n\nPart B", res.Session.Script)
	assert.False(t, res.Session.Sequence.Active)
	assert.Equal(t, string(StateReady), res.Session.State)

	// a further step is a no-op
	res, err = f.svc.NextPart(ctx, id)
	require.NoError(t, err)
	assert.True(t, res.Done)
	assert.Equal(t, "Part A\n\nPart B", res.Session.Script)
	assert.Contains(t, f.sink.types(), models.EventSequenceFinished)
	f.writer.AssertExpectations(t)
}

func TestSequentialAutoDriveRunsToCompletion(t *testing.T) {
	f := newSessionFixture(t)
	id := f.outlineSession(t)

	f.writer.On("GeneratePart", mock.Anything, mock.Anything, "", mock.Anything, mock.Anything).Return("Part A", nil).Once()
	f.writer.On("GeneratePart", mock.Anything, mock.Anything, "Part A", mock.Anything, mock.Anything).Return("Part B", nil).Once()

	_, err := f.svc.StartSequential(context.Background(), id, true)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		v, _ := f.svc.Get(id)
		return v.State == string(StateReady)
	}, 2*time.Second, 5*time.Millisecond)
	f.svc.Wait()

	view, _ := f.svc.Get(id)
	assert.Equal(t, "Part A\n\nPart B", view.Script)
	assert.False(t, view.Sequence.Active)
	assert.Equal(t, 2, view.Sequence.CurrentPart)
}

func TestSequentialPartFailureKeepsEarlierParts(t *testing.T) {
	f := newSessionFixture(t)
	id := f.outlineSession(t)
	ctx := context.Background()

	f.writer.On("GeneratePart", mock.Anything, mock.Anything, "", mock.Anything, mock.Anything).Return("Part A", nil).Once()
	f.writer.On("GeneratePart", mock.Anything, mock.Anything, "Part A", mock.Anything, mock.Anything).Return("", errors.New("rate limited")).Once()

	_, err := f.svc.StartSequential(ctx, id, false)
	require.NoError(t, err)
	f.svc.Wait()

	res, err := f.svc.NextPart(ctx, id)
	require.Error(t, err)
	assert.True(t, apperrors.IsPartialSequenceError(err))
	assert.Equal(t, "Part A", res.Session.Script)
	assert.False(t, res.Session.Sequence.Active)
	assert.Equal(t, 1, res.Session.Sequence.CurrentPart)
	assert.Equal(t, string(StateReady), res.Session.State)
	assert.NotEmpty(t, res.Session.Errors[string(ActionPart)])
}

func TestStartSequentialRequiresOutline(t *testing.T) {
	f := newSessionFixture(t)
	id := f.readySession(t, "plain script, no outline")

	_, err := f.svc.StartSequential(context.Background(), id, false)
	assert.True(t, apperrors.IsValidationError(err))
}

func TestStopSequentialThenGenerateAbandons(t *testing.T) {
	f := newSessionFixture(t)
	id := f.outlineSession(t)
	ctx := context.Background()

	f.writer.On("GeneratePart", mock.Anything, mock.Anything, "", mock.Anything, mock.Anything).Return("Part A", nil).Once()
	_, err := f.svc.StartSequential(ctx, id, false)
	require.NoError(t, err)
	f.svc.Wait()

	view, err := f.svc.StopSequential(id)
	require.NoError(t, err)
	assert.Equal(t, string(StateReady), view.State)
	assert.False(t, view.Sequence.Active)
	assert.Equal(t, 2, view.Sequence.TotalParts)

	f.writer.On("GenerateScript", mock.Anything, mock.Anything).Return("fresh", nil).Once()
	view, err = f.svc.Generate(ctx, id, videoParams("Coffee", 600))
	require.NoError(t, err)
	assert.Zero(t, view.Sequence.TotalParts)
	assert.Zero(t, view.Sequence.CurrentPart)
	assert.Equal(t, "fresh", view.Script)
}

func TestLoadThenSaveRoundTripsEntry(t *testing.T) {
	f := newSessionFixture(t)
	id := f.readySession(t, "saved script")
	ctx := context.Background()

	f.writer.On("ExtractDialogue", mock.Anything, "saved script", "Vietnamese").Return("lines", nil).Once()
	_, err := f.svc.ExtractDialogue(ctx, id)
	require.NoError(t, err)

	first, err := f.svc.SaveToLibrary(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, first)

	other := f.svc.Create().ID
	view, err := f.svc.LoadFromLibrary(ctx, other, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "saved script", view.Script)
	assert.True(t, view.Cache.HasDialogue)
	assert.True(t, view.Cache.HasSavedToLibrary)
	assert.Equal(t, string(StateReady), view.State)

	// served from the restored cache, no provider call
	d, err := f.svc.ExtractDialogue(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, "lines", d)

	second, err := f.svc.SaveToLibrary(ctx, other)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)

	a, _ := json.Marshal(models.LibraryEntry{Topic: first.Topic, Script: first.Script, CachedData: first.CachedData})
	b, _ := json.Marshal(models.LibraryEntry{Topic: second.Topic, Script: second.Script, CachedData: second.CachedData})
	assert.JSONEq(t, string(a), string(b))
	f.writer.AssertExpectations(t)
}

func TestLoadFromLibraryRejectedWhileGenerating(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()
	entry, err := f.library.Save(ctx, "Stored", "stored script", models.CachedData{})
	require.NoError(t, err)
	require.NotNil(t, entry)

	id := f.svc.Create().ID
	release := make(chan struct{})
	f.writer.On("GenerateScript", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).Return("fresh script", nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Generate(ctx, id, videoParams("Coffee", 600))
		done <- err
	}()

	require.Eventually(t, func() bool {
		v, _ := f.svc.Get(id)
		return v.State == string(StateGenerating)
	}, 2*time.Second, 5*time.Millisecond)

	_, err = f.svc.LoadFromLibrary(ctx, id, entry.ID)
	assert.True(t, apperrors.IsConflictError(err))

	close(release)
	require.NoError(t, <-done)

	view, err := f.svc.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "fresh script", view.Script)
	assert.False(t, view.Cache.HasSavedToLibrary)
}

func TestSaveToLibraryBlankIsNoop(t *testing.T) {
	f := newSessionFixture(t)
	id := f.svc.Create().ID

	entry, err := f.svc.SaveToLibrary(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, entry)

	list, err := f.library.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSessionNotFound(t *testing.T) {
	f := newSessionFixture(t)
	_, err := f.svc.Get("missing")
	assert.True(t, apperrors.IsNotFoundError(err))
	assert.True(t, apperrors.IsNotFoundError(f.svc.Delete("missing")))
}
