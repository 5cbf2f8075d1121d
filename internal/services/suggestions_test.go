package services

import (
	"context"
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
)

func TestSuggestionsRequireTopic(t *testing.T) {
	writer := &mocks.ScriptWriter{}
	svc := NewSuggestionService(writer, time.Minute)

	_, err := svc.Topics(context.Background(), "  ")
	assert.True(t, apperrors.IsValidationError(err))
	_, err = svc.Keywords(context.Background(), "")
	assert.True(t, apperrors.IsValidationError(err))
	_, err = svc.Style(context.Background(), "")
	assert.True(t, apperrors.IsValidationError(err))
	writer.AssertNotCalled(t, "SuggestTopics", mock.Anything, mock.Anything)
}

func TestSuggestionsCachedPerTopic(t *testing.T) {
	writer := &mocks.ScriptWriter{}
	svc := NewSuggestionService(writer, time.Minute)
	ctx := context.Background()

	writer.On("SuggestTopics", mock.Anything, "Coffee").Return([]string{"a", "b"}, nil).Once()
	writer.On("SuggestStyle", mock.Anything, "Coffee").Return(models.StyleOptions{Tone: "Humorous", Style: "Narrative", Voice: "Friendly"}, nil).Once()

	first, err := svc.Topics(ctx, "Coffee")
	require.NoError(t, err)
	second, err := svc.Topics(ctx, " coffee ")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	style, err := svc.Style(ctx, "Coffee")
	require.NoError(t, err)
	assert.Equal(t, "Humorous", style.Tone)
	_, err = svc.Style(ctx, "Coffee")
	require.NoError(t, err)

	writer.AssertExpectations(t)
}

func TestSuggestionErrorsAreNotCached(t *testing.T) {
	writer := &mocks.ScriptWriter{}
	svc := NewSuggestionService(writer, time.Minute)
	ctx := context.Background()

	writer.On("SuggestKeywords", mock.Anything, "Coffee").Return(nil, errors.New("quota")).Once()
	writer.On("SuggestKeywords", mock.Anything, "Coffee").Return([]string{"espresso"}, nil).Once()

	_, err := svc.Keywords(ctx, "Coffee")
	require.Error(t, err)
	got, err := svc.Keywords(ctx, "Coffee")
	require.NoError(t, err)
	assert.Equal(t, []string{"espresso"}, got)
}

func TestSuggestionConcurrentRequestsShareOneCall(t *testing.T) {
	writer := &mocks.ScriptWriter{}
	svc := NewSuggestionService(writer, time.Minute)

	release := make(chan struct{})
	writer.On("SuggestTopics", mock.Anything, "Rome").
		Run(func(mock.Arguments) { <-release }).
		Return([]string{"x"}, nil).Once()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := svc.Topics(context.Background(), "Rome")
			assert.NoError(t, err)
			assert.Equal(t, []string{"x"}, got)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	writer.AssertNumberOfCalls(t, "SuggestTopics", 1)
}
