// internal/prompts/builder_test.go
package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/ScriptStudio/internal/models"
)

func TestEmbeddedTemplatesParse(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	for _, name := range []string{Script, Outline, Part, Revise, Dialogue, Topics, Keywords, Style, VisualPrompt, AllVisualPrompts, VideoPlan} {
		assert.Contains(t, b.Names(), name)
	}
}

func TestBuildScriptPrompt(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	params := models.DefaultGenerationParams()
	params.Topic = "Lịch sử cà phê"
	params.Keywords = "espresso, robusta"
	params.ScriptParts = "3"

	p, err := b.Build(Script, FromParams(params))
	require.NoError(t, err)

	assert.Contains(t, p.User, "Lịch sử cà phê")
	assert.Contains(t, p.User, "espresso, robusta")
	assert.Contains(t, p.User, "exactly 3 parts")
	assert.NotContains(t, p.User, "speakers")
	assert.False(t, p.JSON)
	assert.NotEmpty(t, p.System)
}

func TestBuildPodcastPromptMentionsSpeakers(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	params := models.DefaultGenerationParams()
	params.Topic = "AI news"
	params.ScriptType = models.ScriptTypePodcast
	params.NumberOfSpeakers = "2"

	p, err := b.Build(Script, FromParams(params))
	require.NoError(t, err)
	assert.Contains(t, p.User, "Number of speakers: 2")
	assert.NotContains(t, p.User, "exactly")
}

func TestOutlinePromptCarriesMarker(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	p, err := b.Build(Outline, Data{Topic: "Rome", Audience: "English", WordCount: 3000})
	require.NoError(t, err)
	assert.Contains(t, p.User, "### Dàn Ý Chi Tiết")
	assert.Contains(t, p.User, "---")
}

func TestJSONTemplatesAreFlagged(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	for _, name := range []string{Topics, Keywords, Style, VisualPrompt, AllVisualPrompts, VideoPlan} {
		p, err := b.Build(name, Data{Topic: "x", Scene: "y", Script: "z"})
		require.NoError(t, err, name)
		assert.True(t, p.JSON, name)
	}
}

func TestBuildUnknownTemplate(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	_, err = b.Build("nope", Data{})
	assert.Error(t, err)
}

func TestParseRejectsEmptyUser(t *testing.T) {
	_, err := Parse([]byte("broken:\n  system: hi\n"))
	assert.Error(t, err)
}
