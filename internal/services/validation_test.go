package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/models"
)

func TestValidateParams(t *testing.T) {
	valid := normalizeParams(models.GenerationParams{Topic: "Coffee"})

	tests := []struct {
		name   string
		mutate func(p *models.GenerationParams)
		ok     bool
	}{
		{"defaults", func(p *models.GenerationParams) {}, true},
		{"blank topic", func(p *models.GenerationParams) { p.Topic = "  " }, false},
		{"numeric parts", func(p *models.GenerationParams) { p.ScriptParts = "4" }, true},
		{"bad parts", func(p *models.GenerationParams) { p.ScriptParts = "many" }, false},
		{"parts out of range", func(p *models.GenerationParams) { p.ScriptParts = "0" }, false},
		{"podcast speakers", func(p *models.GenerationParams) {
			p.ScriptType = models.ScriptTypePodcast
			p.NumberOfSpeakers = "2"
		}, true},
		{"unknown type", func(p *models.GenerationParams) { p.ScriptType = "Blog" }, false},
		{"too short", func(p *models.GenerationParams) { p.WordCount = 10 }, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			err := ValidateParams(p)
			if tc.ok {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperrors.IsValidationError(err))
		})
	}
}

func TestValidateParamsBlankTopicMessage(t *testing.T) {
	err := ValidateParams(models.GenerationParams{})
	assert.EqualError(t, err, "please enter or pick a specific video topic")
}

func TestNormalizeParamsFillsDefaults(t *testing.T) {
	p := normalizeParams(models.GenerationParams{Topic: "  Coffee  ", WordCount: 1500})
	def := models.DefaultGenerationParams()

	assert.Equal(t, "Coffee", p.Topic)
	assert.Equal(t, 1500, p.WordCount)
	assert.Equal(t, def.TargetAudience, p.TargetAudience)
	assert.Equal(t, def.StyleOptions, p.StyleOptions)
	assert.Equal(t, models.Auto, p.ScriptParts)
	assert.Equal(t, models.ScriptTypeVideo, p.ScriptType)
}
