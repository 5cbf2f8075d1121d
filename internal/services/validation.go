// internal/services/validation.go
package services

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/Corphon/ScriptStudio/internal/errors"
	"github.com/Corphon/ScriptStudio/internal/models"
)

var (
	paramsValidator     *validator.Validate
	paramsValidatorOnce sync.Once
)

func getValidator() *validator.Validate {
	paramsValidatorOnce.Do(func() {
		v := validator.New()
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("auto_or_count", func(fl validator.FieldLevel) bool {
			raw := strings.TrimSpace(fl.Field().String())
			if raw == "" || raw == models.Auto {
				return true
			}
			n, err := strconv.Atoi(raw)
			return err == nil && n >= 1 && n <= 20
		})
		paramsValidator = v
	})
	return paramsValidator
}

// ValidateParams checks generation params before any provider call
func ValidateParams(params models.GenerationParams) error {
	if strings.TrimSpace(params.Topic) == "" {
		return apperrors.NewValidationError("please enter or pick a specific video topic", nil)
	}

	err := getValidator().Struct(params)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
		fe := verrs[0]
		return apperrors.NewValidationError(
			fmt.Sprintf("invalid value for %s (rule %s)", fe.Namespace(), fe.Tag()), err)
	}
	return apperrors.NewValidationError("invalid generation parameters", err)
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors)
	if ok {
		*target = verrs
	}
	return ok
}

// normalizeParams fills optional fields with their form defaults
func normalizeParams(params models.GenerationParams) models.GenerationParams {
	def := models.DefaultGenerationParams()
	params.Topic = strings.TrimSpace(params.Topic)
	if params.TargetAudience == "" {
		params.TargetAudience = def.TargetAudience
	}
	if params.StyleOptions.Tone == "" {
		params.StyleOptions.Tone = def.StyleOptions.Tone
	}
	if params.StyleOptions.Style == "" {
		params.StyleOptions.Style = def.StyleOptions.Style
	}
	if params.StyleOptions.Voice == "" {
		params.StyleOptions.Voice = def.StyleOptions.Voice
	}
	if params.WordCount == 0 {
		params.WordCount = def.WordCount
	}
	if params.ScriptParts == "" {
		params.ScriptParts = models.Auto
	}
	if params.ScriptType == "" {
		params.ScriptType = def.ScriptType
	}
	if params.NumberOfSpeakers == "" {
		params.NumberOfSpeakers = models.Auto
	}
	return params
}
