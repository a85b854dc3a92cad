package handlers

import (
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"mockupstudio/internal/models"
)

// Validation limits for template fields.
const (
	maxTemplateNameLen  = 200
	maxTemplateStateLen = 2 << 20
	maxTags             = 20
	maxTagLen           = 40
	maxTemplateSide     = 10_000
)

// validate checks request structs. Field names in its errors are the JSON
// names the client sent.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterValidation("templatetype", func(fl validator.FieldLevel) bool {
		return models.TemplateType(fl.Field().String()).Valid()
	})
	return v
}

// validationMessage turns a validator error into one readable line per
// failed field.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += "=" + fe.Param()
		}
		parts = append(parts, msg)
	}
	return strings.Join(parts, "; ")
}

// validateTemplateName checks a template name and returns the first error
// found.
func validateTemplateName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "Template name is required."
	}
	if utf8.RuneCountInString(name) > maxTemplateNameLen {
		return "Template name is too long (max 200 characters)."
	}
	return ""
}

// validateTags checks template tags and returns the first error found.
func validateTags(tags []string) string {
	if len(tags) > maxTags {
		return "Too many tags (max 20)."
	}
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			return "Tags must not be empty."
		}
		if utf8.RuneCountInString(tag) > maxTagLen {
			return "Tag is too long (max 40 characters)."
		}
	}
	return ""
}
