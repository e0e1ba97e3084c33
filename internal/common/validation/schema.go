// Package validation validates worker job payloads against JSON Schema documents.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Schema wraps a compiled JSON Schema so workers compile once at construction.
type Schema struct {
	compiled *gojsonschema.Schema
}

// CompileSchema parses and compiles a JSON Schema document.
func CompileSchema(schemaJSON string) (*Schema, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompileSchema compiles a schema or panics. For package-level schema constants.
func MustCompileSchema(schemaJSON string) *Schema {
	s, err := CompileSchema(schemaJSON)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks a payload (a map or any JSON-marshalable value) against the schema.
func (s *Schema) Validate(payload interface{}) (*ValidationResult, error) {
	result, err := s.compiled.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}, nil
	}

	errors := make([]ValidationError, 0, len(result.Errors()))
	for _, resErr := range result.Errors() {
		errors = append(errors, ValidationError{
			Field:   resErr.Field(),
			Message: resErr.Description(),
			Code:    strings.ToUpper(resErr.Type()),
		})
	}

	return &ValidationResult{Valid: false, Errors: errors}, nil
}

// ValidateJSON checks a raw JSON document against the schema.
func (s *Schema) ValidateJSON(payload []byte) (*ValidationResult, error) {
	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	if result.Valid() {
		return &ValidationResult{Valid: true}, nil
	}

	errors := make([]ValidationError, 0, len(result.Errors()))
	for _, resErr := range result.Errors() {
		errors = append(errors, ValidationError{
			Field:   resErr.Field(),
			Message: resErr.Description(),
			Code:    strings.ToUpper(resErr.Type()),
		})
	}

	return &ValidationResult{Valid: false, Errors: errors}, nil
}

// GetErrorMessages returns a simple list of error messages
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// GetErrorsForField returns errors for a specific field
func (vr *ValidationResult) GetErrorsForField(field string) []ValidationError {
	var fieldErrors []ValidationError
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") || strings.HasPrefix(err.Field, field+"[") {
			fieldErrors = append(fieldErrors, err)
		}
	}
	return fieldErrors
}

// ValidateEmail validates email format
func ValidateEmail(email string) bool {
	emailPattern := regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	return emailPattern.MatchString(email)
}

// ValidatePhone validates basic phone number format
func ValidatePhone(phone string) bool {
	phonePattern := regexp.MustCompile(`^\+?[\d\s\-\(\)]{10,}$`)
	return phonePattern.MatchString(phone)
}
