package middleware

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name so clients can match errors to payload keys
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// notblank rejects names made of whitespace only, which "required" lets through
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(err)
	}

	return v
}

// ValidateRequest validates a struct with validation tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// DecodeAndValidate decodes JSON request body and validates it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return ValidateRequest(v)
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FormatValidationErrors converts validator errors to a readable format.
// Other errors, such as malformed JSON, yield nil.
func FormatValidationErrors(err error) []ValidationError {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}

	out := make([]ValidationError, 0, len(validationErrors))
	for _, e := range validationErrors {
		out = append(out, ValidationError{Field: e.Field(), Message: errorMessage(e)})
	}
	return out
}

var comparisonMessages = map[string]string{
	"gt":  "Value must be greater than ",
	"gte": "Value must be greater than or equal to ",
	"lt":  "Value must be less than ",
	"lte": "Value must be less than or equal to ",
}

func errorMessage(e validator.FieldError) string {
	collection := e.Kind() == reflect.Slice || e.Kind() == reflect.Map

	switch tag := e.Tag(); tag {
	case "required", "notblank":
		return "This field is required"
	case "min":
		if collection {
			return "At least " + e.Param() + " entries are required"
		}
		return "Value is too short"
	case "max":
		if collection {
			return "At most " + e.Param() + " entries are allowed"
		}
		return "Value is too long"
	default:
		if prefix, ok := comparisonMessages[tag]; ok {
			return prefix + e.Param()
		}
		return "Invalid value"
	}
}
