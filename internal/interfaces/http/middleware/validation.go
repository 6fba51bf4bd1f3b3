package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/tuitionhub/backend/internal/interfaces/http/dto"
)

// SetupValidator makes validation errors name fields by their json or form tag
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
	}
}

// FormatValidationErrors formats validation errors into a standard response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, e := range validationErrors {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: getValidationMessage(e),
			})
		}
	}

	return dto.NewValidationErrorResponse("Request validation failed", requestID, details)
}

// HandleValidationError writes a 400 validation response. Errors that are
// not validator errors (malformed JSON, bad UUIDs) are reported without
// field details.
func HandleValidationError(c *gin.Context, err error) {
	resp := FormatValidationErrors(err, c.GetString(RequestIDKey))
	if len(resp.Error.Details) == 0 {
		resp.Error.Message = "Invalid request: " + err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}

// getValidationMessage renders the tags used by the request DTOs. Length
// limits on strings read as characters, on numbers and slices as values.
func getValidationMessage(e validator.FieldError) string {
	unit := ""
	if e.Kind() == reflect.String {
		unit = " characters"
	}
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min", "gte":
		return fmt.Sprintf("Must be at least %s%s", e.Param(), unit)
	case "max", "lte":
		return fmt.Sprintf("Must be at most %s%s", e.Param(), unit)
	case "oneof":
		return "Must be one of: " + strings.Join(strings.Fields(e.Param()), ", ")
	default:
		return fmt.Sprintf("Failed the %q check", e.Tag())
	}
}
