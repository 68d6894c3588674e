package v0

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/agentregistry-dev/promptregistry/internal/registry/service"
	"github.com/agentregistry-dev/promptregistry/internal/registry/template"
	"github.com/agentregistry-dev/promptregistry/internal/registry/validators"
	"github.com/agentregistry-dev/promptregistry/pkg/registry/database"
)

// toHumaError maps service errors onto HTTP status codes. action describes
// the failed operation for 500 responses.
func toHumaError(err error, action string) error {
	var fieldErrs validators.ValidationErrors
	switch {
	case errors.Is(err, database.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, database.ErrConflict):
		return huma.Error409Conflict(err.Error())
	case errors.Is(err, service.ErrNotATemplate), errors.Is(err, template.ErrMissingVariable):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.As(err, &fieldErrs):
		details := make([]error, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, &huma.ErrorDetail{
				Location: "body." + fe.Field,
				Message:  fe.Message,
			})
		}
		return huma.Error400BadRequest("validation failed", details...)
	case errors.Is(err, database.ErrInvalidInput):
		return huma.Error400BadRequest(err.Error())
	default:
		return huma.Error500InternalServerError(action, err)
	}
}
