package response

import (
	"errors"
	"net/http"

	"github.com/staffma/staffma-backend/internal/domain/auth"
	"github.com/staffma/staffma-backend/internal/domain/employee"
	"github.com/staffma/staffma-backend/internal/domain/payroll"
	"github.com/staffma/staffma-backend/internal/domain/user"
	"github.com/staffma/staffma-backend/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth domain errors
	case errors.Is(err, auth.ErrTokenExpired):
		Unauthorized(w, "Token expired")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingSession):
		Unauthorized(w, err.Error())

	// User domain errors
	case errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, err.Error())
	case errors.Is(err, user.ErrCompanyIDRequired):
		Forbidden(w, err.Error())

	// Employee domain errors
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// Payroll domain errors
	case errors.Is(err, payroll.ErrPayrollSettingsNotFound):
		NotFound(w, "Payroll settings not found")
	case errors.Is(err, payroll.ErrPayItemNotFound):
		NotFound(w, "Payroll item not found")
	case errors.Is(err, payroll.ErrTaxBracketNotFound):
		NotFound(w, "Tax bracket not found")
	case errors.Is(err, payroll.ErrTaxTemplateNotFound):
		NotFound(w, err.Error())
	case errors.Is(err, payroll.ErrPayrollRecordNotFound):
		NotFound(w, "Payroll record not found")
	case errors.Is(err, payroll.ErrPayrollSettingsRequired):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, payroll.ErrNoActiveEmployees):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, payroll.ErrInvalidPeriod):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, payroll.ErrNoMatchingTaxBracket):
		UnprocessableEntity(w, err.Error())
	case errors.Is(err, payroll.ErrUnsupportedTaxSheet), errors.Is(err, payroll.ErrEmptyTaxSheet):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, payroll.ErrMalformedTaxSheet):
		BadRequest(w, "Tax bracket file is malformed", nil)
	case errors.Is(err, payroll.ErrPayrollAlreadyProcessed):
		Conflict(w, err.Error())
	case errors.Is(err, payroll.ErrInvalidStatusTransition):
		Conflict(w, err.Error())

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
