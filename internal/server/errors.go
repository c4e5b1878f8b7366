package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	calculationdomain "github.com/kpiflow/incento/internal/calculation/domain"
	factdomain "github.com/kpiflow/incento/internal/fact/domain"
	indicatordomain "github.com/kpiflow/incento/internal/indicator/domain"
	rundomain "github.com/kpiflow/incento/internal/run/domain"
	ruledomain "github.com/kpiflow/incento/internal/rule/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := err.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case errors.Is(err, indicatordomain.ErrInvalidID),
		errors.Is(err, indicatordomain.ErrInvalidCode),
		errors.Is(err, indicatordomain.ErrInvalidName),
		errors.Is(err, indicatordomain.ErrInvalidUnit),
		errors.Is(err, indicatordomain.ErrInvalidKind),
		errors.Is(err, indicatordomain.ErrInvalidPeriod),
		errors.Is(err, indicatordomain.ErrInvalidExpression),
		errors.Is(err, indicatordomain.ErrExpressionRequired),
		errors.Is(err, indicatordomain.ErrExpressionForbidden),
		errors.Is(err, indicatordomain.ErrUnknownReference),
		errors.Is(err, indicatordomain.ErrDerivedReference):
		return true
	case errors.Is(err, factdomain.ErrInvalidPeriod),
		errors.Is(err, factdomain.ErrEmptyImport),
		errors.Is(err, factdomain.ErrInvalidEmployee),
		errors.Is(err, factdomain.ErrUnknownIndicator):
		return true
	case errors.Is(err, ruledomain.ErrInvalidID),
		errors.Is(err, ruledomain.ErrInvalidName),
		errors.Is(err, ruledomain.ErrInvalidPeriod),
		errors.Is(err, ruledomain.ErrInvalidWindow),
		errors.Is(err, ruledomain.ErrInvalidTierRange),
		errors.Is(err, ruledomain.ErrInvalidPayoutKind),
		errors.Is(err, ruledomain.ErrInvalidOperator),
		errors.Is(err, ruledomain.ErrMixedTierIndicator),
		errors.Is(err, ruledomain.ErrUnknownIndicator):
		return true
	case errors.Is(err, rundomain.ErrInvalidID),
		errors.Is(err, rundomain.ErrInvalidStatus):
		return true
	case errors.Is(err, calculationdomain.ErrInvalidPeriod),
		errors.Is(err, calculationdomain.ErrNoFacts),
		errors.Is(err, calculationdomain.ErrNoRulesInForce):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, indicatordomain.ErrCodeTaken),
		errors.Is(err, indicatordomain.ErrCodeImmutable):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, indicatordomain.ErrNotFound),
		errors.Is(err, ruledomain.ErrNotFound),
		errors.Is(err, rundomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_id":
		return "id"
	case "invalid_code", "code_taken", "code_immutable":
		return "code"
	case "invalid_name":
		return "name"
	case "invalid_unit":
		return "unit"
	case "invalid_kind":
		return "kind"
	case "invalid_period", "no_facts_for_period", "no_rules_in_force":
		return "period"
	case "invalid_expression", "expression_required", "expression_forbidden",
		"unknown_reference", "derived_reference":
		return "expression"
	case "invalid_validity_window":
		return "valid_until"
	case "invalid_tier_range", "mixed_tier_indicator":
		return "tiers"
	case "invalid_payout_kind":
		return "payout_kind"
	case "invalid_operator":
		return "operator"
	case "invalid_status":
		return "status"
	case "empty_import":
		return "rows"
	case "invalid_employee":
		return "employee_id"
	case "unknown_indicator":
		return "indicator_code"
	default:
		return "request"
	}
}

func validationErrorMessage(code string) string {
	switch code {
	case "no_facts_for_period":
		return "no facts exist for the period"
	case "no_rules_in_force":
		return "no rules are in force for the period"
	case "code_taken":
		return "code already in use"
	case "code_immutable":
		return "code cannot change once referenced"
	case "derived_reference":
		return "derived indicators may only reference base indicators"
	default:
		return code
	}
}
