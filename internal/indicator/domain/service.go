package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	GetByID(ctx context.Context, id string) (*Response, error)
	GetByCode(ctx context.Context, code string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Deactivate(ctx context.Context, id string) error

	// ResolveValue computes the value of an indicator (base or derived) for
	// one employee in one period. A nil value with a nil error means the
	// indicator is not computable for that employee and period.
	ResolveValue(ctx context.Context, periodValue, employeeID, code string) (*float64, error)

	// TestExpression validates an expression and evaluates it against
	// caller-supplied sample values without touching the catalog.
	TestExpression(ctx context.Context, req TestExpressionRequest) (*TestExpressionResponse, error)
}

type CreateRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Unit        string  `json:"unit"`
	Kind        string  `json:"kind"`
	Expression  *string `json:"expression"`
	Active      *bool   `json:"active"`
}

type UpdateRequest struct {
	ID          string  `json:"id"`
	Code        *string `json:"code,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Unit        *string `json:"unit,omitempty"`
	Expression  *string `json:"expression,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

type TestExpressionRequest struct {
	Expression   string             `json:"expression"`
	SampleValues map[string]float64 `json:"sample_values"`
}

type TestExpressionResponse struct {
	Valid                bool     `json:"valid"`
	ReferencedIndicators []string `json:"referenced_indicators"`
	SampleResult         *float64 `json:"sample_result"`
	Error                string   `json:"error,omitempty"`
}

type Response struct {
	ID          string    `json:"id"`
	Code        string    `json:"code"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Unit        string    `json:"unit"`
	Kind        string    `json:"kind"`
	Expression  *string   `json:"expression,omitempty"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidCode        = errors.New("invalid_code")
	ErrInvalidName        = errors.New("invalid_name")
	ErrInvalidUnit        = errors.New("invalid_unit")
	ErrInvalidKind        = errors.New("invalid_kind")
	ErrInvalidPeriod      = errors.New("invalid_period")
	ErrInvalidExpression  = errors.New("invalid_expression")
	ErrExpressionRequired = errors.New("expression_required")
	ErrExpressionForbidden = errors.New("expression_forbidden")
	ErrUnknownReference   = errors.New("unknown_reference")
	ErrDerivedReference   = errors.New("derived_reference")
	ErrCodeTaken          = errors.New("code_taken")
	ErrCodeImmutable      = errors.New("code_immutable")
	ErrNotFound           = errors.New("not_found")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
