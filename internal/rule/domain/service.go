package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req WriteRequest) (*Response, error)
	Update(ctx context.Context, id string, req WriteRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	ListInForce(ctx context.Context, periodValue string) ([]Response, error)
}

// WriteRequest carries the full rule aggregate. Updates replace the complete
// tier and condition sets; there is no partial child edit.
type WriteRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	ValidFrom   *string            `json:"valid_from"`
	ValidUntil  *string            `json:"valid_until"`
	Active      *bool              `json:"active"`
	Tiers       []TierRequest      `json:"tiers"`
	Conditions  []ConditionRequest `json:"conditions"`
}

type TierRequest struct {
	IndicatorCode string   `json:"indicator_code"`
	RangeMin      float64  `json:"range_min"`
	RangeMax      *float64 `json:"range_max"`
	PayoutValue   float64  `json:"payout_value"`
	PayoutKind    string   `json:"payout_kind"`
}

type ConditionRequest struct {
	IndicatorCode  string  `json:"indicator_code"`
	Operator       string  `json:"operator"`
	ReferenceValue float64 `json:"reference_value"`
}

type Response struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	ValidFrom   *string             `json:"valid_from,omitempty"`
	ValidUntil  *string             `json:"valid_until,omitempty"`
	Active      bool                `json:"active"`
	Tiers       []TierResponse      `json:"tiers"`
	Conditions  []ConditionResponse `json:"conditions"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

type TierResponse struct {
	ID            string   `json:"id"`
	IndicatorCode string   `json:"indicator_code"`
	RangeMin      float64  `json:"range_min"`
	RangeMax      *float64 `json:"range_max,omitempty"`
	PayoutValue   float64  `json:"payout_value"`
	PayoutKind    string   `json:"payout_kind"`
	Position      int      `json:"position"`
}

type ConditionResponse struct {
	ID             string  `json:"id"`
	IndicatorCode  string  `json:"indicator_code"`
	Operator       string  `json:"operator"`
	ReferenceValue float64 `json:"reference_value"`
	Position       int     `json:"position"`
}

var (
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidPeriod     = errors.New("invalid_period")
	ErrInvalidWindow     = errors.New("invalid_validity_window")
	ErrInvalidTierRange  = errors.New("invalid_tier_range")
	ErrInvalidPayoutKind = errors.New("invalid_payout_kind")
	ErrInvalidOperator   = errors.New("invalid_operator")
	ErrMixedTierIndicator = errors.New("mixed_tier_indicator")
	ErrUnknownIndicator  = errors.New("unknown_indicator")
	ErrNotFound          = errors.New("not_found")
)

func ParseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(value)
}
