package domain

import (
	"context"
	"errors"
	"time"
)

// Service is the run ledger: pure data access over committed runs. The
// calculation engine is the only writer of runs and rows.
type Service interface {
	List(ctx context.Context) ([]SummaryResponse, error)
	Get(ctx context.Context, id string) (*DetailResponse, error)
	SetStatus(ctx context.Context, id, status string) (*SummaryResponse, error)
	Delete(ctx context.Context, id string) error
}

type SummaryResponse struct {
	ID            string    `json:"id"`
	Period        string    `json:"period"`
	Status        string    `json:"status"`
	RunBy         string    `json:"run_by"`
	RunAt         time.Time `json:"run_at"`
	EmployeeCount int64     `json:"employee_count"`
	RowCount      int64     `json:"row_count"`
	TotalPayout   float64   `json:"total_payout"`
}

type RowResponse struct {
	ID             string   `json:"id"`
	EmployeeID     string   `json:"employee_id"`
	EmployeeName   string   `json:"employee_name"`
	RuleID         string   `json:"rule_id"`
	RuleName       string   `json:"rule_name"`
	IndicatorValue *float64 `json:"indicator_value"`
	PayoutValue    float64  `json:"payout_value"`
	Detail         Detail   `json:"detail"`
}

type DetailResponse struct {
	SummaryResponse
	Rows []RowResponse `json:"rows"`
}

var (
	ErrInvalidID     = errors.New("invalid_id")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrNotFound      = errors.New("not_found")
)
