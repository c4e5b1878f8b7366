package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	// Import upserts a batch of facts for one period by natural key.
	Import(ctx context.Context, req ImportRequest) (*ImportResult, error)
	List(ctx context.Context, periodValue string) ([]Response, error)
}

type ImportRequest struct {
	Period string      `json:"period"`
	Rows   []ImportRow `json:"rows"`
}

type ImportRow struct {
	EmployeeID    string  `json:"employee_id"`
	EmployeeName  string  `json:"employee_name"`
	IndicatorCode string  `json:"indicator_code"`
	Numerator     float64 `json:"numerator"`
	Denominator   float64 `json:"denominator"`
}

type ImportResult struct {
	ImportID string `json:"import_id"`
	Period   string `json:"period"`
	Rows     int    `json:"rows"`
}

type Response struct {
	ID            string    `json:"id"`
	Period        string    `json:"period"`
	EmployeeID    string    `json:"employee_id"`
	EmployeeName  string    `json:"employee_name"`
	IndicatorCode string    `json:"indicator_code"`
	Numerator     float64   `json:"numerator"`
	Denominator   float64   `json:"denominator"`
	UpdatedAt     time.Time `json:"updated_at"`
}

var (
	ErrInvalidPeriod    = errors.New("invalid_period")
	ErrEmptyImport      = errors.New("empty_import")
	ErrInvalidEmployee  = errors.New("invalid_employee")
	ErrUnknownIndicator = errors.New("unknown_indicator")
)
