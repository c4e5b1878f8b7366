// Package domain defines the calculation engine boundary: one synchronous
// batch computation per period, persisted atomically as a run.
package domain

import (
	"context"
	"errors"
	"time"

	rundomain "github.com/kpiflow/incento/internal/run/domain"
)

type Service interface {
	// Run executes the payout calculation for one period and persists the
	// run with all result rows in a single transaction. Re-running the same
	// period creates a new run with identical numbers; callers delete and
	// recompute to redo a period.
	Run(ctx context.Context, req RunRequest) (*RunReport, error)
}

type RunRequest struct {
	Period string `json:"period"`
	RunBy  string `json:"run_by"`
}

type RunReport struct {
	RunID          string                  `json:"run_id"`
	Period         string                  `json:"period"`
	Status         string                  `json:"status"`
	RunBy          string                  `json:"run_by"`
	RunAt          time.Time               `json:"run_at"`
	TotalEmployees int                     `json:"total_employees"`
	TotalRules     int                     `json:"total_rules"`
	TotalPayout    float64                 `json:"total_payout"`
	Rows           []rundomain.RowResponse `json:"rows"`
}

var (
	ErrInvalidPeriod  = errors.New("invalid_period")
	ErrNoFacts        = errors.New("no_facts_for_period")
	ErrNoRulesInForce = errors.New("no_rules_in_force")
)
