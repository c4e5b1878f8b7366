package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	factdomain "github.com/kpiflow/incento/internal/fact/domain"
)

type importFactsRequest struct {
	Period string          `json:"period"`
	Rows   []importFactRow `json:"rows"`
}

type importFactRow struct {
	EmployeeID    string  `json:"employee_id"`
	EmployeeName  string  `json:"employee_name"`
	IndicatorCode string  `json:"indicator_code"`
	Numerator     float64 `json:"numerator"`
	Denominator   float64 `json:"denominator"`
}

func (s *Server) ImportFacts(c *gin.Context) {
	var req importFactsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rows := make([]factdomain.ImportRow, 0, len(req.Rows))
	for _, row := range req.Rows {
		rows = append(rows, factdomain.ImportRow{
			EmployeeID:    strings.TrimSpace(row.EmployeeID),
			EmployeeName:  strings.TrimSpace(row.EmployeeName),
			IndicatorCode: strings.TrimSpace(row.IndicatorCode),
			Numerator:     row.Numerator,
			Denominator:   row.Denominator,
		})
	}

	resp, err := s.factSvc.Import(c.Request.Context(), factdomain.ImportRequest{
		Period: strings.TrimSpace(req.Period),
		Rows:   rows,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListFacts(c *gin.Context) {
	var query struct {
		Period string `form:"period"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.factSvc.List(c.Request.Context(), strings.TrimSpace(query.Period))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
