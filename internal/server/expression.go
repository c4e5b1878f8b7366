package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	indicatordomain "github.com/kpiflow/incento/internal/indicator/domain"
)

type testExpressionRequest struct {
	Expression   string             `json:"expression"`
	SampleValues map[string]float64 `json:"sample_values"`
}

// TestExpression validates an expression and evaluates it against sample
// values. Malformed expressions come back as valid=false with the parse
// error, not as an HTTP error.
func (s *Server) TestExpression(c *gin.Context) {
	var req testExpressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Expression) == "" {
		AbortWithError(c, newValidationError("expression", "required", "expression is required"))
		return
	}

	resp, err := s.indicatorSvc.TestExpression(c.Request.Context(), indicatordomain.TestExpressionRequest{
		Expression:   strings.TrimSpace(req.Expression),
		SampleValues: req.SampleValues,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
