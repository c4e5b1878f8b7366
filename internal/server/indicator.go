package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	indicatordomain "github.com/kpiflow/incento/internal/indicator/domain"
)

type createIndicatorRequest struct {
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Unit        string  `json:"unit"`
	Kind        string  `json:"kind"`
	Expression  *string `json:"expression"`
	Active      *bool   `json:"active"`
}

type updateIndicatorRequest struct {
	Code        *string `json:"code,omitempty"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Unit        *string `json:"unit,omitempty"`
	Expression  *string `json:"expression,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

func (s *Server) CreateIndicator(c *gin.Context) {
	var req createIndicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.indicatorSvc.Create(c.Request.Context(), indicatordomain.CreateRequest{
		Code:        strings.TrimSpace(req.Code),
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Unit:        strings.TrimSpace(req.Unit),
		Kind:        strings.TrimSpace(req.Kind),
		Expression:  req.Expression,
		Active:      req.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListIndicators(c *gin.Context) {
	resp, err := s.indicatorSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetIndicator(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.indicatorSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateIndicator(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req updateIndicatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.indicatorSvc.Update(c.Request.Context(), indicatordomain.UpdateRequest{
		ID:          id,
		Code:        trimStringPtr(req.Code),
		Name:        trimStringPtr(req.Name),
		Description: trimStringPtr(req.Description),
		Unit:        trimStringPtr(req.Unit),
		Expression:  req.Expression,
		Active:      req.Active,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateIndicator(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.indicatorSvc.Deactivate(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "active": false}})
}

// ResolveIndicatorValue computes one indicator's value for an employee and
// period. The value is null when the indicator is not computable.
func (s *Server) ResolveIndicatorValue(c *gin.Context) {
	var query struct {
		Period     string `form:"period"`
		EmployeeID string `form:"employee_id"`
		Code       string `form:"code"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(query.EmployeeID) == "" {
		AbortWithError(c, newValidationError("employee_id", "required", "employee_id is required"))
		return
	}
	if strings.TrimSpace(query.Code) == "" {
		AbortWithError(c, newValidationError("code", "required", "code is required"))
		return
	}

	value, err := s.indicatorSvc.ResolveValue(
		c.Request.Context(),
		strings.TrimSpace(query.Period),
		strings.TrimSpace(query.EmployeeID),
		strings.TrimSpace(query.Code),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"period":      strings.TrimSpace(query.Period),
		"employee_id": strings.TrimSpace(query.EmployeeID),
		"code":        strings.ToUpper(strings.TrimSpace(query.Code)),
		"value":       value,
	}})
}

func trimStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
