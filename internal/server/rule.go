package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	ruledomain "github.com/kpiflow/incento/internal/rule/domain"
)

type writeRuleRequest struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	ValidFrom   *string                `json:"valid_from"`
	ValidUntil  *string                `json:"valid_until"`
	Active      *bool                  `json:"active"`
	Tiers       []ruleTierRequest      `json:"tiers"`
	Conditions  []ruleConditionRequest `json:"conditions"`
}

type ruleTierRequest struct {
	IndicatorCode string   `json:"indicator_code"`
	RangeMin      float64  `json:"range_min"`
	RangeMax      *float64 `json:"range_max"`
	PayoutValue   float64  `json:"payout_value"`
	PayoutKind    string   `json:"payout_kind"`
}

type ruleConditionRequest struct {
	IndicatorCode  string  `json:"indicator_code"`
	Operator       string  `json:"operator"`
	ReferenceValue float64 `json:"reference_value"`
}

func (r writeRuleRequest) toDomain() ruledomain.WriteRequest {
	req := ruledomain.WriteRequest{
		Name:        strings.TrimSpace(r.Name),
		Description: strings.TrimSpace(r.Description),
		ValidFrom:   trimStringPtr(r.ValidFrom),
		ValidUntil:  trimStringPtr(r.ValidUntil),
		Active:      r.Active,
	}
	for _, tier := range r.Tiers {
		req.Tiers = append(req.Tiers, ruledomain.TierRequest{
			IndicatorCode: strings.TrimSpace(tier.IndicatorCode),
			RangeMin:      tier.RangeMin,
			RangeMax:      tier.RangeMax,
			PayoutValue:   tier.PayoutValue,
			PayoutKind:    strings.TrimSpace(tier.PayoutKind),
		})
	}
	for _, cond := range r.Conditions {
		req.Conditions = append(req.Conditions, ruledomain.ConditionRequest{
			IndicatorCode:  strings.TrimSpace(cond.IndicatorCode),
			Operator:       strings.TrimSpace(cond.Operator),
			ReferenceValue: cond.ReferenceValue,
		})
	}
	return req
}

func (s *Server) CreateRule(c *gin.Context) {
	var req writeRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ruleSvc.Create(c.Request.Context(), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRules(c *gin.Context) {
	resp, err := s.ruleSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRulesInForce(c *gin.Context) {
	var query struct {
		Period string `form:"period"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ruleSvc.ListInForce(c.Request.Context(), strings.TrimSpace(query.Period))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRule(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.ruleSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateRule(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req writeRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ruleSvc.Update(c.Request.Context(), id, req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteRule(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.ruleSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "deleted": true}})
}
