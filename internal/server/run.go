package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	calculationdomain "github.com/kpiflow/incento/internal/calculation/domain"
)

type runCalculationRequest struct {
	Period string `json:"period"`
	RunBy  string `json:"run_by"`
}

type setRunStatusRequest struct {
	Status string `json:"status"`
}

// RunCalculation executes the engine synchronously and returns the full
// run report, rows included.
func (s *Server) RunCalculation(c *gin.Context) {
	var req runCalculationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.calculationSvc.Run(c.Request.Context(), calculationdomain.RunRequest{
		Period: strings.TrimSpace(req.Period),
		RunBy:  strings.TrimSpace(req.RunBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListRuns(c *gin.Context) {
	resp, err := s.runSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetRun(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.runSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetRunStatus(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))

	var req setRunStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.runSvc.SetStatus(c.Request.Context(), id, strings.TrimSpace(req.Status))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteRun(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.runSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"id": id, "deleted": true}})
}
