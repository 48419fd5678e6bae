package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type ReadinessState string

const (
	ReadinessStateReady    ReadinessState = "ready"
	ReadinessStateNotReady ReadinessState = "not_ready"
)

type ReadinessIssue struct {
	ID       string            `json:"id"`
	Status   ReadinessState    `json:"status"`
	Evidence map[string]string `json:"evidence,omitempty"`
}

type ReadinessResponse struct {
	SystemState ReadinessState   `json:"system_state"`
	Issues      []ReadinessIssue `json:"issues"`
}

// ReadinessCheck is one dependency probed by /ready.
type ReadinessCheck struct {
	ID    string
	Check func(ctx context.Context) error
}

// GetReadiness runs every configured check.
func (s *Server) GetReadiness(c *gin.Context) {
	ctx := c.Request.Context()

	resp := ReadinessResponse{
		SystemState: ReadinessStateReady,
		Issues:      make([]ReadinessIssue, 0, len(s.checks)),
	}
	for _, check := range s.checks {
		issue := ReadinessIssue{ID: check.ID, Status: ReadinessStateReady}
		if err := check.Check(ctx); err != nil {
			issue.Status = ReadinessStateNotReady
			issue.Evidence = map[string]string{"error": err.Error()}
			resp.SystemState = ReadinessStateNotReady
		}
		resp.Issues = append(resp.Issues, issue)
	}

	status := http.StatusOK
	if resp.SystemState != ReadinessStateReady {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
