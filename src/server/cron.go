package server

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// cronMinute runs one tick of the action runner. It is called once a
// minute by an external clock holding the shared secret.
func (s *Server) cronMinute(c *gin.Context) {
	token := bearerToken(c.Request)
	if s.cronSecret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cronSecret)) != 1 {
		fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	// a clock that hangs up must not abort the runs it started
	report, err := s.ticker.Tick(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, "failed to process actions")
		return
	}
	s.logger.DebugContext(c.Request.Context(), "minute trigger", "processed", report.Processed, "failed", report.Failed)
	c.JSON(http.StatusOK, APIResponse{Success: true})
}
