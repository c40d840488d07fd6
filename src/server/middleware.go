package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/elee1766/dextra/src/agent"
	"github.com/elee1766/dextra/src/storage"
	"github.com/gin-gonic/gin"
)

const callerKey = "dextra.caller"

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if caller := callerFrom(c); caller != nil {
			attrs = append(attrs, "user_id", caller.UserID)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}
		if c.Writer.Status() >= http.StatusInternalServerError {
			s.logger.ErrorContext(c.Request.Context(), "request", attrs...)
			return
		}
		s.logger.InfoContext(c.Request.Context(), "request", attrs...)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.logger.ErrorContext(c.Request.Context(), "panic recovered", "path", c.Request.URL.Path, "panic", recovered)
		fail(c, http.StatusInternalServerError, "internal server error")
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// authenticate resolves the bearer token to a caller or answers 401.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.Request)
		if token == "" {
			fail(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, err := s.store.UserByToken(c.Request.Context(), token)
		if errors.Is(err, storage.ErrNotFound) {
			fail(c, http.StatusUnauthorized, "unauthorized")
			return
		}
		if err != nil {
			_ = c.Error(err)
			fail(c, http.StatusInternalServerError, "failed to verify caller")
			return
		}
		c.Set(callerKey, &agent.Caller{
			UserID:    user.ID,
			PublicKey: user.PublicKey,
			DegenMode: user.DegenMode,
		})
		c.Next()
	}
}

func callerFrom(c *gin.Context) *agent.Caller {
	v, ok := c.Get(callerKey)
	if !ok {
		return nil
	}
	caller, _ := v.(*agent.Caller)
	return caller
}
