package server

import (
	"net/http"
	"sync"

	"github.com/elee1766/dextra/src/executor"
	"github.com/gin-gonic/gin"
)

// sseSink writes turn events to the response as Server-Sent Events. Headers
// go out with the first event, so a turn that fails before emitting
// anything can still answer with a plain JSON error.
type sseSink struct {
	c *gin.Context

	mu      sync.Mutex
	started bool
	closed  bool
}

func newSSESink(c *gin.Context) *sseSink {
	return &sseSink{c: c}
}

func (s *sseSink) start() {
	h := s.c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.c.Status(http.StatusOK)
	s.started = true
}

func (s *sseSink) Send(event executor.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return executor.ErrSinkClosed
	}
	if err := s.c.Request.Context().Err(); err != nil {
		return err
	}
	if !s.started {
		s.start()
	}
	s.c.SSEvent(string(event.Type), event)
	s.c.Writer.Flush()
	return nil
}

func (s *sseSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *sseSink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
