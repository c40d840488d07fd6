package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	ErrStoreRequired  = errors.New("store is required")
	ErrTurnsRequired  = errors.New("turn runner is required")
	ErrTickerRequired = errors.New("ticker is required")
)

// APIResponse is the JSON envelope of every non-streaming response.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, APIResponse{Success: false, Error: msg})
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}
