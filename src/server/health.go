package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/host"
)

type healthResponse struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	Goroutines int    `json:"goroutines"`
	Hostname   string `json:"hostname,omitempty"`
	Platform   string `json:"platform,omitempty"`
	HostUptime uint64 `json:"hostUptimeSeconds,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	resp := healthResponse{
		Status:     "ok",
		Uptime:     s.now().Sub(s.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
	}
	if info, err := host.InfoWithContext(c.Request.Context()); err == nil {
		resp.Hostname = info.Hostname
		resp.Platform = info.Platform
		if info.PlatformVersion != "" {
			resp.Platform += " " + info.PlatformVersion
		}
		resp.HostUptime = info.Uptime
	}
	c.JSON(http.StatusOK, resp)
}
