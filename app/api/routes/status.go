package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/wahook/pkg/capture"
	"github.com/wahook/pkg/constant"
	"github.com/wahook/pkg/domains/status"
	"github.com/wahook/pkg/dtos"
	"github.com/wahook/pkg/utils"
)

func RequestRoutes(r *gin.RouterGroup, requests *capture.Log) {
	r.GET("", listRequests(requests))
	r.POST("/clear", clearRequests(requests))
}

func StatusRoutes(r *gin.RouterGroup, s status.Service) {
	r.GET("/status", getProcessStatus(s))
}

// @Summary Captured webhook requests, newest first
// @Tags requests
// @Produce json
// @Param limit query int false "max entries"
// @Success 200 {object} dtos.RequestsDTO
// @Router /requests [get]
func listRequests(requests *capture.Log) func(c *gin.Context) {
	return func(c *gin.Context) {
		limit, err := utils.QueryInt(c, "limit", 0, 0, 1<<20)
		if err != nil {
			c.JSON(400, gin.H{"error": err.Error()})
			return
		}

		c.JSON(200, dtos.RequestsDTO{
			Total:    requests.Total(),
			Retained: requests.Len(),
			Requests: requests.Recent(limit),
		})
	}
}

// @Summary Drop captured requests
// @Tags requests
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /requests/clear [post]
func clearRequests(requests *capture.Log) func(c *gin.Context) {
	return func(c *gin.Context) {
		cleared := requests.Clear()
		c.JSON(200, gin.H{
			"message": constant.REQUESTS_CLEARED,
			"cleared": cleared,
		})
	}
}

// @Summary Process status
// @Tags status
// @Produce json
// @Success 200 {object} dtos.StatusDTO
// @Router /status [get]
func getProcessStatus(s status.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		c.JSON(200, s.Snapshot(c, ""))
	}
}

// NotFound answers unknown paths with the status envelope.
func NotFound(s status.Service) func(c *gin.Context) {
	return func(c *gin.Context) {
		c.JSON(200, s.Snapshot(c, c.Request.URL.Path))
	}
}

func Healthz(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok"})
}
