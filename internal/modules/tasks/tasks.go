// Package tasks exposes the background job scheduler over the admin API:
// listing registered jobs and triggering one by hand.
package tasks

import (
	"github.com/gin-gonic/gin"

	"github.com/opennow/core/internal/pkg/cron"
	"github.com/opennow/core/internal/pkg/response"
)

type Handler struct {
	scheduler *cron.Scheduler
}

func NewHandler(scheduler *cron.Scheduler) *Handler {
	return &Handler{scheduler: scheduler}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/tasks")

	g.GET("", h.list)
	g.GET("/:name", h.status)
	g.POST("/:name/run", h.run)
}

func (h *Handler) list(c *gin.Context) {
	response.OK(c, h.scheduler.List())
}

func (h *Handler) status(c *gin.Context) {
	item, err := h.scheduler.Status(c.Param("name"))
	if err != nil {
		response.NotFoundMsg(c, err.Error())
		return
	}
	response.OK(c, item)
}

// run executes the job inline so the caller sees the outcome, not just an
// acknowledgement.
func (h *Handler) run(c *gin.Context) {
	name := c.Param("name")
	if err := h.scheduler.Run(c.Request.Context(), name); err != nil {
		response.NotFoundMsg(c, err.Error())
		return
	}
	item, err := h.scheduler.Status(name)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, item)
}
