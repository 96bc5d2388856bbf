// Package health reports liveness of the service and its dependencies.
package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/opennow/core/internal/database"
	"github.com/opennow/core/internal/pkg/cron"
)

type Handler struct {
	db        *mongo.Database
	scheduler *cron.Scheduler
	startedAt time.Time
}

func NewHandler(db *mongo.Database, scheduler *cron.Scheduler, startedAt time.Time) *Handler {
	return &Handler{db: db, scheduler: scheduler, startedAt: startedAt}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.health)
}

func (h *Handler) health(c *gin.Context) {
	mongoOK := database.Ping(c.Request.Context(), h.db) == nil

	status := http.StatusOK
	state := "ok"
	if !mongoOK {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	c.JSON(status, gin.H{
		"status": state,
		"mongo":  mongoOK,
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
		"tasks":  h.scheduler.List(),
	})
}
