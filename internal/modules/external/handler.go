package external

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opennow/core/internal/pkg/response"
)

type Handler struct {
	svc           *Service
	defaultRadius int
}

func NewHandler(svc *Service, defaultRadius int) *Handler {
	return &Handler{svc: svc, defaultRadius: defaultRadius}
}

// RegisterRoutes mounts the nearby lookup. The /google path is kept for
// clients written against the earlier API shape.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	ext := rg.Group("/external")
	{
		ext.GET("/nearby", h.nearby)
		ext.GET("/google", h.nearby)
	}
}

func (h *Handler) nearby(c *gin.Context) {
	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr == "" || lngStr == "" {
		response.BadRequest(c, "Latitude and Longitude are required")
		return
	}
	lat, latErr := strconv.ParseFloat(latStr, 64)
	lng, lngErr := strconv.ParseFloat(lngStr, 64)
	if latErr != nil || lngErr != nil {
		response.BadRequest(c, "lat and lng must be numbers")
		return
	}

	radius := h.defaultRadius
	if radiusStr := c.Query("radius"); radiusStr != "" {
		r, err := strconv.Atoi(radiusStr)
		if err != nil || r <= 0 {
			response.BadRequest(c, "radius must be a positive integer")
			return
		}
		radius = r
	}

	projections, err := h.svc.FetchNearby(c.Request.Context(), lat, lng, radius)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, projections)
}
