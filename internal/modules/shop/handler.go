package shop

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/opennow/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the shop endpoints on the given group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	shops := rg.Group("/shops")
	{
		shops.GET("", h.list)
		shops.POST("", h.create)
		shops.GET("/:id", h.get)
		shops.POST("/:id/status", h.reportStatus)
	}
}

func (h *Handler) list(c *gin.Context) {
	q := ListQuery{
		Search: c.Query("search"),
		All:    c.Query("all") == "true",
	}

	latStr, lngStr := c.Query("lat"), c.Query("lng")
	if latStr != "" && lngStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lng, lngErr := strconv.ParseFloat(lngStr, 64)
		if latErr != nil || lngErr != nil {
			response.BadRequest(c, "lat and lng must be numbers")
			return
		}
		q.Near = &LatLng{Lat: lat, Lng: lng}
	}

	views, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, views)
}

func (h *Handler) get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, view)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateShopDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	shop, err := h.svc.Create(c.Request.Context(), dto, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, shop)
}

func (h *Handler) reportStatus(c *gin.Context) {
	var dto ReportStatusDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	shop, err := h.svc.ReportStatus(c.Request.Context(), c.Param("id"), dto, c.ClientIP())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, shop)
}

func (h *Handler) fail(c *gin.Context, err error) {
	var verr ValidationError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(c, verr.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFoundMsg(c, "shop not found")
	default:
		response.InternalError(c, err)
	}
}
