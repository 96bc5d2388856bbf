package backup

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/opennow/core/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/backups")

	g.GET("", h.list)
	g.GET("/new", h.createAndDownload)
	g.GET("/:filename", h.download)
	g.POST("", h.uploadAndRestore)
	g.PATCH("/:filename", h.rollback)
	g.DELETE("", h.delete)
	g.DELETE("/:filename", h.deleteOne)
}

func (h *Handler) list(c *gin.Context) {
	response.OK(c, h.svc.ListLocal())
}

func (h *Handler) createAndDownload(c *gin.Context) {
	artifact, err := h.svc.createLocalArtifact(c.Request.Context(), time.Now())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, artifact.Filename))
	c.Data(http.StatusOK, "application/zip", artifact.Buffer.Bytes())
}

func (h *Handler) download(c *gin.Context) {
	data, err := h.svc.ReadLocal(c.Param("filename"))
	if err != nil {
		if os.IsNotExist(err) {
			response.NotFound(c)
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, c.Param("filename")))
	c.Data(http.StatusOK, "application/zip", data)
}

func (h *Handler) uploadAndRestore(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file")
		return
	}

	src, err := file.Open()
	if err != nil {
		response.InternalError(c, err)
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		response.InternalError(c, err)
		return
	}

	h.restoreZip(c, data)
}

func (h *Handler) rollback(c *gin.Context) {
	data, err := h.svc.ReadLocal(c.Param("filename"))
	if err != nil {
		if os.IsNotExist(err) {
			response.NotFound(c)
			return
		}
		response.BadRequest(c, err.Error())
		return
	}
	h.restoreZip(c, data)
}

func (h *Handler) restoreZip(c *gin.Context, data []byte) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		response.BadRequest(c, "invalid zip file")
		return
	}
	if err := h.svc.Restore(c.Request.Context(), zr); err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, gin.H{"message": "restore successful"})
}

func (h *Handler) delete(c *gin.Context) {
	files := strings.TrimSpace(c.Query("files"))

	var body struct {
		Files string `json:"files"`
	}
	if files == "" {
		_ = c.ShouldBindJSON(&body)
		files = strings.TrimSpace(body.Files)
	}
	if files == "" {
		response.BadRequest(c, "missing files")
		return
	}

	h.svc.DeleteLocal(strings.Split(files, ",")...)
	response.NoContent(c)
}

func (h *Handler) deleteOne(c *gin.Context) {
	h.svc.DeleteLocal(c.Param("filename"))
	response.NoContent(c)
}
