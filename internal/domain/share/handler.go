package share

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Handler exposes the public share endpoints. All of them sit behind
// the IP access middleware; none of them require authentication.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Upload godoc
// @Summary Share a file
// @Description Upload a file and receive an extract code and a delete code.
// @Tags Shares
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File to share"
// @Param expire_hours formData int false "Hours until the share expires"
// @Param max_downloads formData int false "Download limit"
// @Success 201 {object} map[string]interface{}
// @Failure 400,413,500 {object} map[string]interface{}
// @Router /upload [post]
func (h *Handler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "no file provided"})
		return
	}

	ttl, ok := formHours(c, "expire_hours")
	if !ok {
		return
	}
	maxDownloads, ok := formInt(c, "max_downloads")
	if !ok {
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "unreadable file"})
		return
	}
	defer file.Close()

	ticket, err := h.service.Upload(c.Request.Context(), UploadRequest{
		OriginalName: fileHeader.Filename,
		Content:      file,
		Size:         fileHeader.Size,
		TTL:          ttl,
		MaxDownloads: maxDownloads,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrFileTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"success": false, "error": err.Error()})
		case errors.Is(err, ErrEmptyFile),
			errors.Is(err, ErrExtensionNotAllowed),
			errors.Is(err, ErrInvalidTTL),
			errors.Is(err, ErrInvalidMaxDownloads):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "upload failed"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data": gin.H{
			"filename":      ticket.OriginalName,
			"extract_code":  ticket.ExtractCode,
			"delete_code":   ticket.DeleteCode,
			"expires_at":    ticket.ExpiresAt,
			"max_downloads": ticket.MaxDownloads,
		},
	})
}

// Redeem godoc
// @Summary Redeem a code
// @Description One endpoint for both code kinds: a delete code revokes the share, an extract code downloads it.
// @Tags Shares
// @Produce octet-stream
// @Param code path string true "Extract or delete code"
// @Success 200
// @Failure 404,409,410,500 {object} map[string]interface{}
// @Router /d/{code} [get]
func (h *Handler) Redeem(c *gin.Context) {
	code := c.Param("code")
	ctx := c.Request.Context()

	res, err := h.service.Resolve(ctx, code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "lookup failed"})
		return
	}

	switch res.Kind {
	case ResolveDelete:
		if err := h.service.DeleteByCode(ctx, code); err != nil {
			h.lifecycleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "file deleted"})

	case ResolveExtract:
		result, err := h.service.Download(ctx, code)
		if err != nil {
			h.lifecycleError(c, err)
			return
		}
		defer result.Content.Close()
		c.DataFromReader(http.StatusOK, result.Size, "application/octet-stream", result.Content,
			map[string]string{
				"Content-Disposition":   fmt.Sprintf("attachment; filename=%q", result.OriginalName),
				"X-Downloads-Remaining": strconv.Itoa(result.Remaining),
			})

	default:
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "invalid code"})
	}
}

// Info godoc
// @Summary Look up a share before downloading
// @Tags Shares
// @Produce json
// @Param code path string true "Extract code"
// @Success 200 {object} map[string]interface{}
// @Failure 404,409,410 {object} map[string]interface{}
// @Router /file-info/{code} [get]
func (h *Handler) Info(c *gin.Context) {
	name, err := h.service.Info(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.lifecycleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"filename": name}})
}

func (h *Handler) lifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "invalid code"})
	case errors.Is(err, ErrExpired):
		c.JSON(http.StatusGone, gin.H{"success": false, "error": "share has expired"})
	case errors.Is(err, ErrExhausted):
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "download limit reached"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "request failed"})
	}
}

func formHours(c *gin.Context, field string) (time.Duration, bool) {
	raw := c.PostForm(field)
	if raw == "" {
		return 0, true
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid " + field})
		return 0, false
	}
	return time.Duration(hours) * time.Hour, true
}

func formInt(c *gin.Context, field string) (int, bool) {
	raw := c.PostForm(field)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid " + field})
		return 0, false
	}
	return n, true
}
