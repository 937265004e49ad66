package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomchat/internal/blob"
	"github.com/vovakirdan/roomchat/internal/service/files"
)

// FileHandlers serves attachment upload and download.
type FileHandlers struct {
	files *files.Service
	log   *zerolog.Logger
}

// NewFileHandlers creates a new file handlers instance.
func NewFileHandlers(fileService *files.Service, logger *zerolog.Logger) *FileHandlers {
	return &FileHandlers{files: fileService, log: logger}
}

// Upload stores the multipart "file" field and returns its descriptor, ready
// to be attached to a chat message.
// POST /api/upload
func (h *FileHandlers) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "no file provided"})
		return
	}
	defer file.Close()

	descriptor, err := h.files.Upload(c.Request.Context(), header.Filename, file)
	if err != nil {
		switch {
		case errors.Is(err, files.ErrTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, ErrorResponse{Error: "file is too large"})
		case errors.Is(err, files.ErrEmptyFile), errors.Is(err, files.ErrMissingName):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		default:
			h.log.Error().Err(err).Str("name", header.Filename).Msg("failed to store upload")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().
		Str("user", c.GetString(ContextKeyUsername)).
		Str("name", descriptor.Name).
		Int64("size", descriptor.Size).
		Msg("file uploaded")
	c.JSON(http.StatusCreated, fileResponse(descriptor))
}

// Download streams a stored blob, inline unless ?download=1 is given.
// GET /files/:key
func (h *FileHandlers) Download(c *gin.Context) {
	key := c.Param("key")
	rc, obj, err := h.files.Open(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidKey) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "file not found"})
			return
		}
		h.log.Error().Err(err).Str("key", key).Msg("failed to open file")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	defer rc.Close()

	disposition := "inline"
	if c.Query("download") == "1" {
		disposition = "attachment"
	}
	c.DataFromReader(http.StatusOK, obj.Size, obj.ContentType, rc, map[string]string{
		"Content-Disposition": fmt.Sprintf("%s; filename=%q", disposition, files.DisplayName(key)),
	})
}
