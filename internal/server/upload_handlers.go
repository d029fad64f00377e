package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/investly/investly/internal/metrics"
	"github.com/investly/investly/internal/storage"
)

// allowedUploadTypes are the image types accepted for plan images and avatars
var allowedUploadTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// UploadResponse carries the public URL of a stored file
type UploadResponse struct {
	URL string `json:"url"`
}

// @Summary Upload image
// @Description Store an image and return its public URL
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Image"
// @Success 201 {object} UploadResponse
// @Failure 400 {object} map[string]interface{}
// @Failure 413 {object} map[string]interface{}
// @Failure 415 {object} map[string]interface{}
// @Router /api/uploads [post]
func (s *Server) uploadFile(c *gin.Context) {
	sessionData, _ := GetSessionData(c)
	maxBytes := s.config.Uploads.MaxBytes

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "A file is required in the 'file' field"})
		return
	}

	if fileHeader.Size > maxBytes {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File is too large"})
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open uploaded file"})
		return
	}
	defer src.Close()

	// Sniff the content instead of trusting the client-provided Content-Type
	mtype, err := mimetype.DetectReader(src)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	if !mimetype.EqualsAny(mtype.String(), allowedUploadTypes...) {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Only PNG, JPEG, GIF and WebP images are allowed"})
		return
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}

	name := storage.ObjectName(sessionData.UserID, "upload"+mtype.Extension())
	if _, err := s.store.Save(c.Request.Context(), name, src); err != nil {
		s.logger.Error().Err(err).Str("name", name).Msg("Failed to store upload")
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save file"})
		return
	}

	metrics.UploadsTotal.WithLabelValues("stored").Inc()
	s.logger.Info().Str("user_id", sessionData.UserID).Str("name", name).Int64("size", fileHeader.Size).Msg("File uploaded")

	c.JSON(http.StatusCreated, UploadResponse{URL: s.config.Server.PublicURL + "/uploads/" + name})
}

// @Summary Download upload
// @Tags uploads
// @Param path path string true "Stored file path"
// @Success 200
// @Failure 404 {object} map[string]interface{}
// @Router /uploads/{path} [get]
func (s *Server) serveUpload(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("path"), "/")

	f, err := s.store.Open(c.Request.Context(), name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, storage.ErrInvalidPath) {
			c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
			return
		}
		s.logger.Error().Err(err).Str("name", name).Msg("Failed to open upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}
