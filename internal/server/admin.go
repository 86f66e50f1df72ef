package server

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pagewall/pagewall/backend/internal/documents"
	"github.com/pagewall/pagewall/backend/internal/watermark"
	"go.uber.org/zap"
)

var allowedUploadExtensions = map[string]string{
	".pdf":  "pdf",
	".ppt":  "ppt",
	".pptx": "pptx",
}

func (h *httpHandler) handleGetWatermarkSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.Load(c.Request.Context()))
}

func (h *httpHandler) handleUpdateWatermarkSettings(c *gin.Context) {
	updated := watermark.DefaultSettings()
	if err := c.ShouldBindJSON(&updated); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid settings payload"})
		return
	}

	if err := h.settings.Update(c.Request.Context(), updated); err != nil {
		h.logger.Error("watermark settings update failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "settings update failed"})
		return
	}

	c.JSON(http.StatusOK, updated.Normalized())
}

type uploadResponsePayload struct {
	DocumentID  int64  `json:"document_id"`
	AccessToken string `json:"access_token"`
	TotalPages  int    `json:"total_pages"`
	Duplicate   bool   `json:"duplicate"`
}

func (h *httpHandler) handleUploadDocument(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "file is required"})
		return
	}
	if h.maxUploadBytes > 0 && header.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"detail": "file too large"})
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	fileType, ok := allowedUploadExtensions[ext]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "unsupported file type"})
		return
	}

	src, err := header.Open()
	if err != nil {
		h.logger.Error("upload open failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "upload failed"})
		return
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		h.logger.Error("upload read failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "upload failed"})
		return
	}

	sum := md5.Sum(content)
	hash := hex.EncodeToString(sum[:])

	if existing, findErr := h.documents.FindByHash(c.Request.Context(), hash); findErr == nil {
		c.JSON(http.StatusOK, uploadResponsePayload{
			DocumentID:  existing.ID,
			AccessToken: existing.AccessToken,
			TotalPages:  existing.TotalPages,
			Duplicate:   true,
		})
		return
	} else if !errors.Is(findErr, documents.ErrDocumentNotFound) {
		h.logger.Error("upload dedup lookup failed", zap.Error(findErr))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "upload failed"})
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.logger.Error("upload dir creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "upload failed"})
		return
	}
	storedPath := filepath.Join(h.uploadDir, hash+ext)
	if err := os.WriteFile(storedPath, content, 0o644); err != nil {
		h.logger.Error("upload store failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "upload failed"})
		return
	}

	totalPages, err := h.converter.Convert(c.Request.Context(), storedPath, fileType, h.pages.PageDir(hash))
	if err != nil {
		h.logger.Error("document conversion failed",
			zap.String("file", header.Filename),
			zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "document conversion failed"})
		return
	}

	doc := documents.Document{
		Name:        header.Filename,
		FilePath:    storedPath,
		FileHash:    hash,
		FileType:    fileType,
		TotalPages:  totalPages,
		AccessToken: uuid.NewString(),
		CreatedBy:   c.GetString(adminUserContextKey),
	}
	if err := h.documents.Create(c.Request.Context(), &doc); err != nil {
		h.logger.Error("document create failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "upload failed"})
		return
	}

	h.logger.Info("document uploaded",
		zap.Int64("document_id", doc.ID),
		zap.String("file_hash", hash),
		zap.Int("total_pages", totalPages))
	c.JSON(http.StatusOK, uploadResponsePayload{
		DocumentID:  doc.ID,
		AccessToken: doc.AccessToken,
		TotalPages:  totalPages,
	})
}

func (h *httpHandler) handleDeleteDocument(c *gin.Context) {
	documentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "document not found"})
		return
	}

	doc, err := h.documents.FindByID(c.Request.Context(), documentID)
	if err != nil {
		if errors.Is(err, documents.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "document not found"})
			return
		}
		h.logger.Error("document lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "delete failed"})
		return
	}

	if err := h.documents.Delete(c.Request.Context(), doc.ID); err != nil {
		h.logger.Error("document delete failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "delete failed"})
		return
	}

	// Disk cleanup is best effort; the row is already gone.
	if err := h.pageCache.InvalidateDocument(doc.FileHash); err != nil {
		h.logger.Warn("cache invalidation failed",
			zap.String("file_hash", doc.FileHash),
			zap.Error(err))
	}
	if err := os.RemoveAll(h.pages.PageDir(doc.FileHash)); err != nil {
		h.logger.Warn("page directory removal failed",
			zap.String("file_hash", doc.FileHash),
			zap.Error(err))
	}
	if doc.FilePath != "" {
		if err := os.Remove(doc.FilePath); err != nil && !os.IsNotExist(err) {
			h.logger.Warn("source file removal failed",
				zap.String("path", doc.FilePath),
				zap.Error(err))
		}
	}

	h.logger.Info("document deleted", zap.Int64("document_id", doc.ID))
	c.JSON(http.StatusOK, gin.H{"detail": fmt.Sprintf("document %d deleted", doc.ID)})
}
