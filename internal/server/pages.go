package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	"image/png"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pagewall/pagewall/backend/internal/documents"
	"github.com/pagewall/pagewall/backend/internal/pagecache"
	"github.com/pagewall/pagewall/backend/internal/viewing"
	"github.com/pagewall/pagewall/backend/internal/watermark"
	"go.uber.org/zap"
)

func (h *httpHandler) handlePageImage(c *gin.Context) {
	if !h.gate.IsRequestTrusted(c.Request) {
		h.logger.Info("page request rejected by trust gate",
			zap.String("referer", c.GetHeader("Referer")))
		c.JSON(http.StatusForbidden, gin.H{"detail": "access is limited to allowed domains"})
		return
	}

	documentID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "document not found"})
		return
	}
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "page not found"})
		return
	}

	doc, err := h.documents.FindByID(c.Request.Context(), documentID)
	if err != nil {
		if errors.Is(err, documents.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "document not found"})
			return
		}
		h.logger.Error("document lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "document lookup failed"})
		return
	}
	if err := documents.CheckPage(doc, page); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "page not found"})
		return
	}

	session, err := h.sessions.Validate(c.Request.Context(), c.Query("viewer_token"), doc.ID)
	if err != nil {
		h.respondSessionError(c, err)
		return
	}

	key := pagecache.Key{
		DocumentHash: doc.FileHash,
		ViewerToken:  session.Token,
		Page:         page,
	}
	data, hit, err := h.pageCache.GetOrRender(key, func() ([]byte, error) {
		return h.renderPage(c.Request.Context(), doc, page, session)
	})
	if err != nil {
		if errors.Is(err, documents.ErrPageImageMissing) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "page image not found"})
			return
		}
		h.logger.Error("page rendering failed",
			zap.Int64("document_id", doc.ID),
			zap.Int("page", page),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "page rendering failed"})
		return
	}
	if !hit {
		h.logger.Info("page rendered",
			zap.Int64("document_id", doc.ID),
			zap.Int("page", page),
			zap.String("viewer_token", session.Token))
	}

	c.Header("Cache-Control", "public, max-age=3600")
	c.Header("Accept-Ranges", "bytes")
	// Large rasters would otherwise be chunked without a length header;
	// clients compare Content-Length against the received bytes to detect
	// truncated images.
	c.Header("Content-Length", strconv.Itoa(len(data)))
	c.Data(http.StatusOK, "image/png", data)
}

// renderPage produces the final watermarked PNG for one page of a document
// as seen by one viewing session.
func (h *httpHandler) renderPage(ctx context.Context, doc documents.Document, page int, session viewing.Session) ([]byte, error) {
	raw, err := h.pages.ReadPage(doc.FileHash, page)
	if err != nil {
		return nil, err
	}
	base, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	resolved := h.settings.ForDocument(ctx, doc.WatermarkSettings).Normalized()
	if resolved.RandomPositionsEnabled {
		// Moving stamps are drawn by the viewer page itself so they can
		// animate; baking them into the raster would freeze them.
		resolved.DynamicWatermarkEnabled = false
	}

	email, userID := h.sessionIdentity(ctx, session)
	seed := resolved.RandomSeed
	if seed == "" {
		if userID != "" {
			seed = userID
		} else {
			seed = session.Token
		}
	}
	resolved.RandomSeed = seed

	viewer := watermark.ViewerContext{
		UserEmail:  email,
		UserID:     userID,
		IPAddress:  session.IPAddress,
		PageNumber: page,
		Now:        h.clock(),
	}

	composed, err := h.compositor.Render(base, resolved, viewer, h.staticLogo(ctx, resolved))
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if err := png.Encode(&out, composed); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// sessionIdentity resolves the watermark identity bound to a session. Lookup
// failures degrade to an anonymous stamp rather than failing the view.
func (h *httpHandler) sessionIdentity(ctx context.Context, session viewing.Session) (string, string) {
	if session.UserID == nil || h.users == nil {
		return "", ""
	}
	user, err := h.users.FindByID(ctx, *session.UserID)
	if err != nil {
		h.logger.Warn("session user lookup failed",
			zap.Int64("user_id", *session.UserID),
			zap.Error(err))
		return "", strconv.FormatInt(*session.UserID, 10)
	}
	return user.Email, strconv.FormatInt(user.ID, 10)
}

// staticLogo loads the active logo image referenced by the settings. Any
// failure skips the static layer rather than failing the render.
func (h *httpHandler) staticLogo(ctx context.Context, resolved watermark.Settings) image.Image {
	if !resolved.StaticWatermarkEnabled || resolved.StaticWatermarkID == nil || h.watermarks == nil {
		return nil
	}
	row, err := h.watermarks.FindActive(ctx, *resolved.StaticWatermarkID)
	if err != nil {
		if !errors.Is(err, watermark.ErrStaticWatermarkNotFound) {
			h.logger.Warn("static watermark lookup failed", zap.Error(err))
		}
		return nil
	}
	raw, err := os.ReadFile(row.FilePath)
	if err != nil {
		h.logger.Warn("static watermark file unreadable",
			zap.String("path", row.FilePath),
			zap.Error(err))
		return nil
	}
	logo, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		h.logger.Warn("static watermark image undecodable",
			zap.String("path", row.FilePath),
			zap.Error(err))
		return nil
	}
	return logo
}
