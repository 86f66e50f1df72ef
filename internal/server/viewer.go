package server

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pagewall/pagewall/backend/internal/documents"
	"github.com/pagewall/pagewall/backend/internal/trust"
	"github.com/pagewall/pagewall/backend/internal/viewing"
	"github.com/pagewall/pagewall/backend/internal/watermark"
	"go.uber.org/zap"
)

type viewerTokenRequestPayload struct {
	DocumentToken string `json:"document_token"`
	UserEmail     string `json:"user_email"`
}

type viewerTokenResponsePayload struct {
	ViewerToken string    `json:"viewer_token"`
	ViewerURL   string    `json:"viewer_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (h *httpHandler) handleCreateViewerToken(c *gin.Context) {
	if !h.gate.IsRequestTrusted(c.Request) {
		h.logger.Info("viewer token rejected by trust gate",
			zap.String("referer", c.GetHeader("Referer")),
			zap.String("origin", c.GetHeader("Origin")))
		c.JSON(http.StatusForbidden, gin.H{"detail": "access is limited to allowed domains"})
		return
	}

	var request viewerTokenRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || request.DocumentToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "document_token is required"})
		return
	}

	doc, err := h.documents.FindByAccessToken(c.Request.Context(), request.DocumentToken)
	if err != nil {
		if errors.Is(err, documents.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "document not found"})
			return
		}
		h.logger.Error("document lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "document lookup failed"})
		return
	}

	session, err := h.sessions.IssueToken(
		c.Request.Context(),
		doc.ID,
		request.UserEmail,
		trust.ClientIP(c.Request),
		c.Request.UserAgent(),
	)
	if err != nil {
		h.logger.Error("viewer token issuance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "token issuance failed"})
		return
	}

	c.JSON(http.StatusOK, viewerTokenResponsePayload{
		ViewerToken: session.Token,
		ViewerURL:   "/viewer/?token=" + session.Token,
		ExpiresAt:   session.ExpiresAt,
	})
}

// viewerState is the resolved context shared by the HTML and JSON viewer
// endpoints.
type viewerState struct {
	session  viewing.Session
	document documents.Document
	email    string
	userID   string
	settings watermark.Settings
}

// resolveViewerState validates the session first and the origin second, the
// same order the page endpoints use, so a stolen link without a valid token
// fails before any origin reasoning happens.
func (h *httpHandler) resolveViewerState(c *gin.Context) (viewerState, bool) {
	token := c.Query("token")
	session, err := h.sessions.Validate(c.Request.Context(), token, 0)
	if err != nil {
		h.respondSessionError(c, err)
		return viewerState{}, false
	}

	if !h.gate.IsRequestTrusted(c.Request) {
		h.logger.Info("viewer rejected by trust gate",
			zap.String("referer", c.GetHeader("Referer")))
		c.JSON(http.StatusForbidden, gin.H{"detail": "access is limited to allowed domains"})
		return viewerState{}, false
	}

	doc, err := h.documents.FindByID(c.Request.Context(), session.DocumentID)
	if err != nil {
		if errors.Is(err, documents.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "document not found"})
			return viewerState{}, false
		}
		h.logger.Error("document lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "document lookup failed"})
		return viewerState{}, false
	}

	email, userID := h.sessionIdentity(c.Request.Context(), session)
	resolved := h.settings.ForDocument(c.Request.Context(), doc.WatermarkSettings)

	return viewerState{
		session:  session,
		document: doc,
		email:    email,
		userID:   userID,
		settings: resolved,
	}, true
}

func (h *httpHandler) handleViewerPage(c *gin.Context) {
	state, ok := h.resolveViewerState(c)
	if !ok {
		return
	}

	encoded, err := json.Marshal(state.settings)
	if err != nil {
		h.logger.Error("settings encoding failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "settings encoding failed"})
		return
	}

	pages := make([]int, state.document.TotalPages)
	for i := range pages {
		pages[i] = i + 1
	}

	viewer := watermark.ViewerContext{
		UserEmail:  state.email,
		UserID:     state.userID,
		IPAddress:  state.session.IPAddress,
		Now:        h.clock(),
	}

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	renderErr := viewerPageTemplate.Execute(c.Writer, gin.H{
		"DocumentID":    state.document.ID,
		"DocumentName":  state.document.Name,
		"Token":         state.session.Token,
		"Pages":         pages,
		"SettingsJSON":  template.JS(encoded),
		"WatermarkText": watermark.DynamicText(state.settings, viewer),
	})
	if renderErr != nil {
		h.logger.Error("viewer template rendering failed", zap.Error(renderErr))
	}
}

func (h *httpHandler) handleViewerInfo(c *gin.Context) {
	state, ok := h.resolveViewerState(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document_id":        state.document.ID,
		"document_name":      state.document.Name,
		"total_pages":        state.document.TotalPages,
		"user_email":         state.email,
		"user_id":            state.userID,
		"ip_address":         state.session.IPAddress,
		"expires_at":         state.session.ExpiresAt,
		"watermark_settings": state.settings,
	})
}

func (h *httpHandler) handleEmbed(c *gin.Context) {
	trusted := h.gate.IsRequestTrusted(c.Request)
	if !trusted {
		sourceDomain := c.Query("source_domain")
		if h.gate.IsSourceDomainTrusted(sourceDomain) {
			h.logger.Warn("embed allowed via insecure source_domain bypass",
				zap.String("source_domain", sourceDomain))
			trusted = true
		}
	}
	if !trusted {
		h.logger.Info("embed rejected by trust gate",
			zap.String("referer", c.GetHeader("Referer")),
			zap.String("origin", c.GetHeader("Origin")))
		c.JSON(http.StatusForbidden, gin.H{"detail": "embedding is limited to allowed domains"})
		return
	}

	doc, err := h.documents.FindByAccessToken(c.Request.Context(), c.Query("document_token"))
	if err != nil {
		if errors.Is(err, documents.ErrDocumentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "document not found"})
			return
		}
		h.logger.Error("document lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "document lookup failed"})
		return
	}

	clientIP := c.Query("client_ip")
	if !trust.UsableClientIP(clientIP) {
		clientIP = trust.ClientIP(c.Request)
	}

	session, err := h.sessions.IssueToken(
		c.Request.Context(),
		doc.ID,
		c.Query("user_email"),
		clientIP,
		c.Request.UserAgent(),
	)
	if err != nil {
		h.logger.Error("embed session issuance failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "token issuance failed"})
		return
	}

	// Embedding sites are https; the frame URL must be too or the browser
	// refuses to load it as mixed content.
	viewerURL := "https://" + hostWithoutPort(c.Request.Host) + "/viewer/?token=" + session.Token

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	renderErr := embedPageTemplate.Execute(c.Writer, gin.H{
		"DocumentName": doc.Name,
		"ViewerURL":    viewerURL,
	})
	if renderErr != nil {
		h.logger.Error("embed template rendering failed", zap.Error(renderErr))
	}
}

func hostWithoutPort(host string) string {
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
		if host[i] == ']' {
			break
		}
	}
	return host
}
