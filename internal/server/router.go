package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pagewall/pagewall/backend/internal/auth"
	"github.com/pagewall/pagewall/backend/internal/converter"
	"github.com/pagewall/pagewall/backend/internal/documents"
	"github.com/pagewall/pagewall/backend/internal/pagecache"
	"github.com/pagewall/pagewall/backend/internal/settings"
	"github.com/pagewall/pagewall/backend/internal/trust"
	"github.com/pagewall/pagewall/backend/internal/users"
	"github.com/pagewall/pagewall/backend/internal/viewing"
	"github.com/pagewall/pagewall/backend/internal/watermark"
	"go.uber.org/zap"
)

const adminUserContextKey = "pagewall_admin_user"

var (
	errMissingDocuments  = errors.New("document service dependency required")
	errMissingPages      = errors.New("page store dependency required")
	errMissingSessions   = errors.New("session manager dependency required")
	errMissingSettings   = errors.New("settings service dependency required")
	errMissingPageCache  = errors.New("page cache dependency required")
	errMissingCompositor = errors.New("compositor dependency required")
	errMissingGate       = errors.New("trust gate dependency required")
)

// Dependencies wires the HTTP surface to the core services.
type Dependencies struct {
	Documents      *documents.Service
	Pages          *documents.PageStore
	Users          *users.Service
	Sessions       *viewing.Manager
	Settings       *settings.Service
	PageCache      *pagecache.Cache
	Compositor     *watermark.Compositor
	Watermarks     *watermark.Store
	Gate           *trust.Gate
	AdminAuth      *auth.AdminService
	AdminTokens    *auth.TokenIssuer
	Converter      *converter.Converter
	UploadDir      string
	MaxUploadBytes int64
	Logger         *zap.Logger
	Clock          func() time.Time
}

// NewHTTPHandler builds the gin router serving the viewer and admin surface.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Documents == nil {
		return nil, errMissingDocuments
	}
	if deps.Pages == nil {
		return nil, errMissingPages
	}
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}
	if deps.Settings == nil {
		return nil, errMissingSettings
	}
	if deps.PageCache == nil {
		return nil, errMissingPageCache
	}
	if deps.Compositor == nil {
		return nil, errMissingCompositor
	}
	if deps.Gate == nil {
		return nil, errMissingGate
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		documents:      deps.Documents,
		pages:          deps.Pages,
		users:          deps.Users,
		sessions:       deps.Sessions,
		settings:       deps.Settings,
		pageCache:      deps.PageCache,
		compositor:     deps.Compositor,
		watermarks:     deps.Watermarks,
		gate:           deps.Gate,
		adminAuth:      deps.AdminAuth,
		adminTokens:    deps.AdminTokens,
		converter:      deps.Converter,
		uploadDir:      deps.UploadDir,
		maxUploadBytes: deps.MaxUploadBytes,
		logger:         logger,
		clock:          clock,
	}

	router.POST("/auth/login", handler.handleAdminLogin)

	viewer := router.Group("/viewer")
	viewer.POST("/token", handler.handleCreateViewerToken)
	viewer.GET("/", handler.handleViewerPage)
	viewer.GET("/info", handler.handleViewerInfo)
	viewer.GET("/embed", handler.handleEmbed)

	router.GET("/documents/:id/page/:page", handler.handlePageImage)

	admin := router.Group("/")
	admin.Use(handler.authorizeAdmin)
	admin.GET("/admin/watermark-settings", handler.handleGetWatermarkSettings)
	admin.PUT("/admin/watermark-settings", handler.handleUpdateWatermarkSettings)
	admin.POST("/documents/upload", handler.handleUploadDocument)
	admin.DELETE("/documents/:id", handler.handleDeleteDocument)

	return router, nil
}

type httpHandler struct {
	documents      *documents.Service
	pages          *documents.PageStore
	users          *users.Service
	sessions       *viewing.Manager
	settings       *settings.Service
	pageCache      *pagecache.Cache
	compositor     *watermark.Compositor
	watermarks     *watermark.Store
	gate           *trust.Gate
	adminAuth      *auth.AdminService
	adminTokens    *auth.TokenIssuer
	converter      *converter.Converter
	uploadDir      string
	maxUploadBytes int64
	logger         *zap.Logger
	clock          func() time.Time
}

type loginRequestPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponsePayload struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

func (h *httpHandler) handleAdminLogin(c *gin.Context) {
	if h.adminAuth == nil || h.adminTokens == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_available"})
		return
	}

	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Username) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	admin, err := h.adminAuth.Authenticate(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.logger.Info("admin login rejected", zap.String("username", request.Username))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		h.logger.Error("admin login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	token, expiresIn, err := h.adminTokens.IssueAdminToken(admin.Username)
	if err != nil {
		h.logger.Error("failed to issue admin token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}

// authorizeAdmin guards the admin group with bearer token validation.
func (h *httpHandler) authorizeAdmin(c *gin.Context) {
	if h.adminTokens == nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not_available"})
		return
	}

	header := c.GetHeader("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	username, err := h.adminTokens.ValidateToken(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("admin token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("admin token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.Set(adminUserContextKey, username)
	c.Next()
}

// respondSessionError maps session validation failures onto 403 responses.
func (h *httpHandler) respondSessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, viewing.ErrSessionNotFound):
		c.JSON(http.StatusForbidden, gin.H{"detail": "session not found"})
	case errors.Is(err, viewing.ErrSessionExpired):
		c.JSON(http.StatusForbidden, gin.H{"detail": "session expired"})
	case errors.Is(err, viewing.ErrDocumentMismatch):
		c.JSON(http.StatusForbidden, gin.H{"detail": "session issued for a different document"})
	default:
		h.logger.Error("session validation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "session validation failed"})
	}
}
