package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quantumtracker/backend/internal/apperrors"
	"github.com/quantumtracker/backend/internal/auth"
	"github.com/quantumtracker/backend/internal/logging"
	"github.com/quantumtracker/backend/internal/notifications"
	"github.com/quantumtracker/backend/internal/tickets"
	"github.com/quantumtracker/backend/internal/users"
	"go.uber.org/zap"
)

const (
	userIDContextKey   = "tracker_user_id"
	usernameContextKey = "tracker_username"
)

var (
	errMissingSessionValidator = errors.New("session validator dependency required")
	errMissingSessionIssuer    = errors.New("session issuer dependency required")
	errMissingUsersService     = errors.New("users service dependency required")
	errMissingTicketsService   = errors.New("tickets service dependency required")
	errMissingNotifications    = errors.New("notifications service dependency required")
	errMissingRegistry         = errors.New("connection registry dependency required")

	errNotAuthenticated = apperrors.New(apperrors.KindUnauthorized, "User is not authenticated.")
	errResourceNotFound = apperrors.New(apperrors.KindNotFound, "Resource not found.")
	errMalformedRequest = apperrors.New(apperrors.KindBadRequest, "Malformed request body.")
)

// SessionValidator resolves the session user from a request cookie.
type SessionValidator interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
	CookieName() string
}

// SessionIssuer mints session cookie tokens.
type SessionIssuer interface {
	Issue(userID, username string) (string, time.Time, error)
	TTL() time.Duration
}

// Dependencies wires the HTTP layer to the domain services.
type Dependencies struct {
	Sessions       SessionValidator
	Issuer         SessionIssuer
	Users          *users.Service
	Tickets        *tickets.Service
	Notifications  *notifications.Service
	Registry       *notifications.Registry
	AllowedOrigins []string
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
	Logger        *zap.Logger
}

// NewHTTPHandler builds the gin engine serving the tracker API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	switch {
	case deps.Sessions == nil:
		return nil, errMissingSessionValidator
	case deps.Issuer == nil:
		return nil, errMissingSessionIssuer
	case deps.Users == nil:
		return nil, errMissingUsersService
	case deps.Tickets == nil:
		return nil, errMissingTicketsService
	case deps.Notifications == nil:
		return nil, errMissingNotifications
	case deps.Registry == nil:
		return nil, errMissingRegistry
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	handler := &httpHandler{
		sessions:      deps.Sessions,
		issuer:        deps.Issuer,
		users:         deps.Users,
		tickets:       deps.Tickets,
		notifications: deps.Notifications,
		registry:      deps.Registry,
		secureCookies: deps.SecureCookies,
		logger:        logger,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins))
	router.Use(handler.resolveSession)

	api := router.Group("/api")

	userRoutes := api.Group("/users")
	userRoutes.GET("/", handler.requireSession, handler.handleSessionUser)
	userRoutes.GET("/list", handler.handleListUsers)
	userRoutes.GET("/list/id/:userId", handler.handleUserByID)
	userRoutes.GET("/list/name/:username", handler.handleUserByName)
	userRoutes.GET("/guest", handler.handleGuestLogin)
	userRoutes.POST("/signup", handler.handleSignUp)
	userRoutes.POST("/login", handler.handleLogin)
	userRoutes.POST("/logout", handler.handleLogout)
	userRoutes.PATCH("/:userId", handler.requireSession, handler.handleUpdateUserInfo)

	ticketRoutes := api.Group("/tickets")
	ticketRoutes.GET("/", handler.handleListTickets)
	ticketRoutes.GET("/:ticketId", handler.handleGetTicket)
	ticketRoutes.POST("/", handler.requireSession, handler.handleCreateTicket)
	ticketRoutes.PATCH("/:ticketId", handler.requireSession, handler.handleUpdateTicket)
	ticketRoutes.DELETE("/:ticketId", handler.requireSession, handler.handleDeleteTicket)

	commentRoutes := api.Group("/comments")
	commentRoutes.GET("/:ticketId", handler.handleListComments)
	commentRoutes.POST("/:ticketId", handler.requireSession, handler.handlePostComment)
	commentRoutes.DELETE("/:ticketId/:commentId", handler.requireSession, handler.handleDeleteComment)

	notificationRoutes := api.Group("/notifications")
	notificationRoutes.GET("/", handler.handleNotificationStream)
	notificationRoutes.GET("/reset", handler.requireSession, handler.handleResetNotifications)
	notificationRoutes.GET("/list", handler.requireSession, handler.handleListNotifications)
	notificationRoutes.POST("/add", handler.requireSession, handler.handleAddNotification)

	api.GET("/stats", handler.handleStats)

	router.NoRoute(func(c *gin.Context) {
		handler.writeError(c, errResourceNotFound)
	})

	return router, nil
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Accept", "Cache-Control"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

type httpHandler struct {
	sessions      SessionValidator
	issuer        SessionIssuer
	users         *users.Service
	tickets       *tickets.Service
	notifications *notifications.Service
	registry      *notifications.Registry
	secureCookies bool
	logger        *zap.Logger
}

// resolveSession attaches the session user when the cookie is valid and lets
// anonymous requests through.
func (h *httpHandler) resolveSession(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	switch {
	case err == nil:
		c.Set(userIDContextKey, claims.UserID)
		c.Set(usernameContextKey, claims.Username)
	case errors.Is(err, auth.ErrMissingSessionToken):
	case errors.Is(err, auth.ErrExpiredSessionToken):
		h.logger.Info("session validation failed", zap.Error(err))
	default:
		h.logger.Warn("session validation failed", zap.Error(err))
	}
	c.Next()
}

func (h *httpHandler) requireSession(c *gin.Context) {
	if c.GetString(userIDContextKey) == "" {
		h.writeError(c, errNotAuthenticated)
		return
	}
	c.Next()
}

func sessionActor(c *gin.Context) tickets.Actor {
	return tickets.Actor{
		ID:       c.GetString(userIDContextKey),
		Username: c.GetString(usernameContextKey),
	}
}

// writeError translates a domain error into its status and JSON body.
func (h *httpHandler) writeError(c *gin.Context, err error) {
	status := apperrors.KindOf(err).HTTPStatus()
	body := gin.H{"error": apperrors.MessageOf(err)}
	if code := apperrors.CodeOf(err); code != "" {
		body["code"] = code
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, body)
}

// logDispatch records fan-out failures of an otherwise successful request.
func (h *httpHandler) logDispatch(operation string, report notifications.DispatchReport) {
	if !report.Failed() {
		return
	}
	h.logger.Warn("notification fan-out incomplete",
		zap.String("operation", operation),
		zap.Int("failed", len(report.Failures)),
		zap.Int("delivered", len(report.Delivered)),
		zap.Error(report.Err()),
	)
}
