package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/quantumtracker/backend/internal/apperrors"
	"github.com/quantumtracker/backend/internal/notifications"
	"github.com/quantumtracker/backend/internal/users"
	"go.uber.org/zap"
)

const userIDLength = 24

var (
	errBadUserID         = apperrors.New(apperrors.KindBadRequest, "Bad request. Please check the URL.")
	errForeignProfile    = apperrors.New(apperrors.KindUnauthorized, "You can only edit your own profile.")
	errMissingLoginField = apperrors.New(apperrors.KindBadRequest, "Username and password are required.")
)

type sessionUserPayload struct {
	users.User
	Notifications []notifications.Notification `json:"notifications"`
}

func (h *httpHandler) handleSessionUser(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.GetString(userIDContextKey)
	user, err := h.users.FindByID(ctx, userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	list, err := h.notifications.List(ctx, user.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionUserPayload{User: user, Notifications: list})
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	list, err := h.users.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *httpHandler) handleUserByID(c *gin.Context) {
	userID := users.CanonicalID(c.Param("userId"))
	if len(userID) != userIDLength {
		h.writeError(c, errBadUserID)
		return
	}
	user, err := h.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *httpHandler) handleUserByName(c *gin.Context) {
	user, err := h.users.FindByUsername(c.Request.Context(), c.Param("username"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type signUpPayload struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	AutoLogin bool   `json:"autoLogin"`
}

func (h *httpHandler) handleSignUp(c *gin.Context) {
	var request signUpPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.writeError(c, errMalformedRequest)
		return
	}
	user, err := h.users.Create(c.Request.Context(), users.SignUp{
		Username: request.Username,
		Email:    request.Email,
		Password: request.Password,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if request.AutoLogin {
		if err := h.startSession(c, user); err != nil {
			h.writeError(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, user)
}

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.writeError(c, errMalformedRequest)
		return
	}
	if strings.TrimSpace(request.Username) == "" || request.Password == "" {
		h.writeError(c, errMissingLoginField)
		return
	}
	user, err := h.users.Authenticate(c.Request.Context(), request.Username, request.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.startSession(c, user); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *httpHandler) handleGuestLogin(c *gin.Context) {
	user, err := h.users.GuestLogin(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.startSession(c, user); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.Status(http.StatusOK)
}

type profilePayload struct {
	Location string `json:"location"`
	RealName string `json:"realName"`
}

func (h *httpHandler) handleUpdateUserInfo(c *gin.Context) {
	userID := users.CanonicalID(c.Param("userId"))
	if userID != c.GetString(userIDContextKey) {
		h.writeError(c, errForeignProfile)
		return
	}
	var request profilePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.writeError(c, errMalformedRequest)
		return
	}
	err := h.users.UpdateInfo(c.Request.Context(), userID, users.ProfileUpdate{
		Location: request.Location,
		RealName: request.RealName,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *httpHandler) startSession(c *gin.Context, user users.User) error {
	token, _, err := h.issuer.Issue(user.ID, user.Username)
	if err != nil {
		h.logger.Error("failed to issue session token", zap.String("user_id", user.ID), zap.Error(err))
		return apperrors.Wrap("server.session", "issue_failed", err)
	}
	h.setSessionCookie(c, token, int(h.issuer.TTL().Seconds()))
	return nil
}

func (h *httpHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.sessions.CookieName(), value, maxAge, "/", "", h.secureCookies, true)
}
