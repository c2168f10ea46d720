package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quantumtracker/backend/internal/notifications"
	"go.uber.org/zap"
)

// handleNotificationStream registers the session user's live connection and
// writes each flushed batch as a newNotifications event until the client goes
// away or a newer stream replaces this one. Anonymous callers get 204.
func (h *httpHandler) handleNotificationStream(c *gin.Context) {
	userID := c.GetString(userIDContextKey)
	if userID == "" {
		c.Status(http.StatusNoContent)
		return
	}

	transport := newStreamTransport()
	connection := h.registry.Register(userID, transport)
	h.logger.Debug("notification stream opened", zap.String("user_id", userID))
	defer func() {
		transport.Close()
		h.registry.Release(connection)
		h.logger.Debug("notification stream closed", zap.String("user_id", userID))
	}()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-connection.Replaced():
			h.drainStream(c, transport)
			return
		case batch := <-transport.batches:
			if err := h.writeBatch(c, batch); err != nil {
				h.logger.Info("notification stream write failed", zap.String("user_id", userID), zap.Error(err))
				return
			}
		}
	}
}

// drainStream writes batches delivered before the connection was replaced.
func (h *httpHandler) drainStream(c *gin.Context, transport *streamTransport) {
	transport.Close()
	for {
		select {
		case batch := <-transport.batches:
			if err := h.writeBatch(c, batch); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (h *httpHandler) writeBatch(c *gin.Context, batch []notifications.Notification) error {
	if err := writeEvent(c.Writer, eventNewNotifications, batch); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

func (h *httpHandler) handleResetNotifications(c *gin.Context) {
	if err := h.notifications.MarkAllRead(c.Request.Context(), c.GetString(userIDContextKey)); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (h *httpHandler) handleListNotifications(c *gin.Context) {
	list, err := h.notifications.List(c.Request.Context(), c.GetString(userIDContextKey))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *httpHandler) handleAddNotification(c *gin.Context) {
	var request notifications.Request
	if err := c.ShouldBindJSON(&request); err != nil {
		h.writeError(c, errMalformedRequest)
		return
	}
	created, err := h.notifications.Notify(c.Request.Context(), request)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if created == nil {
		c.Status(http.StatusCreated)
		return
	}
	c.JSON(http.StatusCreated, created)
}
