package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quantumtracker/backend/internal/tickets"
)

func (h *httpHandler) handleListTickets(c *gin.Context) {
	list, err := h.tickets.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *httpHandler) handleGetTicket(c *gin.Context) {
	ticket, err := h.tickets.Get(c.Request.Context(), c.Param("ticketId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}

func (h *httpHandler) handleCreateTicket(c *gin.Context) {
	var request tickets.NewTicket
	if err := c.ShouldBindJSON(&request); err != nil {
		h.writeError(c, errMalformedRequest)
		return
	}
	ticket, err := h.tickets.Create(c.Request.Context(), request, sessionActor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ticket)
}

type ticketUpdatePayload struct {
	UpdatedTicket tickets.TicketUpdate `json:"updatedTicket"`
}

func (h *httpHandler) handleUpdateTicket(c *gin.Context) {
	var request ticketUpdatePayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.writeError(c, errMalformedRequest)
		return
	}
	outcome, err := h.tickets.Update(c.Request.Context(), c.Param("ticketId"), request.UpdatedTicket, sessionActor(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.logDispatch("tickets.update", outcome.Notifications)
	c.JSON(http.StatusOK, outcome.Ticket)
}

func (h *httpHandler) handleDeleteTicket(c *gin.Context) {
	if err := h.tickets.Delete(c.Request.Context(), c.Param("ticketId")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	list, err := h.tickets.ListComments(c.Request.Context(), c.Param("ticketId"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type commentPayload struct {
	Content string `json:"content"`
}

func (h *httpHandler) handlePostComment(c *gin.Context) {
	var request commentPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		h.writeError(c, errMalformedRequest)
		return
	}
	outcome, err := h.tickets.PostComment(c.Request.Context(), c.Param("ticketId"), sessionActor(c), request.Content)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.logDispatch("tickets.post_comment", outcome.Notifications)
	c.JSON(http.StatusCreated, outcome.Comment)
}

func (h *httpHandler) handleDeleteComment(c *gin.Context) {
	if err := h.tickets.DeleteComment(c.Request.Context(), c.Param("ticketId"), c.Param("commentId")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleStats(c *gin.Context) {
	stats, err := h.tickets.Stats(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
