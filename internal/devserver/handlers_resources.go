package devserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func (b *Backend) handleListServices(c *gin.Context) {
	services := b.state.listServices(serviceFilter{
		Search:   c.Query("search"),
		Category: c.Query("category"),
		Postcode: c.Query("postcode"),
	})
	respond(c, http.StatusOK, gin.H{"services": services}, "")
}

func (b *Backend) handleGetService(c *gin.Context) {
	svc, err := b.state.service(c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "service not found", nil)
		return
	}
	respond(c, http.StatusOK, gin.H{"service": svc}, "")
}

func (b *Backend) handleListBookings(c *gin.Context) {
	user, _ := currentUser(c)
	respond(c, http.StatusOK, gin.H{"bookings": b.state.listBookings(user.ID)}, "")
}

type createBookingRequest struct {
	ServiceID string    `json:"service_id" binding:"required"`
	StartsAt  time.Time `json:"starts_at" binding:"required"`
}

func (b *Backend) handleCreateBooking(c *gin.Context) {
	user, _ := currentUser(c)

	var req createBookingRequest
	if !bindJSON(c, &req) {
		return
	}
	if !req.StartsAt.After(b.now()) {
		fail(c, http.StatusUnprocessableEntity, "validation failed", map[string][]string{
			"starts_at": {"The start time must be in the future."},
		})
		return
	}

	booking, err := b.state.createBooking(user.ID, req.ServiceID, req.StartsAt, b.now())
	if errors.Is(err, ErrNotFound) {
		fail(c, http.StatusNotFound, "service not found", nil)
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	respond(c, http.StatusCreated, gin.H{"booking": booking}, "booking confirmed")
}

func (b *Backend) handleCancelBooking(c *gin.Context) {
	user, _ := currentUser(c)

	booking, err := b.state.cancelBooking(user.ID, c.Param("id"), b.now())
	switch {
	case errors.Is(err, ErrNotFound):
		fail(c, http.StatusNotFound, "booking not found", nil)
	case errors.Is(err, ErrBookingClosed):
		fail(c, http.StatusConflict, err.Error(), nil)
	case err != nil:
		fail(c, http.StatusInternalServerError, err.Error(), nil)
	default:
		respond(c, http.StatusOK, gin.H{"booking": booking}, "booking cancelled")
	}
}

func (b *Backend) handleListConversations(c *gin.Context) {
	user, _ := currentUser(c)
	respond(c, http.StatusOK, gin.H{"conversations": b.state.listConversations(user.ID)}, "")
}

func (b *Backend) handleListMessages(c *gin.Context) {
	user, _ := currentUser(c)
	messages, err := b.state.listMessages(user.ID, c.Param("id"))
	if err != nil {
		fail(c, http.StatusNotFound, "conversation not found", nil)
		return
	}
	respond(c, http.StatusOK, gin.H{"messages": messages}, "")
}

type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

func (b *Backend) handleSendMessage(c *gin.Context) {
	user, _ := currentUser(c)

	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" {
		fail(c, http.StatusUnprocessableEntity, "validation failed", map[string][]string{
			"body": {"The message cannot be empty."},
		})
		return
	}

	msg, err := b.state.sendMessage(user.ID, c.Param("id"), body, b.now())
	if err != nil {
		fail(c, http.StatusNotFound, "conversation not found", nil)
		return
	}
	respond(c, http.StatusCreated, gin.H{"message": msg}, "")
}

func (b *Backend) handleListNotifications(c *gin.Context) {
	user, _ := currentUser(c)
	respond(c, http.StatusOK, gin.H{"notifications": b.state.listNotifications(user.ID)}, "")
}

func (b *Backend) handleUnreadCount(c *gin.Context) {
	user, _ := currentUser(c)
	count := 0
	for _, n := range b.state.listNotifications(user.ID) {
		if !n.Read {
			count++
		}
	}
	respond(c, http.StatusOK, gin.H{"unread": count}, "")
}

func (b *Backend) handleMarkNotificationRead(c *gin.Context) {
	user, _ := currentUser(c)
	if err := b.state.markNotificationRead(user.ID, c.Param("id")); err != nil {
		fail(c, http.StatusNotFound, "notification not found", nil)
		return
	}
	respond(c, http.StatusOK, nil, "")
}

func (b *Backend) handleListLocations(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"locations": b.state.listLocations()}, "")
}

func (b *Backend) handleListInvestments(c *gin.Context) {
	user, _ := currentUser(c)
	respond(c, http.StatusOK, gin.H{"investments": b.state.listInvestments(user.ID)}, "")
}

type investRequest struct {
	LocationID string          `json:"location_id" binding:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

func (b *Backend) handleInvest(c *gin.Context) {
	user, _ := currentUser(c)

	var req investRequest
	if !bindJSON(c, &req) {
		return
	}
	if !req.Amount.IsPositive() {
		fail(c, http.StatusUnprocessableEntity, "validation failed", map[string][]string{
			"amount": {"The amount must be greater than zero."},
		})
		return
	}

	inv, err := b.state.invest(user.ID, req.LocationID, req.Amount, b.now())
	switch {
	case errors.Is(err, ErrNotFound):
		fail(c, http.StatusNotFound, "location not found", nil)
	case errors.Is(err, ErrBelowMinimum), errors.Is(err, ErrOverSubscribed):
		fail(c, http.StatusUnprocessableEntity, "validation failed", map[string][]string{
			"amount": {err.Error()},
		})
	case err != nil:
		fail(c, http.StatusInternalServerError, err.Error(), nil)
	default:
		respond(c, http.StatusCreated, gin.H{"investment": inv}, "investment received")
	}
}
