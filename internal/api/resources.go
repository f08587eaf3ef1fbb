package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"wellnest/core/internal/models"
)

var (
	ErrBelowMinimum   = errors.New("amount is below the location's minimum investment")
	ErrAboveRemaining = errors.New("amount exceeds the location's remaining allocation")
)

func (c *Client) Me(ctx context.Context) (models.User, error) {
	var out userPayload
	_, err := c.do(ctx, http.MethodGet, "/me", nil, authRequired, &out)
	return out.User, err
}

func (c *Client) UpdateProfile(ctx context.Context, update models.ProfileUpdate) (models.User, error) {
	var out userPayload
	_, err := c.do(ctx, http.MethodPut, "/me", update, authRequired, &out)
	return out.User, err
}

type ServiceQuery struct {
	Search   string
	Category string
	Postcode string
}

func (q ServiceQuery) encode() string {
	values := url.Values{}
	if s := strings.TrimSpace(q.Search); s != "" {
		values.Set("search", s)
	}
	if s := strings.TrimSpace(q.Category); s != "" {
		values.Set("category", s)
	}
	if s := strings.TrimSpace(q.Postcode); s != "" {
		values.Set("postcode", s)
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

func (c *Client) ListServices(ctx context.Context, q ServiceQuery) ([]models.Service, error) {
	var out struct {
		Services []models.Service `json:"services"`
	}
	_, err := c.do(ctx, http.MethodGet, "/services"+q.encode(), nil, authOptional, &out)
	return out.Services, err
}

func (c *Client) GetService(ctx context.Context, id string) (models.Service, error) {
	var out struct {
		Service models.Service `json:"service"`
	}
	_, err := c.do(ctx, http.MethodGet, "/services/"+url.PathEscape(id), nil, authOptional, &out)
	return out.Service, err
}

func (c *Client) ListBookings(ctx context.Context) ([]models.Booking, error) {
	var out struct {
		Bookings []models.Booking `json:"bookings"`
	}
	_, err := c.do(ctx, http.MethodGet, "/bookings", nil, authRequired, &out)
	return out.Bookings, err
}

func (c *Client) CreateBooking(ctx context.Context, serviceID string, startsAt time.Time) (models.Booking, error) {
	var out struct {
		Booking models.Booking `json:"booking"`
	}
	_, err := c.do(ctx, http.MethodPost, "/bookings", map[string]any{
		"service_id": serviceID,
		"starts_at":  startsAt.UTC().Format(time.RFC3339),
	}, authRequired, &out)
	return out.Booking, err
}

func (c *Client) CancelBooking(ctx context.Context, id string) (models.Booking, error) {
	var out struct {
		Booking models.Booking `json:"booking"`
	}
	_, err := c.do(ctx, http.MethodPost, "/bookings/"+url.PathEscape(id)+"/cancel", nil, authRequired, &out)
	return out.Booking, err
}

func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	var out struct {
		Conversations []models.Conversation `json:"conversations"`
	}
	_, err := c.do(ctx, http.MethodGet, "/conversations", nil, authRequired, &out)
	return out.Conversations, err
}

func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	_, err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID)+"/messages", nil, authRequired, &out)
	return out.Messages, err
}

func (c *Client) SendMessage(ctx context.Context, conversationID string, body string) (models.Message, error) {
	var out struct {
		Message models.Message `json:"message"`
	}
	_, err := c.do(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/messages",
		map[string]string{"body": body}, authRequired, &out)
	return out.Message, err
}

func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	var out struct {
		Notifications []models.Notification `json:"notifications"`
	}
	_, err := c.do(ctx, http.MethodGet, "/notifications", nil, authRequired, &out)
	return out.Notifications, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodPost, "/notifications/"+url.PathEscape(id)+"/read", nil, authRequired, nil)
	return err
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Unread int `json:"unread"`
	}
	_, err := c.do(ctx, http.MethodGet, "/notifications/unread-count", nil, authRequired, &out)
	return out.Unread, err
}

func (c *Client) ListLocations(ctx context.Context) ([]models.Location, error) {
	var out struct {
		Locations []models.Location `json:"locations"`
	}
	_, err := c.do(ctx, http.MethodGet, "/locations", nil, authOptional, &out)
	return out.Locations, err
}

func (c *Client) ListInvestments(ctx context.Context) ([]models.Investment, error) {
	var out struct {
		Investments []models.Investment `json:"investments"`
	}
	_, err := c.do(ctx, http.MethodGet, "/investments", nil, authRequired, &out)
	return out.Investments, err
}

// Invest checks amount against the location's limits before sending it, so an
// obviously invalid amount never reaches the API.
func (c *Client) Invest(ctx context.Context, loc models.Location, amount decimal.Decimal) (models.Investment, error) {
	if amount.LessThan(loc.MinInvestment) || !amount.IsPositive() {
		return models.Investment{}, fmt.Errorf("%w: minimum is %s", ErrBelowMinimum, loc.MinInvestment.StringFixed(2))
	}
	if amount.GreaterThan(loc.Remaining()) {
		return models.Investment{}, fmt.Errorf("%w: %s left", ErrAboveRemaining, loc.Remaining().StringFixed(2))
	}

	var out struct {
		Investment models.Investment `json:"investment"`
	}
	_, err := c.do(ctx, http.MethodPost, "/investments", map[string]any{
		"location_id": loc.ID,
		"amount":      amount,
	}, authRequired, &out)
	return out.Investment, err
}
