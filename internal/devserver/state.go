package devserver

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"wellnest/core/internal/ids"
	"wellnest/core/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNotVerified        = errors.New("email not verified")
	ErrInvalidCode        = errors.New("invalid or expired code")
	ErrNotFound           = errors.New("not found")
	ErrBookingClosed      = errors.New("booking already cancelled")
	ErrBelowMinimum       = errors.New("amount below minimum investment")
	ErrOverSubscribed     = errors.New("amount exceeds remaining allocation")
)

const codeTTL = 15 * time.Minute

type account struct {
	models.User
	PasswordHash []byte
}

type pendingCode struct {
	Code      string
	ExpiresAt time.Time
}

type resetGrant struct {
	Email     string
	ExpiresAt time.Time
}

// state is the in-memory backing data of the development backend.
type state struct {
	mu sync.Mutex

	accounts      map[string]*account // by user id
	emails        map[string]string   // email -> user id
	sessions      map[string]string   // session id -> user id
	verifyCodes   map[string]pendingCode
	resetCodes    map[string]pendingCode
	resetGrants   map[string]resetGrant // reset token -> grant
	services      []models.Service
	bookings      map[string]*models.Booking
	conversations map[string]*models.Conversation
	messages      map[string][]models.Message
	notifications map[string]*models.Notification
	locations     map[string]*models.Location
	investments   []models.Investment
}

func newState() *state {
	return &state{
		accounts:      map[string]*account{},
		emails:        map[string]string{},
		sessions:      map[string]string{},
		verifyCodes:   map[string]pendingCode{},
		resetCodes:    map[string]pendingCode{},
		resetGrants:   map[string]resetGrant{},
		bookings:      map[string]*models.Booking{},
		conversations: map[string]*models.Conversation{},
		messages:      map[string][]models.Message{},
		notifications: map[string]*models.Notification{},
		locations:     map[string]*models.Location{},
	}
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func (s *state) register(name string, email string, passwordHash []byte, code string, now time.Time) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = normalizeEmail(email)
	if _, ok := s.emails[email]; ok {
		return models.User{}, ErrEmailTaken
	}

	acc := &account{
		User: models.User{
			ID:        ids.New(),
			Name:      strings.TrimSpace(name),
			Email:     email,
			CreatedAt: now,
		},
		PasswordHash: passwordHash,
	}
	s.accounts[acc.ID] = acc
	s.emails[email] = acc.ID
	s.verifyCodes[email] = pendingCode{Code: code, ExpiresAt: now.Add(codeTTL)}
	return acc.User, nil
}

func (s *state) setVerifyCode(email string, code string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = normalizeEmail(email)
	id, ok := s.emails[email]
	if !ok {
		return ErrNotFound
	}
	if s.accounts[id].Verified {
		return nil
	}
	s.verifyCodes[email] = pendingCode{Code: code, ExpiresAt: now.Add(codeTTL)}
	return nil
}

func (s *state) verify(email string, code string, now time.Time) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = normalizeEmail(email)
	pending, ok := s.verifyCodes[email]
	if !ok || pending.Code != code || now.After(pending.ExpiresAt) {
		return models.User{}, ErrInvalidCode
	}
	delete(s.verifyCodes, email)

	acc := s.accounts[s.emails[email]]
	acc.Verified = true
	return acc.User, nil
}

func (s *state) credentials(email string) (*account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.emails[normalizeEmail(email)]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	acc := *s.accounts[id]
	return &acc, nil
}

func (s *state) openSession(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ids.New()
	s.sessions[id] = userID
	return id
}

func (s *state) sessionUser(sessionID string) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.sessions[sessionID]
	if !ok {
		return models.User{}, false
	}
	acc, ok := s.accounts[userID]
	if !ok {
		return models.User{}, false
	}
	return acc.User, true
}

func (s *state) closeSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *state) closeUserSessions(userID string) {
	for id, owner := range s.sessions {
		if owner == userID {
			delete(s.sessions, id)
		}
	}
}

// startReset returns false when the email is unknown; callers answer the
// same way in both cases.
func (s *state) startReset(email string, code string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = normalizeEmail(email)
	if _, ok := s.emails[email]; !ok {
		return false
	}
	s.resetCodes[email] = pendingCode{Code: code, ExpiresAt: now.Add(codeTTL)}
	return true
}

func (s *state) grantReset(email string, code string, now time.Time) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email = normalizeEmail(email)
	pending, ok := s.resetCodes[email]
	if !ok || pending.Code != code || now.After(pending.ExpiresAt) {
		return "", ErrInvalidCode
	}
	delete(s.resetCodes, email)

	token := ids.New()
	s.resetGrants[token] = resetGrant{Email: email, ExpiresAt: now.Add(codeTTL)}
	return token, nil
}

func (s *state) resetPassword(email string, token string, passwordHash []byte, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	grant, ok := s.resetGrants[token]
	if !ok || grant.Email != normalizeEmail(email) || now.After(grant.ExpiresAt) {
		return ErrInvalidCode
	}
	delete(s.resetGrants, token)

	acc := s.accounts[s.emails[grant.Email]]
	acc.PasswordHash = passwordHash
	s.closeUserSessions(acc.ID)
	return nil
}

func (s *state) updateProfile(userID string, update models.ProfileUpdate) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[userID]
	if !ok {
		return models.User{}, ErrNotFound
	}
	if update.Name != nil {
		acc.Name = strings.TrimSpace(*update.Name)
	}
	if update.Phone != nil {
		acc.Phone = strings.TrimSpace(*update.Phone)
	}
	if update.Postcode != nil {
		acc.Postcode = strings.ToUpper(strings.TrimSpace(*update.Postcode))
	}
	return acc.User, nil
}

type serviceFilter struct {
	Search   string
	Category string
	Postcode string
}

func (s *state) listServices(f serviceFilter) []models.Service {
	s.mu.Lock()
	defer s.mu.Unlock()

	search := strings.ToLower(strings.TrimSpace(f.Search))
	district := postcodeDistrict(f.Postcode)

	out := make([]models.Service, 0, len(s.services))
	for _, svc := range s.services {
		if f.Category != "" && !strings.EqualFold(svc.Category, f.Category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(svc.Name), search) &&
			!strings.Contains(strings.ToLower(svc.Description), search) {
			continue
		}
		if district != "" && postcodeDistrict(svc.Postcode) != district {
			continue
		}
		out = append(out, svc)
	}
	return out
}

func postcodeDistrict(postcode string) string {
	fields := strings.Fields(strings.ToUpper(postcode))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func (s *state) service(id string) (models.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, svc := range s.services {
		if svc.ID == id {
			return svc, nil
		}
	}
	return models.Service{}, ErrNotFound
}

func (s *state) createBooking(userID string, serviceID string, startsAt time.Time, now time.Time) (models.Booking, error) {
	svc, err := s.service(serviceID)
	if err != nil {
		return models.Booking{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	booking := &models.Booking{
		ID:        ids.New(),
		UserID:    userID,
		ServiceID: serviceID,
		StartsAt:  startsAt.UTC(),
		Status:    models.BookingStatusConfirmed,
		CreatedAt: now,
	}
	s.bookings[booking.ID] = booking

	s.notifyLocked(userID, "Booking confirmed",
		svc.Name+" on "+booking.StartsAt.Format("Mon 2 Jan 15:04"), now)
	s.conversationLocked(userID, svc, now)

	return *booking, nil
}

func (s *state) cancelBooking(userID string, bookingID string, now time.Time) (models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[bookingID]
	if !ok || booking.UserID != userID {
		return models.Booking{}, ErrNotFound
	}
	if booking.Status == models.BookingStatusCancelled {
		return models.Booking{}, ErrBookingClosed
	}
	booking.Status = models.BookingStatusCancelled
	s.notifyLocked(userID, "Booking cancelled", "Your booking has been cancelled.", now)
	return *booking, nil
}

func (s *state) listBookings(userID string) []models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Booking, 0)
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out
}

func (s *state) conversationLocked(userID string, svc models.Service, now time.Time) *models.Conversation {
	for _, c := range s.conversations {
		if c.UserID == userID && c.ServiceID == svc.ID {
			return c
		}
	}
	c := &models.Conversation{
		ID:        ids.New(),
		UserID:    userID,
		ServiceID: svc.ID,
		Title:     svc.Name,
		UpdatedAt: now,
	}
	s.conversations[c.ID] = c
	s.messages[c.ID] = append(s.messages[c.ID], models.Message{
		ID:             ids.New(),
		ConversationID: c.ID,
		Sender:         "provider",
		Body:           "Thanks for booking " + svc.Name + ". Message us here with any questions.",
		SentAt:         now,
	})
	return c
}

func (s *state) listConversations(userID string) []models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Conversation, 0)
	for _, c := range s.conversations {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

func (s *state) listMessages(userID string, conversationID string) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok || c.UserID != userID {
		return nil, ErrNotFound
	}
	return append([]models.Message(nil), s.messages[conversationID]...), nil
}

func (s *state) sendMessage(userID string, conversationID string, body string, now time.Time) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.conversations[conversationID]
	if !ok || c.UserID != userID {
		return models.Message{}, ErrNotFound
	}
	msg := models.Message{
		ID:             ids.New(),
		ConversationID: conversationID,
		Sender:         "user",
		Body:           body,
		SentAt:         now,
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	c.UpdatedAt = now
	return msg, nil
}

func (s *state) notifyLocked(userID string, title string, body string, now time.Time) {
	n := &models.Notification{
		ID:        ids.New(),
		UserID:    userID,
		Title:     title,
		Body:      body,
		CreatedAt: now,
	}
	s.notifications[n.ID] = n
}

func (s *state) listNotifications(userID string) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Notification, 0)
	for _, n := range s.notifications {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *state) markNotificationRead(userID string, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.notifications[id]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.Read = true
	return nil
}

func (s *state) listLocations() []models.Location {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Location, 0, len(s.locations))
	for _, l := range s.locations {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *state) invest(userID string, locationID string, amount decimal.Decimal, now time.Time) (models.Investment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, ok := s.locations[locationID]
	if !ok {
		return models.Investment{}, ErrNotFound
	}
	if amount.LessThan(loc.MinInvestment) {
		return models.Investment{}, ErrBelowMinimum
	}
	if amount.GreaterThan(loc.Remaining()) {
		return models.Investment{}, ErrOverSubscribed
	}

	loc.RaisedAmount = loc.RaisedAmount.Add(amount)
	inv := models.Investment{
		ID:         ids.New(),
		UserID:     userID,
		LocationID: locationID,
		Amount:     amount,
		CreatedAt:  now,
	}
	s.investments = append(s.investments, inv)
	s.notifyLocked(userID, "Investment received", amount.StringFixed(2)+" invested in "+loc.Name, now)
	return inv, nil
}

func (s *state) listInvestments(userID string) []models.Investment {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.Investment, 0)
	for _, inv := range s.investments {
		if inv.UserID == userID {
			out = append(out, inv)
		}
	}
	return out
}
