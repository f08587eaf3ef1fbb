package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"wellnest/core/internal/models"
	"wellnest/core/internal/session"
)

var tokenPaths = []string{"data.token", "data.access_token"}

type RegisterInput struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type userPayload struct {
	User models.User `json:"user"`
}

func (c *Client) Register(ctx context.Context, in RegisterInput) error {
	in.Email = strings.TrimSpace(in.Email)
	if in.PasswordConfirmation == "" {
		in.PasswordConfirmation = in.Password
	}
	if _, err := c.do(ctx, http.MethodPost, "/register", in, authNone, nil); err != nil {
		return err
	}
	return c.session.SetPendingEmail(ctx, in.Email)
}

// VerifyEmail confirms the pending registration and signs the user in.
func (c *Client) VerifyEmail(ctx context.Context, code string) (models.User, error) {
	email, ok, err := c.session.PendingEmail(ctx)
	if err != nil {
		return models.User{}, err
	}
	if !ok {
		return models.User{}, ErrNoPendingFlow
	}

	var out userPayload
	raw, err := c.do(ctx, http.MethodPost, "/verify-email", map[string]string{
		"email": email,
		"code":  strings.TrimSpace(code),
	}, authNone, &out)
	if err != nil {
		return models.User{}, err
	}
	if err := c.startSession(ctx, raw); err != nil {
		return models.User{}, err
	}
	if err := c.session.ClearPendingEmail(ctx); err != nil {
		return models.User{}, err
	}
	return out.User, nil
}

func (c *Client) ResendVerification(ctx context.Context) error {
	email, ok, err := c.session.PendingEmail(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPendingFlow
	}
	_, err = c.do(ctx, http.MethodPost, "/resend-verification", map[string]string{"email": email}, authNone, nil)
	return err
}

func (c *Client) Login(ctx context.Context, email string, password string) (models.User, error) {
	var out userPayload
	raw, err := c.do(ctx, http.MethodPost, "/login", map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	}, authNone, &out)
	if err != nil {
		return models.User{}, err
	}
	if err := c.startSession(ctx, raw); err != nil {
		return models.User{}, err
	}
	if err := c.session.ClearGuestMode(ctx); err != nil {
		return models.User{}, err
	}

	c.log.Info().Str("user_id", out.User.ID).Msg("signed in")
	return out.User, nil
}

func (c *Client) ContinueAsGuest(ctx context.Context) error {
	return c.session.SetGuestMode(ctx)
}

// Logout tells the API to revoke the token when there is one to revoke, and
// clears the local session whether or not that call succeeds.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := c.do(ctx, http.MethodPost, "/logout", nil, authRequired, nil); err != nil &&
		!errors.Is(err, ErrNotAuthenticated) {
		c.log.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
	}
	return c.session.Clear(ctx)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if _, err := c.do(ctx, http.MethodPost, "/forgot-password", map[string]string{"email": email}, authNone, nil); err != nil {
		return err
	}
	return c.session.SetResetEmail(ctx, email)
}

func (c *Client) VerifyResetCode(ctx context.Context, code string) error {
	email, ok, err := c.session.ResetEmail(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPendingFlow
	}

	var out struct {
		ResetToken string `json:"reset_token"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/verify-reset-code", map[string]string{
		"email": email,
		"code":  strings.TrimSpace(code),
	}, authNone, &out); err != nil {
		return err
	}
	if out.ResetToken == "" {
		return ErrMissingToken
	}
	return c.session.SetResetToken(ctx, out.ResetToken)
}

// ResetPassword completes a reset started with ForgotPassword. Any existing
// session is signed out.
func (c *Client) ResetPassword(ctx context.Context, password string) error {
	email, ok, err := c.session.ResetEmail(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPendingFlow
	}
	token, ok, err := c.session.ResetToken(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoPendingFlow
	}

	if _, err := c.do(ctx, http.MethodPost, "/reset-password", map[string]string{
		"email":                 email,
		"reset_token":           token,
		"password":              password,
		"password_confirmation": password,
	}, authNone, nil); err != nil {
		return err
	}

	return errors.Join(c.session.ClearReset(ctx), c.session.Clear(ctx))
}

func (c *Client) startSession(ctx context.Context, raw []byte) error {
	token, expiry, err := c.extractSession(raw)
	if err != nil {
		return err
	}
	if err := c.session.Save(ctx, token, expiry); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// extractSession reads the access token and its expiry from an auth response.
// The expiry comes from data.expires_at when present, then from the token's
// own exp claim, then falls back to the default session lifetime.
func (c *Client) extractSession(raw []byte) (string, time.Time, error) {
	var token string
	for _, path := range tokenPaths {
		if v := gjson.GetBytes(raw, path); v.Type == gjson.String && v.String() != "" {
			token = v.String()
			break
		}
	}
	if token == "" {
		return "", time.Time{}, ErrMissingToken
	}

	if v := gjson.GetBytes(raw, "data.expires_at"); v.Exists() {
		if expiry, err := time.Parse(time.RFC3339, v.String()); err == nil {
			return token, expiry, nil
		}
		c.log.Warn().Str("expires_at", v.String()).Msg("unparseable expires_at in auth response")
	}

	if expiry, ok := tokenExpiry(token); ok {
		return token, expiry, nil
	}
	return token, c.now().Add(c.defaultTTL), nil
}

// tokenExpiry reads the exp claim without verifying the signature; the client
// never holds the signing key and only uses it to schedule re-authentication.
func tokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Mode reports whether the user is signed in, browsing as a guest, or has
// chosen neither yet.
func (c *Client) Mode(ctx context.Context) (session.Mode, error) {
	return c.session.Mode(ctx)
}
