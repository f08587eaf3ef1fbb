package devserver

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wellnest/core/internal/models"
)

const minPasswordLength = 8

type registerRequest struct {
	Name                 string `json:"name" binding:"required"`
	Email                string `json:"email" binding:"required,email"`
	Password             string `json:"password" binding:"required"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type authResponse struct {
	Token     string      `json:"token,omitempty"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	User      models.User `json:"user"`
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusUnprocessableEntity, "invalid request", map[string][]string{
			"request": {err.Error()},
		})
		return false
	}
	return true
}

func passwordErrors(password string, confirmation string, requireConfirmation bool) map[string][]string {
	var problems []string
	if len(password) < minPasswordLength {
		problems = append(problems, "The password must be at least 8 characters.")
	}
	if requireConfirmation && password != confirmation {
		problems = append(problems, "The password confirmation does not match.")
	}
	if len(problems) == 0 {
		return nil
	}
	return map[string][]string{"password": problems}
}

func (b *Backend) handleRegister(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	if errs := passwordErrors(req.Password, req.PasswordConfirmation, true); errs != nil {
		fail(c, http.StatusUnprocessableEntity, "validation failed", errs)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	code, err := sixDigitCode()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	user, err := b.state.register(req.Name, req.Email, hash, code, b.now())
	if errors.Is(err, ErrEmailTaken) {
		fail(c, http.StatusUnprocessableEntity, "validation failed", map[string][]string{
			"email": {"The email has already been taken."},
		})
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}

	b.emitCode("verify", user.Email, code)
	respond(c, http.StatusCreated, gin.H{"email": user.Email}, "verification code sent")
}

type verifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}

// handleVerifyEmail answers with the token only; the client reads the expiry
// from the token itself.
func (b *Backend) handleVerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := b.state.verify(req.Email, strings.TrimSpace(req.Code), b.now())
	if err != nil {
		fail(c, http.StatusUnprocessableEntity, err.Error(), map[string][]string{"code": {err.Error()}})
		return
	}

	token, _, err := b.issueToken(user.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	respond(c, http.StatusOK, gin.H{"access_token": token, "user": user}, "email verified")
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (b *Backend) handleResendVerification(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	code, err := sixDigitCode()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if err := b.state.setVerifyCode(req.Email, code, b.now()); err != nil {
		fail(c, http.StatusNotFound, "unknown email", nil)
		return
	}
	b.emitCode("verify", normalizeEmail(req.Email), code)
	respond(c, http.StatusOK, nil, "verification code sent")
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (b *Backend) handleLogin(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	acc, err := b.state.credentials(req.Email)
	if err != nil {
		fail(c, http.StatusUnauthorized, ErrInvalidCredentials.Error(), nil)
		return
	}
	ok, err := verifyPassword(req.Password, acc.PasswordHash)
	if err != nil || !ok {
		fail(c, http.StatusUnauthorized, ErrInvalidCredentials.Error(), nil)
		return
	}
	if !acc.Verified {
		fail(c, http.StatusForbidden, ErrNotVerified.Error(), nil)
		return
	}

	token, expiresAt, err := b.issueToken(acc.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	respond(c, http.StatusOK, authResponse{Token: token, ExpiresAt: &expiresAt, User: acc.User}, "")
}

func (b *Backend) issueToken(userID string) (string, time.Time, error) {
	sessionID := b.state.openSession(userID)
	token, expiresAt, err := generateAccessToken(b.cfg.JWTSecret, userID, sessionID, b.now(), b.cfg.TokenTTL)
	if err != nil {
		b.state.closeSession(sessionID)
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (b *Backend) handleLogout(c *gin.Context) {
	if sid, ok := c.Get(ctxSession); ok {
		b.state.closeSession(sid.(string))
	}
	respond(c, http.StatusOK, nil, "logged out")
}

func (b *Backend) handleForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindJSON(c, &req) {
		return
	}
	code, err := sixDigitCode()
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if b.state.startReset(req.Email, code, b.now()) {
		b.emitCode("reset", normalizeEmail(req.Email), code)
	}
	respond(c, http.StatusOK, nil, "if the address is registered, a reset code has been sent")
}

func (b *Backend) handleVerifyResetCode(c *gin.Context) {
	var req verifyEmailRequest
	if !bindJSON(c, &req) {
		return
	}
	token, err := b.state.grantReset(req.Email, strings.TrimSpace(req.Code), b.now())
	if err != nil {
		fail(c, http.StatusUnprocessableEntity, err.Error(), map[string][]string{"code": {err.Error()}})
		return
	}
	respond(c, http.StatusOK, gin.H{"reset_token": token}, "")
}

type resetPasswordRequest struct {
	Email                string `json:"email" binding:"required,email"`
	ResetToken           string `json:"reset_token" binding:"required"`
	Password             string `json:"password" binding:"required"`
	PasswordConfirmation string `json:"password_confirmation"`
}

func (b *Backend) handleResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if errs := passwordErrors(req.Password, req.PasswordConfirmation, true); errs != nil {
		fail(c, http.StatusUnprocessableEntity, "validation failed", errs)
		return
	}

	hash, err := hashPassword(req.Password)
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if err := b.state.resetPassword(req.Email, req.ResetToken, hash, b.now()); err != nil {
		fail(c, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}
	respond(c, http.StatusOK, nil, "password updated")
}

func (b *Backend) handleMe(c *gin.Context) {
	user, _ := currentUser(c)
	respond(c, http.StatusOK, gin.H{"user": user}, "")
}

func (b *Backend) handleUpdateProfile(c *gin.Context) {
	user, _ := currentUser(c)

	var req models.ProfileUpdate
	if !bindJSON(c, &req) {
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		fail(c, http.StatusUnprocessableEntity, "validation failed", map[string][]string{
			"name": {"The name field is required."},
		})
		return
	}

	updated, err := b.state.updateProfile(user.ID, req)
	if err != nil {
		fail(c, http.StatusNotFound, err.Error(), nil)
		return
	}
	respond(c, http.StatusOK, gin.H{"user": updated}, "profile updated")
}
