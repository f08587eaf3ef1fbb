// Package session is the single authority on whether a usable authenticated
// session exists. It keeps no state of its own: every call reads through to
// the injected key-value backend, so a write from one flow is visible to the
// next read from any other.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wellnest/core/internal/storage"
)

const (
	KeyAccessToken   = "access_token"
	KeySessionExpiry = "session_expiry"
	KeyUserMode      = "user_mode"
)

const guestModeValue = "guest"

var ErrEmptyToken = errors.New("session token is empty")

type Mode string

const (
	ModeUnknown       Mode = "unknown"
	ModeGuest         Mode = "guest"
	ModeAuthenticated Mode = "authenticated"
)

type Option func(*Store)

// WithClock replaces time.Now for validity checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

type Store struct {
	kv  storage.KeyValue
	now func() time.Time
	log zerolog.Logger
}

func New(kv storage.KeyValue, opts ...Option) *Store {
	s := &Store{
		kv:  kv,
		now: time.Now,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save persists token and expiry. The guest flag is left alone; flows that
// leave guest mode clear it themselves.
//
// The old expiry is removed before the new token is written, so a partial
// write never pairs the new token with the previous session's expiry.
func (s *Store) Save(ctx context.Context, token string, expiry time.Time) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := s.delete(ctx, KeySessionExpiry); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyAccessToken, token); err != nil {
		return fmt.Errorf("save access token: %w", err)
	}
	if err := s.kv.Set(ctx, KeySessionExpiry, expiry.UTC().Format(time.RFC3339Nano)); err != nil {
		return errors.Join(fmt.Errorf("save session expiry: %w", err), s.delete(ctx, KeyAccessToken))
	}
	return nil
}

// Token returns the stored token verbatim. ok is false when none is stored.
func (s *Store) Token(ctx context.Context) (token string, ok bool, err error) {
	token, ok, err = s.kv.Get(ctx, KeyAccessToken)
	if err != nil {
		return "", false, fmt.Errorf("read access token: %w", err)
	}
	if token == "" {
		return "", false, nil
	}
	return token, ok, nil
}

// Expiry returns the stored expiry. A value that does not parse counts as
// absent.
func (s *Store) Expiry(ctx context.Context) (time.Time, bool, error) {
	raw, ok, err := s.kv.Get(ctx, KeySessionExpiry)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read session expiry: %w", err)
	}
	if !ok || raw == "" {
		return time.Time{}, false, nil
	}
	expiry, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		s.log.Warn().Err(err).Str("value", raw).Msg("ignoring malformed session expiry")
		return time.Time{}, false, nil
	}
	return expiry, true, nil
}

// IsValid reports whether a token and an expiry are both stored and the
// expiry is strictly after now. It never touches the network and never
// removes an expired token.
func (s *Store) IsValid(ctx context.Context) (bool, error) {
	if _, ok, err := s.Token(ctx); err != nil || !ok {
		return false, err
	}
	expiry, ok, err := s.Expiry(ctx)
	if err != nil || !ok {
		return false, err
	}
	return expiry.After(s.now()), nil
}

// Clear removes the token and the expiry. Clearing an empty store is a no-op.
func (s *Store) Clear(ctx context.Context) error {
	return errors.Join(
		s.delete(ctx, KeyAccessToken),
		s.delete(ctx, KeySessionExpiry),
	)
}

func (s *Store) SetGuestMode(ctx context.Context) error {
	if err := s.kv.Set(ctx, KeyUserMode, guestModeValue); err != nil {
		return fmt.Errorf("set guest mode: %w", err)
	}
	return nil
}

func (s *Store) ClearGuestMode(ctx context.Context) error {
	return s.delete(ctx, KeyUserMode)
}

// IsGuest reports the explicit guest flag. It is independent of IsValid.
func (s *Store) IsGuest(ctx context.Context) (bool, error) {
	v, ok, err := s.kv.Get(ctx, KeyUserMode)
	if err != nil {
		return false, fmt.Errorf("read user mode: %w", err)
	}
	return ok && v == guestModeValue, nil
}

// Mode derives the user mode: authenticated wins over the guest flag, and
// neither means the user has not chosen yet.
func (s *Store) Mode(ctx context.Context) (Mode, error) {
	valid, err := s.IsValid(ctx)
	if err != nil {
		return ModeUnknown, err
	}
	if valid {
		return ModeAuthenticated, nil
	}
	guest, err := s.IsGuest(ctx)
	if err != nil {
		return ModeUnknown, err
	}
	if guest {
		return ModeGuest, nil
	}
	return ModeUnknown, nil
}

// BearerHeader returns the Authorization header value for the current
// session, or ok=false when the session is not valid.
func (s *Store) BearerHeader(ctx context.Context) (string, bool, error) {
	valid, err := s.IsValid(ctx)
	if err != nil || !valid {
		return "", false, err
	}
	token, ok, err := s.Token(ctx)
	if err != nil || !ok {
		return "", false, err
	}
	return "Bearer " + token, true, nil
}

func (s *Store) delete(ctx context.Context, key string) error {
	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}
