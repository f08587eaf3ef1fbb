package session

import (
	"context"
	"fmt"
)

// Flow-scoped keys. Each belongs to the flow that writes it and is removed by
// that flow when it completes; Clear never touches them.
const (
	KeyUserEmail  = "user_email"
	KeyResetEmail = "reset_email"
	KeyResetToken = "reset_token"
)

// SetPendingEmail remembers the address awaiting email verification.
func (s *Store) SetPendingEmail(ctx context.Context, email string) error {
	return s.set(ctx, KeyUserEmail, email)
}

func (s *Store) PendingEmail(ctx context.Context) (string, bool, error) {
	return s.get(ctx, KeyUserEmail)
}

func (s *Store) ClearPendingEmail(ctx context.Context) error {
	return s.delete(ctx, KeyUserEmail)
}

func (s *Store) SetResetEmail(ctx context.Context, email string) error {
	return s.set(ctx, KeyResetEmail, email)
}

func (s *Store) ResetEmail(ctx context.Context) (string, bool, error) {
	return s.get(ctx, KeyResetEmail)
}

func (s *Store) SetResetToken(ctx context.Context, token string) error {
	return s.set(ctx, KeyResetToken, token)
}

func (s *Store) ResetToken(ctx context.Context) (string, bool, error) {
	return s.get(ctx, KeyResetToken)
}

// ClearReset drops both password-reset keys.
func (s *Store) ClearReset(ctx context.Context) error {
	if err := s.delete(ctx, KeyResetEmail); err != nil {
		return err
	}
	return s.delete(ctx, KeyResetToken)
}

func (s *Store) set(ctx context.Context, key string, value string) error {
	if err := s.kv.Set(ctx, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", key, err)
	}
	if v == "" {
		return "", false, nil
	}
	return v, ok, nil
}
