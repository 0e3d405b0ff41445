package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/koinonia-app/koinonia/internal/platform/httpx"
	"github.com/koinonia-app/koinonia/internal/shared"
)

// resetTokenTTL is how long a password reset link stays redeemable.
const resetTokenTTL = time.Hour

// minPasswordScore is the acceptance threshold for PasswordScore.
const minPasswordScore = 90

// Mailer delivers transactional email. Implementations usually enqueue onto
// the background job queue rather than sending inline.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, to, subject, body string) error

// Send calls the wrapped function.
func (f MailerFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	mailer Mailer
}

// NewService constructs a new Service. mailer may be nil, in which case reset
// emails are silently skipped.
func NewService(repo Repository, mailer Mailer) *Service {
	return &Service{repo: repo, mailer: mailer}
}

// Authenticate validates email/password credentials. Unknown emails, inactive
// accounts and wrong passwords all fail with the same error.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !account.Active() {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return account, nil
}

// RegisterInput carries new-account fields.
type RegisterInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Register creates a new active account. Weak passwords fail with a
// validation error; an already-registered email surfaces httpx.ErrDuplicate
// so the handler can respond enumeration-safely.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*Account, error) {
	if PasswordScore(input.Password) < minPasswordScore {
		return nil, fmt.Errorf("%w: password too weak, use a mix of uppercase, lowercase, numbers, and special characters", httpx.ErrValidation)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	account := &Account{
		ID:           shared.NewID("user"),
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Status:       "active",
	}
	if err := s.repo.CreateAccount(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// RequestPasswordReset starts the reset flow. It never reports whether the
// email exists: unknown accounts return nil so the handler stays
// enumeration-safe.
func (s *Service) RequestPasswordReset(ctx context.Context, email, resetBaseURL string) error {
	account, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return nil
		}
		return err
	}

	// Old tokens for this user are invalidated before issuing a new one.
	if err := s.repo.DeleteResetTokensForUser(ctx, account.ID); err != nil {
		return err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return err
	}
	token := &PasswordResetToken{
		ID:        shared.NewID("reset"),
		UserID:    account.ID,
		Token:     hex.EncodeToString(raw),
		ExpiresAt: time.Now().Add(resetTokenTTL),
	}
	if err := s.repo.CreateResetToken(ctx, token); err != nil {
		return err
	}

	if s.mailer != nil {
		resetURL := fmt.Sprintf("%s/reset-password?token=%s", strings.TrimRight(resetBaseURL, "/"), token.Token)
		body := fmt.Sprintf("Hello %s,\n\nA password reset was requested for your account. "+
			"The link below is valid for one hour:\n\n%s\n\nIf you did not request this, ignore this email.",
			account.FirstName, resetURL)
		if err := s.mailer.Send(ctx, account.Email, "Reset your password", body); err != nil {
			return err
		}
	}
	return nil
}

// ResetPassword redeems a reset token and replaces the account password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	rec, err := s.repo.FindResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, httpx.ErrNotFound) {
			return fmt.Errorf("%w: invalid or expired reset token", httpx.ErrValidation)
		}
		return err
	}
	if !rec.Valid(time.Now()) {
		return fmt.Errorf("%w: invalid or expired reset token", httpx.ErrValidation)
	}
	if PasswordScore(newPassword) < minPasswordScore {
		return fmt.Errorf("%w: password too weak, use a mix of uppercase, lowercase, numbers, and special characters", httpx.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, rec.UserID, string(hash)); err != nil {
		return err
	}
	if err := s.repo.MarkResetTokenUsed(ctx, rec.ID); err != nil {
		return err
	}
	return s.repo.DeleteResetTokensForUser(ctx, rec.UserID)
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id, userID string, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

// PasswordScore rates a candidate password. Length of eight or more earns 60
// points; a digit, a lowercase letter, an uppercase letter and a special
// character (@#$%^&*_) earn 10 each.
func PasswordScore(password string) int {
	score := 0
	if len(password) >= 8 {
		score += 60
	}
	var hasDigit, hasLower, hasUpper, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case strings.ContainsRune("@#$%^&*_", r):
			hasSpecial = true
		}
	}
	for _, met := range []bool{hasDigit, hasLower, hasUpper, hasSpecial} {
		if met {
			score += 10
		}
	}
	return score
}
