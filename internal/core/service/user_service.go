package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/digipilot/account-service/internal/core/domain"
	"github.com/digipilot/account-service/internal/core/ports"
	"github.com/digipilot/account-service/internal/pkg/password"
	"github.com/digipilot/account-service/internal/pkg/token"
)

const (
	resetTokenTTL           = 24 * time.Hour
	generatedPasswordLength = 10
)

type userService struct {
	repo   ports.UserRepository
	mailer ports.Mailer
	log    zerolog.Logger
}

// NewUserService returns the UserService implementation coordinating the
// repository and the mailer.
func NewUserService(repo ports.UserRepository, mailer ports.Mailer, log zerolog.Logger) ports.UserService {
	return &userService{repo: repo, mailer: mailer, log: log}
}

// Create registers a new account. When the caller supplies no password, one
// is generated and the new user receives a setup email with a reset link
// so they can choose their own. A failed setup email does not roll back
// the created account.
func (s *userService) Create(ctx context.Context, input ports.CreateUserInput, actor *domain.User) (*domain.User, error) {
	role := input.Role
	if role == "" {
		role = domain.RoleCustomer
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}

	// 1. Only root may create root accounts.
	if actor != nil && !actor.Role.CanAssign(role) {
		return nil, domain.ErrPermissionDenied
	}

	// 2. Email must be free among non-deleted users.
	if _, err := s.repo.FindByEmail(ctx, input.Email); err == nil {
		return nil, domain.ErrDuplicateEmail
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("create user: lookup email: %w", err)
	}

	// 3. Auto-provision a password when none was supplied.
	plaintext := input.Password
	autoProvisioned := plaintext == ""
	if autoProvisioned {
		generated, err := token.GeneratePassword(generatedPasswordLength, true)
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		plaintext = generated
	}

	hash, err := password.Hash(plaintext)
	if err != nil {
		return nil, fmt.Errorf("create user: hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        input.Email,
		PasswordHash: hash,
		Phone:        input.Phone,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 4. An auto-provisioned account gets a setup token so the emailed
	// link lets the user pick a password without signing in first.
	if autoProvisioned {
		setupToken, err := token.NewResetToken()
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		expires := now.Add(resetTokenTTL)
		user.ResetPasswordToken = setupToken
		user.ResetPasswordExpires = &expires
	}

	created, err := s.repo.Insert(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			return nil, domain.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	// 5. The account already exists at this point; a failed setup email is
	// logged, not rolled back.
	if autoProvisioned {
		link := s.replyLink(input.ReplyURL, created.ID, created.ResetPasswordToken)
		if err := s.mailer.SendNewAccount(ctx, created.Email, link); err != nil {
			s.log.Error().Err(err).Str("user_id", created.ID).Msg("failed to send account setup email")
		}
	}

	s.log.Info().Str("user_id", created.ID).Str("role", string(created.Role)).Msg("user created")
	return created, nil
}

// Update applies a partial patch; absent fields keep their stored value.
func (s *userService) Update(ctx context.Context, id string, patch ports.UpdateUserInput, actor *domain.User) (*domain.User, error) {
	// 1. Only root may promote to root.
	if patch.Role != nil {
		if !patch.Role.Valid() {
			return nil, domain.ErrInvalidRole
		}
		if actor == nil || !actor.Role.CanAssign(*patch.Role) {
			return nil, domain.ErrPermissionDenied
		}
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// 2. A changed email must not collide with another live account.
	if patch.Email != nil && *patch.Email != "" {
		existing, err := s.repo.FindByEmail(ctx, *patch.Email)
		switch {
		case err == nil && existing.ID != id:
			return nil, domain.ErrDuplicateEmail
		case err != nil && !errors.Is(err, domain.ErrUserNotFound):
			return nil, fmt.Errorf("update user: lookup email: %w", err)
		}
		user.Email = *patch.Email
	}

	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.Phone != nil {
		user.Phone = *patch.Phone
	}
	if patch.Role != nil {
		user.Role = *patch.Role
	}
	if patch.Password != nil && *patch.Password != "" {
		hash, err := password.Hash(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("update user: hash password: %w", err)
		}
		user.PasswordHash = hash
	}
	user.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Save(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.log.Info().Str("user_id", updated.ID).Msg("user updated")
	return updated, nil
}

// Delete flips the soft-delete flag; the row is retained.
func (s *userService) Delete(ctx context.Context, id string, actor *domain.User) (*domain.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	deleted, err := s.repo.SoftDelete(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDeleteFailed, err)
	}

	s.log.Info().Str("user_id", id).Msg("user soft-deleted")
	return deleted, nil
}

func (s *userService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *userService) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.repo.FindByEmail(ctx, email)
}

func (s *userService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListAll(ctx)
}

// SignIn verifies credentials. An unknown email and a wrong password are
// indistinguishable to the caller.
func (s *userService) SignIn(ctx context.Context, email, plaintext string) (*domain.User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("sign in: %w", err)
	}

	if !password.Verify(plaintext, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	return user, nil
}

// ForgotPassword issues a reset token valid for 24 hours and emails a
// recovery link. The token is persisted before the email goes out; a
// failed send surfaces as an error even though the token already exists.
func (s *userService) ForgotPassword(ctx context.Context, email, replyURL string) error {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}

	resetToken, err := token.NewResetToken()
	if err != nil {
		return fmt.Errorf("forgot password: %w", err)
	}

	now := time.Now().UTC()
	expires := now.Add(resetTokenTTL)
	user.ResetPasswordToken = resetToken
	user.ResetPasswordExpires = &expires
	user.UpdatedAt = now

	updated, err := s.repo.Save(ctx, user)
	if err != nil {
		return fmt.Errorf("forgot password: persist token: %w", err)
	}

	link := s.replyLink(replyURL, updated.ID, resetToken)
	if err := s.mailer.SendPasswordRecovery(ctx, updated.Email, updated.FullName(), link); err != nil {
		return fmt.Errorf("forgot password: send recovery email: %w", err)
	}

	s.log.Info().Str("user_id", updated.ID).Msg("password recovery email sent")
	return nil
}

// ResetPassword consumes a reset token. The token is cleared on success so
// it cannot be replayed.
func (s *userService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	user, err := s.repo.FindByResetToken(ctx, resetToken)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.ErrTokenInvalid
		}
		return fmt.Errorf("reset password: %w", err)
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("reset password: hash password: %w", err)
	}
	user.PasswordHash = hash
	user.ClearResetToken()
	user.UpdatedAt = time.Now().UTC()

	updated, err := s.repo.Save(ctx, user)
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	if err := s.mailer.SendPasswordChanged(ctx, updated.Email, updated.FullName()); err != nil {
		return fmt.Errorf("reset password: send confirmation email: %w", err)
	}

	s.log.Info().Str("user_id", updated.ID).Msg("password reset completed")
	return nil
}

// replyLink appends the base64-encoded {userId, token} payload to the
// caller-supplied reply URL as a path segment.
func (s *userService) replyLink(replyURL, userID, resetToken string) string {
	payload, _ := json.Marshal(struct {
		UserID string `json:"userId"`
		Token  string `json:"token"`
	}{UserID: userID, Token: resetToken})

	return strings.TrimRight(replyURL, "/") + "/" + base64.StdEncoding.EncodeToString(payload)
}
