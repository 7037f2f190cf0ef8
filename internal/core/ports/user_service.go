package ports

import (
	"context"

	"github.com/digipilot/account-service/internal/core/domain"
)

// CreateUserInput carries the fields accepted when registering an account.
// Password may be empty, in which case one is generated and delivered to
// the new user by email together with a setup link built from ReplyURL.
type CreateUserInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Phone     string
	Role      domain.Role
	ReplyURL  string
}

// UpdateUserInput is a partial patch: nil fields keep their current value.
type UpdateUserInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Password  *string
	Phone     *string
	Role      *domain.Role
}

// UserService orchestrates the account lifecycle. Actor is the
// authenticated user performing the call, or nil for public registration.
type UserService interface {
	Create(ctx context.Context, input CreateUserInput, actor *domain.User) (*domain.User, error)
	Update(ctx context.Context, id string, patch UpdateUserInput, actor *domain.User) (*domain.User, error)
	Delete(ctx context.Context, id string, actor *domain.User) (*domain.User, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)

	SignIn(ctx context.Context, email, password string) (*domain.User, error)
	ForgotPassword(ctx context.Context, email, replyURL string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
}
