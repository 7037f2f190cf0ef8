package ports

import (
	"context"

	"github.com/digipilot/account-service/internal/core/domain"
)

// UserRepository defines the persistence contract for user accounts.
// Every lookup excludes soft-deleted rows; FindByResetToken additionally
// requires the token expiry to lie in the future.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByResetToken(ctx context.Context, token string) (*domain.User, error)
	ListAll(ctx context.Context) ([]domain.User, error)

	Insert(ctx context.Context, user *domain.User) (*domain.User, error)
	Save(ctx context.Context, user *domain.User) (*domain.User, error)
	SoftDelete(ctx context.Context, user *domain.User) (*domain.User, error)
}
