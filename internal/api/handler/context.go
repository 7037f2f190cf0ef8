package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/digipilot/account-service/internal/core/domain"
)

// actorFromContext rebuilds the requesting user from the claims injected by
// the Auth middleware. On public routes (no middleware) it returns nil,
// which the service treats as an unauthenticated registration.
func actorFromContext(c echo.Context) *domain.User {
	id, _ := c.Get("user_id").(string)
	role, _ := c.Get("role").(string)
	if id == "" || role == "" {
		return nil
	}
	return &domain.User{ID: id, Role: domain.Role(role)}
}
