package ports

import "context"

// Mailer dispatches the account lifecycle emails through an external
// transport. A failed send returns immediately; there is no retry or
// queueing at this layer.
type Mailer interface {
	// SendNewAccount delivers the setup link for an auto-provisioned
	// account.
	SendNewAccount(ctx context.Context, to, setupLink string) error
	// SendPasswordRecovery delivers a reset link after a forgot-password
	// request.
	SendPasswordRecovery(ctx context.Context, to, name, resetLink string) error
	// SendPasswordChanged confirms a completed password reset.
	SendPasswordChanged(ctx context.Context, to, name string) error
}
