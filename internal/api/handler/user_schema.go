package handler

import "time"

// --- Request types ---

type createUserRequest struct {
	FirstName string `json:"first_name" validate:"required,max=50"`
	LastName  string `json:"last_name"  validate:"required,max=50"`
	Email     string `json:"email"      validate:"required,email"`
	Password  string `json:"password"   validate:"omitempty,min=5"`
	Phone     string `json:"phone"      validate:"omitempty,max=30"`
	Role      string `json:"role"       validate:"omitempty,oneof=root customer"`
	ReplyURL  string `json:"reply_url"  validate:"required,url"`
}

// updateUserRequest is a partial patch: nil means "leave unchanged".
type updateUserRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=50"`
	LastName  *string `json:"last_name"  validate:"omitempty,max=50"`
	Email     *string `json:"email"      validate:"omitempty,email"`
	Password  *string `json:"password"   validate:"omitempty,min=5"`
	Phone     *string `json:"phone"      validate:"omitempty,max=30"`
	Role      *string `json:"role"       validate:"omitempty,oneof=root customer"`
}

type signInRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type forgotPasswordRequest struct {
	Email    string `json:"email"     validate:"required,email"`
	ReplyURL string `json:"reply_url" validate:"required,url"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"    validate:"required,len=40"`
	Password string `json:"password" validate:"required,min=5"`
}

// --- Response types ---

// userResponse is the outward shape of a user. The password hash and the
// reset token fields are never serialized.
type userResponse struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type signInResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type statusResponse struct {
	Status string `json:"status"`
}
