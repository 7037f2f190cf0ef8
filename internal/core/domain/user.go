package domain

import (
	"errors"
	"time"
)

// Role is the closed set of account roles. The role column is backed by a
// database enum, so adding a value here requires a migration as well.
type Role string

const (
	RoleRoot     Role = "root"
	RoleCustomer Role = "customer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleRoot || r == RoleCustomer
}

// CanAssign reports whether an actor with role r may assign the target role
// to another account. Only root may create or promote root accounts.
func (r Role) CanAssign(target Role) bool {
	if target == RoleRoot {
		return r == RoleRoot
	}
	return true
}

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email already in use")
	ErrPermissionDenied   = errors.New("operation requires root role")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("token invalid or expired")
	ErrInvalidRole        = errors.New("invalid role")
	ErrDeleteFailed       = errors.New("user could not be deleted")
)

// User is the sole persisted entity. Email is unique among non-deleted
// users only; soft-deleted rows keep their email and fall out of every
// lookup. Reset token fields are set together and cleared together.
type User struct {
	ID                   string     `json:"id" gorm:"type:uuid;primaryKey"`
	FirstName            string     `json:"first_name" gorm:"size:50;not null"`
	LastName             string     `json:"last_name" gorm:"size:50;not null"`
	Email                string     `json:"email" gorm:"not null"`
	PasswordHash         string     `json:"-" gorm:"column:password;not null"`
	Phone                string     `json:"phone,omitempty"`
	Role                 Role       `json:"role" gorm:"type:user_role;not null;default:'customer'"`
	ResetPasswordToken   string     `json:"-"`
	ResetPasswordExpires *time.Time `json:"-"`
	IsDeleted            bool       `json:"-" gorm:"not null;default:false"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// FullName is used when addressing the user in outgoing email.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// HasResetToken reports whether the user holds a reset token that is still
// valid at the given instant.
func (u *User) HasResetToken(now time.Time) bool {
	return u.ResetPasswordToken != "" &&
		u.ResetPasswordExpires != nil &&
		!now.After(*u.ResetPasswordExpires)
}

// ClearResetToken removes the reset credential after it has been consumed.
func (u *User) ClearResetToken() {
	u.ResetPasswordToken = ""
	u.ResetPasswordExpires = nil
}
