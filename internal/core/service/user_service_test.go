package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/digipilot/account-service/internal/core/domain"
	"github.com/digipilot/account-service/internal/core/ports"
)

// stubUserRepo keeps users in a map and mirrors the repository's
// visibility rules: soft-deleted rows never come back from lookups and
// reset tokens only match while unexpired.
type stubUserRepo struct {
	users     map[string]*domain.User
	nextID    int
	insertErr error
	saveErr   error
	deleteErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	if u.ResetPasswordExpires != nil {
		exp := *u.ResetPasswordExpires
		clone.ResetPasswordExpires = &exp
	}
	return &clone
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok || u.IsDeleted {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email && !u.IsDeleted {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByResetToken(_ context.Context, token string) (*domain.User, error) {
	now := time.Now().UTC()
	for _, u := range r.users {
		if u.IsDeleted || u.ResetPasswordToken != token {
			continue
		}
		if u.ResetPasswordExpires == nil || now.After(*u.ResetPasswordExpires) {
			continue
		}
		return cloneUser(u), nil
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) ListAll(_ context.Context) ([]domain.User, error) {
	var out []domain.User
	for _, u := range r.users {
		if !u.IsDeleted {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

func (r *stubUserRepo) Insert(_ context.Context, user *domain.User) (*domain.User, error) {
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	copy := cloneUser(user)
	if copy.ID == "" {
		r.nextID++
		copy.ID = fmt.Sprintf("user-%d", r.nextID)
	}
	r.users[copy.ID] = cloneUser(copy)
	return cloneUser(copy), nil
}

func (r *stubUserRepo) Save(_ context.Context, user *domain.User) (*domain.User, error) {
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *stubUserRepo) SoftDelete(_ context.Context, user *domain.User) (*domain.User, error) {
	if r.deleteErr != nil {
		return nil, r.deleteErr
	}
	stored, ok := r.users[user.ID]
	if !ok {
		return nil, errors.New("no such row")
	}
	stored.IsDeleted = true
	stored.UpdatedAt = time.Now().UTC()
	return cloneUser(stored), nil
}

// raw returns the stored row including soft-deleted ones, bypassing the
// repository contract, so tests can inspect retained rows.
func (r *stubUserRepo) raw(id string) *domain.User {
	return r.users[id]
}

type sentMail struct {
	kind string
	to   string
	name string
	link string
}

type stubMailer struct {
	sent    []sentMail
	sendErr error
}

func (m *stubMailer) SendNewAccount(_ context.Context, to, setupLink string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMail{kind: "new_account", to: to, link: setupLink})
	return nil
}

func (m *stubMailer) SendPasswordRecovery(_ context.Context, to, name, resetLink string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMail{kind: "password_recovery", to: to, name: name, link: resetLink})
	return nil
}

func (m *stubMailer) SendPasswordChanged(_ context.Context, to, name string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, sentMail{kind: "password_changed", to: to, name: name})
	return nil
}

func newTestService(repo *stubUserRepo, mailer *stubMailer) ports.UserService {
	return NewUserService(repo, mailer, zerolog.Nop())
}

func createInput(email string) ports.CreateUserInput {
	return ports.CreateUserInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Password:  "s3cret",
		Phone:     "555-0100",
		Role:      domain.RoleCustomer,
		ReplyURL:  "https://app.example.com/reset",
	}
}

func TestUserService_Create_Success(t *testing.T) {
	repo := newStubUserRepo()
	mailer := &stubMailer{}
	svc := newTestService(repo, mailer)

	user, err := svc.Create(context.Background(), createInput("ada@example.com"), nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if user.ID == "" {
		t.Fatalf("expected persisted user to have an id")
	}
	if user.PasswordHash == "s3cret" {
		t.Fatalf("expected password to be hashed")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret")); err != nil {
		t.Fatalf("stored hash does not match password: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("no email expected when caller supplies a password, got %d", len(mailer.sent))
	}
}

func TestUserService_Create_GeneratedPassword(t *testing.T) {
	repo := newStubUserRepo()
	mailer := &stubMailer{}
	svc := newTestService(repo, mailer)

	input := createInput("ada@example.com")
	input.Password = ""

	user, err := svc.Create(context.Background(), input, nil)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if user.PasswordHash == "" || !strings.HasPrefix(user.PasswordHash, "$2") {
		t.Fatalf("expected bcrypt hash of a generated password, got %q", user.PasswordHash)
	}
	if user.ResetPasswordToken == "" || user.ResetPasswordExpires == nil {
		t.Fatalf("auto-provisioned account should carry a setup token")
	}

	if len(mailer.sent) != 1 || mailer.sent[0].kind != "new_account" {
		t.Fatalf("expected one new-account email, got %+v", mailer.sent)
	}
	if mailer.sent[0].to != "ada@example.com" {
		t.Fatalf("setup email sent to %s", mailer.sent[0].to)
	}

	// The setup link ends in a base64 payload of {userId, token}.
	link := mailer.sent[0].link
	encoded := link[strings.LastIndex(link, "/")+1:]
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		t.Fatalf("setup link payload is not base64: %v", err)
	}
	var payload struct {
		UserID string `json:"userId"`
		Token  string `json:"token"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("setup link payload is not JSON: %v", err)
	}
	if payload.UserID != user.ID || payload.Token != user.ResetPasswordToken {
		t.Fatalf("payload mismatch: %+v", payload)
	}
}

func TestUserService_Create_MailFailureDoesNotRollBack(t *testing.T) {
	repo := newStubUserRepo()
	mailer := &stubMailer{sendErr: errors.New("smtp down")}
	svc := newTestService(repo, mailer)

	input := createInput("ada@example.com")
	input.Password = ""

	user, err := svc.Create(context.Background(), input, nil)
	if err != nil {
		t.Fatalf("Create should succeed despite mail failure, got %v", err)
	}
	if _, err := repo.FindByID(context.Background(), user.ID); err != nil {
		t.Fatalf("created user should be persisted: %v", err)
	}
}

func TestUserService_Create_DuplicateEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	if _, err := svc.Create(context.Background(), createInput("dup@example.com"), nil); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := svc.Create(context.Background(), createInput("dup@example.com"), nil); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestUserService_Create_EmailFreedBySoftDelete(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	first, err := svc.Create(context.Background(), createInput("dup@example.com"), nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := svc.Delete(context.Background(), first.ID, nil); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	// Uniqueness only binds non-deleted users.
	if _, err := svc.Create(context.Background(), createInput("dup@example.com"), nil); err != nil {
		t.Fatalf("create after soft delete should succeed, got %v", err)
	}
}

func TestUserService_Create_RootEscalationGuard(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	customer := &domain.User{ID: "actor", Role: domain.RoleCustomer}
	root := &domain.User{ID: "actor", Role: domain.RoleRoot}

	input := createInput("new-root@example.com")
	input.Role = domain.RoleRoot

	if _, err := svc.Create(context.Background(), input, customer); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for customer actor, got %v", err)
	}
	if _, err := svc.Create(context.Background(), input, root); err != nil {
		t.Fatalf("root actor should create root accounts, got %v", err)
	}
}

func TestUserService_Create_InvalidRole(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	input := createInput("x@example.com")
	input.Role = domain.Role("superuser")

	if _, err := svc.Create(context.Background(), input, nil); !errors.Is(err, domain.ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

// The duplicate-email check reads before it writes, so two concurrent
// creates can both pass it. The repository's partial unique index is the
// backstop; here the service must translate that storage rejection into
// the same duplicate error the check itself produces.
func TestUserService_Create_StorageLevelDuplicate(t *testing.T) {
	repo := newStubUserRepo()
	repo.insertErr = domain.ErrDuplicateEmail
	svc := newTestService(repo, &stubMailer{})

	if _, err := svc.Create(context.Background(), createInput("race@example.com"), nil); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail from storage backstop, got %v", err)
	}
}

func TestUserService_Update_PartialPatch(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	created, err := svc.Create(context.Background(), createInput("ada@example.com"), nil)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	phone := "555-0199"
	updated, err := svc.Update(context.Background(), created.ID, ports.UpdateUserInput{Phone: &phone}, nil)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if updated.Phone != phone {
		t.Fatalf("phone not updated: %q", updated.Phone)
	}
	if updated.FirstName != created.FirstName || updated.LastName != created.LastName ||
		updated.Email != created.Email || updated.Role != created.Role {
		t.Fatalf("untouched fields changed: %+v", updated)
	}
	if updated.PasswordHash != created.PasswordHash {
		t.Fatalf("password hash should be unchanged on a phone-only patch")
	}
}

func TestUserService_Update_RehashOnPassword(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	created, _ := svc.Create(context.Background(), createInput("ada@example.com"), nil)

	newPass := "brandnew"
	updated, err := svc.Update(context.Background(), created.ID, ports.UpdateUserInput{Password: &newPass}, nil)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.PasswordHash == created.PasswordHash {
		t.Fatalf("expected password hash to change")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte(newPass)); err != nil {
		t.Fatalf("new hash does not match new password: %v", err)
	}
}

func TestUserService_Update_RootEscalationGuard(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	created, _ := svc.Create(context.Background(), createInput("ada@example.com"), nil)

	rootRole := domain.RoleRoot
	patch := ports.UpdateUserInput{Role: &rootRole}

	customer := &domain.User{ID: "actor", Role: domain.RoleCustomer}
	if _, err := svc.Update(context.Background(), created.ID, patch, customer); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	root := &domain.User{ID: "actor", Role: domain.RoleRoot}
	updated, err := svc.Update(context.Background(), created.ID, patch, root)
	if err != nil {
		t.Fatalf("root actor should promote, got %v", err)
	}
	if updated.Role != domain.RoleRoot {
		t.Fatalf("role not updated: %s", updated.Role)
	}
}

func TestUserService_Update_EmailCollision(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	first, _ := svc.Create(context.Background(), createInput("first@example.com"), nil)
	second, _ := svc.Create(context.Background(), createInput("second@example.com"), nil)

	taken := first.Email
	if _, err := svc.Update(context.Background(), second.ID, ports.UpdateUserInput{Email: &taken}, nil); !errors.Is(err, domain.ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}

	// Re-submitting your own email is not a collision.
	own := second.Email
	if _, err := svc.Update(context.Background(), second.ID, ports.UpdateUserInput{Email: &own}, nil); err != nil {
		t.Fatalf("same-email update should succeed, got %v", err)
	}
}

func TestUserService_Update_NotFound(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	phone := "555"
	if _, err := svc.Update(context.Background(), "missing", ports.UpdateUserInput{Phone: &phone}, nil); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserService_Delete_SoftDelete(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	created, _ := svc.Create(context.Background(), createInput("ada@example.com"), nil)

	deleted, err := svc.Delete(context.Background(), created.ID, nil)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !deleted.IsDeleted {
		t.Fatalf("returned record should carry the deleted flag")
	}

	if _, err := svc.GetUser(context.Background(), created.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("lookup by id after delete: expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.GetUserByEmail(context.Background(), created.Email); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("lookup by email after delete: expected ErrUserNotFound, got %v", err)
	}

	// The row is retained in storage.
	if raw := repo.raw(created.ID); raw == nil || !raw.IsDeleted {
		t.Fatalf("soft-deleted row should remain in storage with the flag set")
	}
}

func TestUserService_Delete_PersistFailure(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	created, _ := svc.Create(context.Background(), createInput("ada@example.com"), nil)

	repo.deleteErr = errors.New("disk on fire")
	if _, err := svc.Delete(context.Background(), created.ID, nil); !errors.Is(err, domain.ErrDeleteFailed) {
		t.Fatalf("expected ErrDeleteFailed, got %v", err)
	}
}

func TestUserService_SignIn(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	if _, err := svc.Create(context.Background(), createInput("a@b.com"), nil); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	user, err := svc.SignIn(context.Background(), "a@b.com", "s3cret")
	if err != nil {
		t.Fatalf("sign in failed: %v", err)
	}
	if user.Email != "a@b.com" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := svc.SignIn(context.Background(), "a@b.com", "wrong"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}

	// An unknown email yields the same error as a wrong password.
	if _, err := svc.SignIn(context.Background(), "ghost@b.com", "s3cret"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown email: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserService_ForgotPassword(t *testing.T) {
	repo := newStubUserRepo()
	mailer := &stubMailer{}
	svc := newTestService(repo, mailer)

	created, _ := svc.Create(context.Background(), createInput("ada@example.com"), nil)

	before := time.Now().UTC()
	if err := svc.ForgotPassword(context.Background(), created.Email, "https://app.example.com/reset"); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	after := time.Now().UTC()

	stored := repo.raw(created.ID)
	if stored.ResetPasswordToken == "" || len(stored.ResetPasswordToken) != 40 {
		t.Fatalf("expected 40-char reset token, got %q", stored.ResetPasswordToken)
	}
	if stored.ResetPasswordExpires == nil {
		t.Fatalf("expected reset expiry to be set")
	}

	// Expiry is 24h from issuance, within the test's own elapsed time.
	lo := before.Add(24 * time.Hour)
	hi := after.Add(24 * time.Hour)
	exp := *stored.ResetPasswordExpires
	if exp.Before(lo) || exp.After(hi) {
		t.Fatalf("expiry %v outside [%v, %v]", exp, lo, hi)
	}

	if len(mailer.sent) != 1 || mailer.sent[0].kind != "password_recovery" {
		t.Fatalf("expected one recovery email, got %+v", mailer.sent)
	}
	if !strings.Contains(mailer.sent[0].link, "https://app.example.com/reset/") {
		t.Fatalf("reset link malformed: %s", mailer.sent[0].link)
	}
}

func TestUserService_ForgotPassword_UnknownEmail(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	if err := svc.ForgotPassword(context.Background(), "ghost@example.com", "https://x.test"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

// The token is persisted before the email is attempted; a transport
// failure surfaces as an error but does not undo the stored token.
func TestUserService_ForgotPassword_MailFailure(t *testing.T) {
	repo := newStubUserRepo()
	mailer := &stubMailer{}
	svc := newTestService(repo, mailer)

	created, _ := svc.Create(context.Background(), createInput("ada@example.com"), nil)

	mailer.sendErr = errors.New("smtp down")
	if err := svc.ForgotPassword(context.Background(), created.Email, "https://x.test"); err == nil {
		t.Fatalf("expected error when recovery email fails")
	}
	if repo.raw(created.ID).ResetPasswordToken == "" {
		t.Fatalf("token should remain persisted after a failed send")
	}
}

func TestUserService_ResetPassword(t *testing.T) {
	repo := newStubUserRepo()
	mailer := &stubMailer{}
	svc := newTestService(repo, mailer)

	created, _ := svc.Create(context.Background(), createInput("ada@example.com"), nil)
	if err := svc.ForgotPassword(context.Background(), created.Email, "https://x.test"); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	tokenValue := repo.raw(created.ID).ResetPasswordToken

	if err := svc.ResetPassword(context.Background(), tokenValue, "newpassword"); err != nil {
		t.Fatalf("reset password failed: %v", err)
	}

	if _, err := svc.SignIn(context.Background(), created.Email, "newpassword"); err != nil {
		t.Fatalf("sign in with new password failed: %v", err)
	}
	if _, err := svc.SignIn(context.Background(), created.Email, "s3cret"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("old password should no longer work, got %v", err)
	}

	last := mailer.sent[len(mailer.sent)-1]
	if last.kind != "password_changed" || last.to != created.Email {
		t.Fatalf("expected confirmation email, got %+v", last)
	}
}

// A consumed token is cleared and cannot be replayed.
func TestUserService_ResetPassword_TokenSingleUse(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	created, _ := svc.Create(context.Background(), createInput("ada@example.com"), nil)
	_ = svc.ForgotPassword(context.Background(), created.Email, "https://x.test")
	tokenValue := repo.raw(created.ID).ResetPasswordToken

	if err := svc.ResetPassword(context.Background(), tokenValue, "newpassword"); err != nil {
		t.Fatalf("first reset failed: %v", err)
	}

	stored := repo.raw(created.ID)
	if stored.ResetPasswordToken != "" || stored.ResetPasswordExpires != nil {
		t.Fatalf("token fields should be cleared after use")
	}
	if err := svc.ResetPassword(context.Background(), tokenValue, "again"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("replayed token: expected ErrTokenInvalid, got %v", err)
	}
}

func TestUserService_ResetPassword_ExpiredToken(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	created, _ := svc.Create(context.Background(), createInput("ada@example.com"), nil)
	_ = svc.ForgotPassword(context.Background(), created.Email, "https://x.test")

	// Age the stored token past its expiry.
	stored := repo.raw(created.ID)
	expired := time.Now().UTC().Add(-time.Minute)
	stored.ResetPasswordExpires = &expired
	tokenValue := stored.ResetPasswordToken

	if err := svc.ResetPassword(context.Background(), tokenValue, "newpassword"); !errors.Is(err, domain.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}

func TestUserService_ListUsers_ExcludesDeleted(t *testing.T) {
	repo := newStubUserRepo()
	svc := newTestService(repo, &stubMailer{})

	a, _ := svc.Create(context.Background(), createInput("a@example.com"), nil)
	_, _ = svc.Create(context.Background(), createInput("b@example.com"), nil)
	_, _ = svc.Delete(context.Background(), a.ID, nil)

	users, err := svc.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(users) != 1 || users[0].Email != "b@example.com" {
		t.Fatalf("expected only the live user, got %+v", users)
	}
}
