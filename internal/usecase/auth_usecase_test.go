package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"ccmart/internal/domain/model"
	repo "ccmart/internal/repository"
	"ccmart/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// =====================
// Mocks（auth / admin user 用）
// =====================

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) List(ctx context.Context, q repo.UserListQuery) ([]model.User, int64, error) {
	args := m.Called(ctx, q)
	users, _ := args.Get(0).([]model.User)
	return users, args.Get(1).(int64), args.Error(2)
}

func (m *UserRepoMock) IncrementTokenVersion(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type AuditRepoMock struct{ mock.Mock }

func (m *AuditRepoMock) Create(ctx context.Context, log model.AuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *AuditRepoMock) List(ctx context.Context, filter repo.AuditLogFilter) ([]model.AuditLog, error) {
	args := m.Called(ctx, filter)
	logs, _ := args.Get(0).([]model.AuditLog)
	return logs, args.Error(1)
}

type fakeIssuer struct{}

func (fakeIssuer) Issue(user model.User, now time.Time) (string, time.Time, error) {
	return "token-for-" + user.Email, now.Add(time.Hour), nil
}

var (
	_ repo.UserRepository     = (*UserRepoMock)(nil)
	_ repo.AuditLogRepository = (*AuditRepoMock)(nil)
)

func hashed(t *testing.T, plain string) string {
	t.Helper()
	h, err := usecase.NewBcryptPasswordHasher(bcrypt.MinCost).Hash(plain)
	require.NoError(t, err)
	return h
}

func newAuthUC(users *UserRepoMock) *usecase.AuthUsecase {
	return usecase.NewAuthUsecase(users, usecase.NewBcryptPasswordHasher(bcrypt.MinCost), fakeIssuer{}, nil)
}

// =====================
// Register / Login
// =====================

func TestRegister_HashesAndNormalizesEmail(t *testing.T) {
	users := new(UserRepoMock)
	users.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Run(func(args mock.Arguments) {
		u := args.Get(1).(*model.User)
		u.ID = 11
	}).Return(nil)

	res, err := newAuthUC(users).Register(context.Background(), usecase.RegisterInput{
		Name: " Hanako ", Email: " Hana@Example.COM ", Password: "secret123",
	})
	require.NoError(t, err)

	created := users.Calls[0].Arguments.Get(1).(*model.User)
	assert.Equal(t, "hana@example.com", created.Email)
	assert.Equal(t, "Hanako", created.Name)
	assert.Equal(t, model.RoleCustomer, created.Role)
	assert.NotEqual(t, "secret123", created.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret123")))

	assert.Equal(t, "token-for-hana@example.com", res.Token)
	assert.Equal(t, int64(11), res.User.ID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	users := new(UserRepoMock)
	users.On("Create", mock.Anything, mock.Anything).Return(repo.ErrDuplicateKey)

	_, err := newAuthUC(users).Register(context.Background(), usecase.RegisterInput{
		Name: "Taro", Email: "taro@example.com", Password: "secret123",
	})
	requireHTTPError(t, err, http.StatusConflict, "email already registered")
}

func TestLogin(t *testing.T) {
	pw := hashed(t, "secret123")

	tests := []struct {
		name     string
		user     *model.User
		findErr  error
		password string
		wantErr  bool
	}{
		{name: "ok", user: &model.User{ID: 1, Email: "a@example.com", PasswordHash: pw, IsActive: true}, password: "secret123"},
		{name: "wrong password", user: &model.User{ID: 1, Email: "a@example.com", PasswordHash: pw, IsActive: true}, password: "nope", wantErr: true},
		{name: "unknown email", findErr: repo.ErrNotFound, password: "secret123", wantErr: true},
		{name: "inactive", user: &model.User{ID: 1, Email: "a@example.com", PasswordHash: pw, IsActive: false}, password: "secret123", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UserRepoMock)
			users.On("FindByEmail", mock.Anything, "a@example.com").Return(tt.user, tt.findErr)
			users.On("Update", mock.Anything, mock.Anything).Return(nil).Maybe()

			res, err := newAuthUC(users).Login(context.Background(), usecase.LoginInput{Email: "A@example.com", Password: tt.password})
			if tt.wantErr {
				requireHTTPError(t, err, http.StatusUnauthorized, "invalid credentials")
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.Token)
			assert.NotNil(t, tt.user.LastLoginAt)
		})
	}
}

func TestLogin_LastLoginFailureDoesNotBlock(t *testing.T) {
	users := new(UserRepoMock)
	users.On("FindByEmail", mock.Anything, "a@example.com").
		Return(&model.User{ID: 1, Email: "a@example.com", PasswordHash: hashed(t, "pw"), IsActive: true}, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(errors.New("db down"))

	_, err := newAuthUC(users).Login(context.Background(), usecase.LoginInput{Email: "a@example.com", Password: "pw"})
	assert.NoError(t, err)
}

func TestUpdateMe(t *testing.T) {
	users := new(UserRepoMock)
	users.On("FindByID", mock.Anything, int64(3)).Return(&model.User{ID: 3, Name: "Old", Phone: "090"}, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)
	uc := newAuthUC(users)

	name := "  New  "
	out, err := uc.UpdateMe(context.Background(), 3, usecase.UpdateProfileInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New", out.Name)
	assert.Equal(t, "090", out.Phone)

	_, err = uc.UpdateMe(context.Background(), 3, usecase.UpdateProfileInput{})
	requireHTTPError(t, err, http.StatusBadRequest, "no valid fields to update")
}

// =====================
// AdminUser
// =====================

func TestAdminUser_CannotDeactivateSelf(t *testing.T) {
	uc := usecase.NewAdminUserUsecase(new(UserRepoMock), new(AuditRepoMock), nil)

	_, err := uc.SetActive(context.Background(), adminID, adminID, false)
	requireHTTPError(t, err, http.StatusBadRequest, "cannot deactivate your own account")
}

func TestAdminUser_SetActiveWritesAudit(t *testing.T) {
	users := new(UserRepoMock)
	audit := new(AuditRepoMock)
	users.On("FindByID", mock.Anything, customerID).Return(&model.User{ID: customerID, IsActive: true}, nil)
	users.On("Update", mock.Anything, mock.MatchedBy(func(u *model.User) bool { return !u.IsActive })).Return(nil)
	audit.On("Create", mock.Anything, mock.MatchedBy(func(l model.AuditLog) bool {
		return l.Action == model.AuditActionSetUserActive &&
			l.ResourceID == customerID &&
			l.BeforeJSON == `{"is_active":true}` &&
			l.AfterJSON == `{"is_active":false}`
	})).Return(nil)

	out, err := usecase.NewAdminUserUsecase(users, audit, nil).SetActive(context.Background(), adminID, customerID, false)
	require.NoError(t, err)
	assert.False(t, out.IsActive)
	users.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestAdminUser_ForceLogout(t *testing.T) {
	users := new(UserRepoMock)
	audit := new(AuditRepoMock)
	users.On("IncrementTokenVersion", mock.Anything, customerID).Return(nil)
	users.On("FindByID", mock.Anything, customerID).Return(&model.User{ID: customerID, TokenVersion: 4}, nil)
	// 監査ログの失敗は無視される
	audit.On("Create", mock.Anything, mock.Anything).Return(errors.New("audit down"))

	out, err := usecase.NewAdminUserUsecase(users, audit, nil).ForceLogout(context.Background(), adminID, customerID)
	require.NoError(t, err)
	assert.Equal(t, usecase.ForceLogoutResponse{UserID: customerID, NewTokenVersion: 4}, out)
}

func TestAdminUser_ForceLogoutUnknownUser(t *testing.T) {
	users := new(UserRepoMock)
	users.On("IncrementTokenVersion", mock.Anything, int64(99)).Return(repo.ErrNotFound)

	_, err := usecase.NewAdminUserUsecase(users, new(AuditRepoMock), nil).ForceLogout(context.Background(), adminID, 99)
	requireHTTPError(t, err, http.StatusNotFound, "user not found")
}
