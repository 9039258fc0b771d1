package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ccmart/internal/domain/model"
	"ccmart/internal/infra/token"
	"ccmart/internal/middleware"
	"ccmart/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// =====================
// レスポンス確認用
// =====================

type mwErrorResponse struct {
	Error string `json:"error"`
}

type mwOKResponse struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
}

// =====================
// UserRepository モック
// =====================

type MockUserRepoForMiddleware struct {
	mock.Mock
}

func (m *MockUserRepoForMiddleware) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepoForMiddleware) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepoForMiddleware) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepoForMiddleware) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepoForMiddleware) List(ctx context.Context, q repository.UserListQuery) ([]model.User, int64, error) {
	panic("not used in middleware tests")
}

func (m *MockUserRepoForMiddleware) IncrementTokenVersion(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

var _ repository.UserRepository = (*MockUserRepoForMiddleware)(nil)

// =====================
// helper
// =====================

const testSecret = "test-secret"

func newParser(t *testing.T) *token.JWTIssuer {
	t.Helper()
	p, err := token.NewJWTIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	return p
}

func mustMakeJWT(t *testing.T, secret string, sub string, role string, tv int, signingMethod jwt.SigningMethod) string {
	t.Helper()

	claims := jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"tv":   tv,
		"iat":  1,
		"exp":  9999999999,
	}

	tok := jwt.NewWithClaims(signingMethod, claims)

	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

func runRequest(t *testing.T, e *echo.Echo, method string, path string, authHeader string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeMWError(t *testing.T, rec *httptest.ResponseRecorder) mwErrorResponse {
	t.Helper()
	var r mwErrorResponse
	_ = json.NewDecoder(rec.Body).Decode(&r)
	return r
}

func echoContextHandler(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserIDKey).(int64)
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	tv, _ := c.Get(middleware.CtxTokenVersionKey).(int)
	return c.JSON(http.StatusOK, mwOKResponse{UserID: userID, Role: role, TokenVersion: tv})
}

// =====================
// AuthJWT
// =====================

func TestAuthJWT_Rejects(t *testing.T) {
	parser := newParser(t)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1", "role": "customer", "tv": 0, "exp": 1})
	expiredRaw, err := expired.SignedString([]byte(testSecret))
	assert.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		wantMsg string
	}{
		{name: "no header", header: "", wantMsg: "access token required"},
		{name: "bad scheme", header: "Token abc.def.ghi", wantMsg: "unauthorized"},
		{name: "empty token", header: "Bearer  ", wantMsg: "unauthorized"},
		{name: "bad signature", header: "Bearer " + mustMakeJWT(t, "wrong-secret", "1", "customer", 0, jwt.SigningMethodHS256), wantMsg: "invalid or expired token"},
		{name: "wrong alg", header: "Bearer " + mustMakeJWT(t, testSecret, "1", "customer", 0, jwt.SigningMethodHS512), wantMsg: "invalid or expired token"},
		{name: "expired", header: "Bearer " + expiredRaw, wantMsg: "invalid or expired token"},
		{name: "bad sub", header: "Bearer " + mustMakeJWT(t, testSecret, "abc", "customer", 0, jwt.SigningMethodHS256), wantMsg: "unauthorized"},
		{name: "no role", header: "Bearer " + mustMakeJWT(t, testSecret, "1", "", 0, jwt.SigningMethodHS256), wantMsg: "unauthorized"},
		{name: "negative tv", header: "Bearer " + mustMakeJWT(t, testSecret, "1", "customer", -1, jwt.SigningMethodHS256), wantMsg: "unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/protected", echoContextHandler, middleware.AuthJWT(parser))

			rec := runRequest(t, e, http.MethodGet, "/protected", tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeMWError(t, rec).Error)
		})
	}
}

// 正常：ctxに値が入る
func TestAuthJWT_Success_SetsContext(t *testing.T) {
	e := echo.New()
	parser := newParser(t)

	raw := mustMakeJWT(t, testSecret, "123", "customer", 7, jwt.SigningMethodHS256)
	e.GET("/protected", echoContextHandler, middleware.AuthJWT(parser))

	rec := runRequest(t, e, http.MethodGet, "/protected", "Bearer "+raw)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body mwOKResponse
	_ = json.NewDecoder(rec.Body).Decode(&body)
	assert.Equal(t, mwOKResponse{UserID: 123, Role: "customer", TokenVersion: 7}, body)
}

// =====================
// ActiveUserGuard
// =====================

func TestActiveUserGuard(t *testing.T) {
	parser := newParser(t)

	tests := []struct {
		name       string
		user       *model.User
		findErr    error
		tokenRole  string
		wantStatus int
		wantMsg    string
		wantRole   string
	}{
		{
			name:       "ok",
			user:       &model.User{ID: 1, Role: model.RoleCustomer, TokenVersion: 5, IsActive: true},
			tokenRole:  "customer",
			wantStatus: http.StatusOK,
			wantRole:   "customer",
		},
		{
			name:       "demoted admin gets db role",
			user:       &model.User{ID: 1, Role: model.RoleCustomer, TokenVersion: 5, IsActive: true},
			tokenRole:  "admin",
			wantStatus: http.StatusOK,
			wantRole:   "customer",
		},
		{
			name:       "token version mismatch",
			user:       &model.User{ID: 1, Role: model.RoleCustomer, TokenVersion: 6, IsActive: true},
			tokenRole:  "customer",
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "unauthorized",
		},
		{
			name:       "inactive",
			user:       &model.User{ID: 1, Role: model.RoleCustomer, TokenVersion: 5, IsActive: false},
			tokenRole:  "customer",
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "account is inactive",
		},
		{
			name:       "deleted user",
			findErr:    repository.ErrNotFound,
			tokenRole:  "customer",
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "unauthorized",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userRepo := new(MockUserRepoForMiddleware)
			userRepo.On("FindByID", mock.Anything, int64(1)).Return(tt.user, tt.findErr)

			e := echo.New()
			e.GET("/protected", echoContextHandler, middleware.AuthJWT(parser), middleware.ActiveUserGuard(userRepo))

			raw := mustMakeJWT(t, testSecret, "1", tt.tokenRole, 5, jwt.SigningMethodHS256)
			rec := runRequest(t, e, http.MethodGet, "/protected", "Bearer "+raw)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, tt.wantMsg, decodeMWError(t, rec).Error)
				return
			}
			var body mwOKResponse
			_ = json.NewDecoder(rec.Body).Decode(&body)
			assert.Equal(t, tt.wantRole, body.Role)
			userRepo.AssertExpectations(t)
		})
	}
}

// AuthJWT無しでGuardだけ => 401
func TestActiveUserGuard_MissingContext(t *testing.T) {
	e := echo.New()
	userRepo := new(MockUserRepoForMiddleware)

	e.GET("/protected", echoContextHandler, middleware.ActiveUserGuard(userRepo))

	rec := runRequest(t, e, http.MethodGet, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	userRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

// =====================
// AdminRoleGuard
// =====================

func TestAdminRoleGuard(t *testing.T) {
	tests := []struct {
		role       string
		wantStatus int
	}{
		{role: "admin", wantStatus: http.StatusOK},
		{role: "customer", wantStatus: http.StatusForbidden},
		{role: "", wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			e := echo.New()
			setRole := func(next echo.HandlerFunc) echo.HandlerFunc {
				return func(c echo.Context) error {
					if tt.role != "" {
						c.Set(middleware.CtxUserRoleKey, tt.role)
					}
					return next(c)
				}
			}
			e.GET("/admin", echoContextHandler, setRole, middleware.AdminRoleGuard())

			rec := runRequest(t, e, http.MethodGet, "/admin", "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusForbidden {
				assert.Equal(t, "admin only", decodeMWError(t, rec).Error)
			}
		})
	}
}

// =====================
// RequestLogger
// =====================

func TestRequestLogger_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := echo.New()
	e.Use(middleware.RequestLogger(zap.New(core)))

	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/bad", func(c echo.Context) error { return c.NoContent(http.StatusBadRequest) })
	e.GET("/boom", func(c echo.Context) error { return errors.New("boom") })

	runRequest(t, e, http.MethodGet, "/ok", "")
	runRequest(t, e, http.MethodGet, "/bad", "")
	runRequest(t, e, http.MethodGet, "/boom", "")

	entries := logs.All()
	if assert.Len(t, entries, 3) {
		assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
		assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
		assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
		assert.Equal(t, "/boom", entries[2].ContextMap()["uri"])
	}
}
