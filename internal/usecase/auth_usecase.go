package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ccmart/internal/domain/model"
	"ccmart/internal/repository"

	"go.uber.org/zap"
)

// パスワードは返さない
type UserDTO struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Phone       string     `json:"phone"`
	Address     string     `json:"address"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserDTO   `json:"user"`
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Address  string
}

type LoginInput struct {
	Email    string
	Password string
}

// nilは変更しない
type UpdateProfileInput struct {
	Name    *string
	Phone   *string
	Address *string
}

type AuthUsecase struct {
	users  repository.UserRepository
	hasher PasswordHasher
	issuer TokenIssuer
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthUsecase(users repository.UserRepository, hasher PasswordHasher, issuer TokenIssuer, log *zap.Logger) *AuthUsecase {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthUsecase{users: users, hasher: hasher, issuer: issuer, log: log, now: time.Now}
}

func (u *AuthUsecase) Register(ctx context.Context, in RegisterInput) (AuthResponse, error) {
	email := normalizeEmail(in.Email)
	if email == "" || strings.TrimSpace(in.Name) == "" || in.Password == "" {
		return AuthResponse{}, NewHTTPError(http.StatusBadRequest, "name, email and password required")
	}

	//パスワードは必ずハッシュ化して保存
	pwHash, err := u.hasher.Hash(in.Password)
	if err != nil {
		return AuthResponse{}, u.internal("hash password", err)
	}

	user := &model.User{
		Name:         strings.TrimSpace(in.Name),
		Email:        email,
		PasswordHash: pwHash,
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		Role:         model.RoleCustomer,
		IsActive:     true,
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return AuthResponse{}, NewHTTPError(http.StatusConflict, "email already registered")
		}
		return AuthResponse{}, u.internal("create user", err)
	}

	u.log.Info("user registered", zap.Int64("user_id", user.ID))
	return u.issue(*user)
}

func (u *AuthUsecase) Login(ctx context.Context, in LoginInput) (AuthResponse, error) {
	user, err := u.users.FindByEmail(ctx, normalizeEmail(in.Email))
	if errors.Is(err, repository.ErrNotFound) {
		return AuthResponse{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return AuthResponse{}, u.internal("find user", err)
	}

	//停止ユーザーも同じメッセージ
	if !user.IsActive {
		return AuthResponse{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err := u.hasher.Compare(user.PasswordHash, in.Password); err != nil {
		return AuthResponse{}, NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	//last_login更新（失敗してもログインは通す）
	now := u.now()
	user.LastLoginAt = &now
	if err := u.users.Update(ctx, user); err != nil {
		u.log.Warn("update last_login_at failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	return u.issue(*user)
}

func (u *AuthUsecase) Me(ctx context.Context, userID int64) (UserDTO, error) {
	if userID <= 0 {
		return UserDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return UserDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err != nil {
		return UserDTO{}, u.internal("find user", err)
	}
	return toUserDTO(user), nil
}

func (u *AuthUsecase) UpdateMe(ctx context.Context, userID int64, in UpdateProfileInput) (UserDTO, error) {
	if userID <= 0 {
		return UserDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.Name == nil && in.Phone == nil && in.Address == nil {
		return UserDTO{}, NewHTTPError(http.StatusBadRequest, "no valid fields to update")
	}

	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return UserDTO{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err != nil {
		return UserDTO{}, u.internal("find user", err)
	}

	if in.Name != nil {
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		user.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		user.Address = strings.TrimSpace(*in.Address)
	}
	if err := u.users.Update(ctx, user); err != nil {
		return UserDTO{}, u.internal("update user", err)
	}
	return toUserDTO(user), nil
}

func (u *AuthUsecase) issue(user model.User) (AuthResponse, error) {
	token, exp, err := u.issuer.Issue(user, u.now())
	if err != nil {
		return AuthResponse{}, u.internal("issue token", err)
	}
	return AuthResponse{Token: token, ExpiresAt: exp, User: toUserDTO(&user)}, nil
}

func (u *AuthUsecase) internal(op string, err error) error {
	u.log.Error(op, zap.Error(err))
	return errInternal
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Phone:       u.Phone,
		Address:     u.Address,
		Role:        string(u.Role),
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
