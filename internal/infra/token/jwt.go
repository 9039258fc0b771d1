package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"ccmart/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
)

// HS256のアクセストークン発行
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl}, nil
}

// claims: sub(ユーザーID文字列) / role / tv / iat / exp
func (i *JWTIssuer) Issue(user model.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.ttl)

	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(user.ID, 10),
		"role": string(user.Role),
		"tv":   user.TokenVersion,
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

var (
	// 署名不一致 / 期限切れ / HS256以外
	ErrInvalidToken = errors.New("invalid or expired token")
	// 署名は正しいがclaimsが足りない・型が違う
	ErrMalformedClaims = errors.New("malformed claims")
)

// アクセストークンから取り出す値
type Claims struct {
	UserID       int64
	Role         model.Role
	TokenVersion int
}

// Issueと対になる検証。subは文字列、tvは0以上
func (i *JWTIssuer) Parse(raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil || !tok.Valid {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrMalformedClaims
	}

	sub, _ := mc["sub"].(string)
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil || userID <= 0 {
		return Claims{}, fmt.Errorf("%w: sub", ErrMalformedClaims)
	}
	role, _ := mc["role"].(string)
	if role == "" {
		return Claims{}, fmt.Errorf("%w: role", ErrMalformedClaims)
	}
	tv, ok := mc["tv"].(float64)
	if !ok || tv < 0 || tv != float64(int(tv)) {
		return Claims{}, fmt.Errorf("%w: tv", ErrMalformedClaims)
	}
	return Claims{UserID: userID, Role: model.Role(role), TokenVersion: int(tv)}, nil
}
