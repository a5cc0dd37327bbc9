// Package token 负责签发和校验会话令牌。
// 令牌是HS256签名的JWT，subject为用户ID，jti为会话ID。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuerName = "standing-backend"

// ErrInvalidToken 表示令牌无法通过校验（签名错误、过期或格式不正确）
var ErrInvalidToken = errors.New("无效的会话令牌")

// Session 是一个已通过校验的令牌所代表的会话
type Session struct {
	// ID 是令牌的jti，用于在登出时吊销这个令牌
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// Issuer 持有签名密钥和令牌有效期
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer 创建一个新的令牌签发器
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// TTL 返回令牌有效期
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue 为userID签发一个新令牌，并返回其过期时间
func (i *Issuer) Issue(userID string) (string, time.Time, error) {
	jti, err := uuid.NewV7()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("无法生成会话ID: %w", err)
	}
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		ID:        jti.String(),
		Issuer:    issuerName,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("无法签发会话令牌: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify 校验令牌并返回其中的会话信息
func (i *Issuer) Verify(tokenString string) (Session, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuerName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return Session{}, fmt.Errorf("%w: 缺少subject", ErrInvalidToken)
	}
	if claims.ID == "" {
		return Session{}, fmt.Errorf("%w: 缺少jti", ErrInvalidToken)
	}
	return Session{
		ID:        claims.ID,
		UserID:    claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
