package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidSession 会话令牌无效、过期或已注销
var ErrInvalidSession = errors.New("invalid session")

// Session 当前请求的会话上下文，未登录时 Authenticated 为 false
type Session struct {
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username,omitempty"`
	ID            string    `json:"-"`
	ExpiresAt     time.Time `json:"-"`
}

// Anonymous 未登录会话
func Anonymous() Session {
	return Session{}
}

// Claims 会话令牌载荷
type Claims struct {
	Admin bool `json:"adm"`
	jwt.RegisteredClaims
}

// Manager 签发、解析与注销管理员会话
type Manager struct {
	secret []byte
	ttl    time.Duration
	store  Store
	now    func() time.Time
}

// NewManager 创建会话管理器
func NewManager(secret string, ttl time.Duration, store Store) *Manager {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{secret: []byte(secret), ttl: ttl, store: store, now: time.Now}
}

// WithClock 替换时钟，测试用
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue 为通过认证的管理员签发令牌
func (m *Manager) Issue(username string) (string, Session, error) {
	now := m.now()
	s := Session{
		Authenticated: true,
		Username:      username,
		ID:            uuid.New().String(),
		ExpiresAt:     now.Add(m.ttl).Truncate(time.Second),
	}

	claims := Claims{
		Admin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ID:        s.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, s, nil
}

// Parse 校验签名、有效期与注销状态
func (m *Manager) Parse(ctx context.Context, tokenString string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return Session{}, ErrInvalidSession
	}
	if !claims.Admin || claims.Subject == "" || claims.ID == "" {
		return Session{}, ErrInvalidSession
	}

	revoked, err := m.store.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Session{}, fmt.Errorf("check session revocation: %w", err)
	}
	if revoked {
		return Session{}, ErrInvalidSession
	}

	return Session{
		Authenticated: true,
		Username:      claims.Subject,
		ID:            claims.ID,
		ExpiresAt:     claims.ExpiresAt.Time,
	}, nil
}

// Revoke 注销会话，注销记录保留到令牌自然过期
func (m *Manager) Revoke(ctx context.Context, s Session) error {
	if !s.Authenticated || s.ID == "" {
		return nil
	}
	remaining := s.ExpiresAt.Sub(m.now())
	if remaining <= 0 {
		return nil
	}
	return m.store.Revoke(ctx, s.ID, remaining)
}
