package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/entity"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/repository"
	"github.com/bitfantasy/nimo-reimburse/internal/reimburse/session"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService 管理员认证
type AuthService struct {
	repo     *repository.AdminRepository
	sessions *session.Manager
	logger   *zap.Logger
}

// NewAuthService 创建认证服务
func NewAuthService(repo *repository.AdminRepository, sessions *session.Manager, logger *zap.Logger) *AuthService {
	return &AuthService{repo: repo, sessions: sessions, logger: logger}
}

// LoginResult 登录结果
type LoginResult struct {
	Token   string
	Session session.Session
}

// Login 校验用户名密码并签发会话
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	admin, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find admin: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, sess, err := s.sessions.Issue(admin.Username)
	if err != nil {
		return nil, err
	}
	s.logger.Info("admin logged in", zap.String("username", admin.Username))
	return &LoginResult{Token: token, Session: sess}, nil
}

// Authenticate 解析会话令牌，无效时返回未登录会话
func (s *AuthService) Authenticate(ctx context.Context, token string) session.Session {
	if token == "" {
		return session.Anonymous()
	}
	sess, err := s.sessions.Parse(ctx, token)
	if err != nil {
		if !errors.Is(err, session.ErrInvalidSession) {
			s.logger.Warn("session check failed", zap.Error(err))
		}
		return session.Anonymous()
	}
	return sess
}

// Logout 注销会话
func (s *AuthService) Logout(ctx context.Context, sess session.Session) error {
	if err := s.sessions.Revoke(ctx, sess); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if sess.Authenticated {
		s.logger.Info("admin logged out", zap.String("username", sess.Username))
	}
	return nil
}

// SeedAdmin 创建初始管理员，已存在时不做任何修改
func (s *AuthService) SeedAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, fmt.Errorf("seed admin requires username and password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	created, err := s.repo.CreateIfNotExists(ctx, &entity.Admin{
		Username:     username,
		PasswordHash: string(hash),
	})
	if err != nil {
		return false, fmt.Errorf("seed admin: %w", err)
	}
	if created {
		s.logger.Info("seed admin created", zap.String("username", username))
	}
	return created, nil
}
