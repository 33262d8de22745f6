// internal/service/auth/auth_service.go
package auth

import (
	"context"
	"fmt"
	"time"

	"tenantcore-service/internal/domain/identity"
	xerrors "tenantcore-service/internal/pkg/errors"
	"tenantcore-service/internal/pkg/jwt"
	"tenantcore-service/internal/pkg/session"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// IdentityStore is the persistence surface the auth service needs.
type IdentityStore interface {
	FindByEmail(ctx context.Context, email string) (*identity.Identity, error)
	FindByID(ctx context.Context, identityID int64) (*identity.Identity, error)
	Create(ctx context.Context, id *identity.Identity) error
	UpdateLastLogin(ctx context.Context, identityID int64) error
	ExistsSuperAdmin(ctx context.Context) (bool, error)
}

type AuthService struct {
	identities     IdentityStore
	jwtManager     *jwt.Manager
	sessionManager *session.Manager
	rateLimiter    *session.RateLimiter
	logger         *zap.Logger
}

func NewAuthService(
	identities IdentityStore,
	jwtManager *jwt.Manager,
	sessionManager *session.Manager,
	rateLimiter *session.RateLimiter,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		identities:     identities,
		jwtManager:     jwtManager,
		sessionManager: sessionManager,
		rateLimiter:    rateLimiter,
		logger:         logger,
	}
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, req *identity.LoginRequest, ipAddress, userAgent string) (*identity.LoginResponse, error) {
	allowed, remaining, err := s.rateLimiter.CheckLoginAttempt(ctx, ipAddress, req.Email)
	if err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}
	if !allowed {
		return nil, xerrors.ErrRateLimited
	}

	ident, err := s.identities.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, xerrors.ErrUnauthorized
	}
	if !ident.IsActive {
		return nil, xerrors.ErrForbidden
	}

	if err := bcrypt.CompareHashAndPassword([]byte(ident.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("failed login attempt",
			zap.String("email", req.Email),
			zap.Int64("attempts_remaining", remaining),
		)
		return nil, xerrors.ErrUnauthorized
	}

	if err := s.identities.UpdateLastLogin(ctx, ident.ID); err != nil {
		s.logger.Error("failed to update last login", zap.Error(err))
	}
	s.rateLimiter.ResetLoginAttempts(ctx, ipAddress, req.Email)

	token, jti, err := s.jwtManager.Generator.GenerateAccessToken(ident.ID, ident.Role, ident.OrganizationID.Int64)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	expiresAt := time.Now().Add(s.jwtManager.Generator.Ttl)

	if err := s.sessionManager.CreateSession(ctx, &session.SessionData{
		JTI:            jti,
		IdentityID:     ident.ID,
		Email:          ident.Email,
		Role:           ident.Role,
		OrganizationID: ident.OrganizationID.Int64,
		IPAddress:      ipAddress,
		UserAgent:      userAgent,
		LoginAt:        time.Now(),
		ExpiresAt:      expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("identity logged in",
		zap.Int64("identity_id", ident.ID),
		zap.String("role", ident.Role),
	)

	return &identity.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		Identity:  ident,
	}, nil
}

// Logout invalidates the session behind a token's JTI.
func (s *AuthService) Logout(ctx context.Context, identityID int64, jti string) error {
	if err := s.sessionManager.InvalidateSession(ctx, identityID, jti); err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	s.logger.Info("identity logged out", zap.Int64("identity_id", identityID))
	return nil
}

// LogoutAll invalidates every session belonging to an identity, forcing a
// fresh login on all devices.
func (s *AuthService) LogoutAll(ctx context.Context, identityID int64) error {
	if err := s.sessionManager.InvalidateAllUserSessions(ctx, identityID); err != nil {
		return fmt.Errorf("failed to invalidate sessions: %w", err)
	}
	s.logger.Info("identity logged out everywhere", zap.Int64("identity_id", identityID))
	return nil
}

// ValidateToken verifies a token and confirms its session is still live.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*jwt.Claims, error) {
	claims, err := s.jwtManager.Verifier.Verify(tokenString)
	if err != nil {
		return nil, xerrors.ErrUnauthorized
	}

	if _, err := s.sessionManager.GetSession(ctx, claims.IdentityID, claims.ID); err != nil {
		return nil, xerrors.ErrSessionExpired
	}

	return claims, nil
}

// EnsureSuperAdminExists creates a super admin account if none exists (called on startup)
func (s *AuthService) EnsureSuperAdminExists(ctx context.Context, email, password, fullName string) error {
	exists, err := s.identities.ExistsSuperAdmin(ctx)
	if err != nil {
		return fmt.Errorf("failed to check super admin existence: %w", err)
	}
	if exists {
		s.logger.Info("super admin already exists, skipping creation")
		return nil
	}

	if email == "" || password == "" || fullName == "" {
		return fmt.Errorf("super admin email, password, and name must be provided via environment variables")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	ident := &identity.Identity{
		Email:        email,
		PasswordHash: string(hashedPassword),
		FullName:     fullName,
		Role:         identity.RoleSuperAdmin,
		IsActive:     true,
	}

	if err := s.identities.Create(ctx, ident); err != nil {
		return fmt.Errorf("failed to create super admin: %w", err)
	}

	s.logger.Info("super admin created",
		zap.String("email", email),
		zap.Int64("identity_id", ident.ID),
	)

	return nil
}
