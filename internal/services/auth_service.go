package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"zudlik/internal/config"
	"zudlik/internal/models"
	"zudlik/internal/repositories"
	"zudlik/internal/validation"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthClaims is the JWT payload issued at login and verified by the auth
// middleware.
type AuthClaims struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	userRepo repositories.UserRepository
	email    EmailService
	files    FileService
	config   config.AuthConfig
	logger   *zap.Logger
}

// NewAuthService creates the auth service.
func NewAuthService(
	userRepo repositories.UserRepository,
	email EmailService,
	files FileService,
	cfg config.AuthConfig,
	logger *zap.Logger,
) AuthService {
	return &authService{
		userRepo: userRepo,
		email:    email,
		files:    files,
		config:   cfg,
		logger:   logger,
	}
}

// ===============================
// REGISTRATION & LOGIN
// ===============================

func (s *authService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		return nil, NewValidationError(validation.FirstError(err), err)
	}
	if !models.ValidPhone(req.Phone) {
		return nil, NewValidationError("phone must match +998XXXXXXXXX", nil)
	}
	if !models.ValidPassword(req.Password) {
		return nil, NewValidationError("password must be at least 6 characters and contain a digit", nil)
	}

	if _, err := s.userRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, NewConflictError("email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, NewInternalError("failed to check email", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, NewInternalError("failed to hash password", err)
	}

	user := &models.User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, NewInternalError("failed to create user", err)
	}

	s.logger.Info("user registered",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email),
	)
	return s.issueToken(user)
}

func (s *authService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.Struct(req); err != nil {
		return nil, NewValidationError(validation.FirstError(err), err)
	}

	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewUnauthorizedError("invalid email or password")
		}
		return nil, NewInternalError("failed to load user", err)
	}
	if !user.IsActive {
		return nil, NewUnauthorizedError("account is deactivated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, NewUnauthorizedError("invalid email or password")
	}

	return s.issueToken(user)
}

func (s *authService) issueToken(user *models.User) (*AuthResponse, error) {
	now := time.Now()
	claims := &AuthClaims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.JWTExpiration)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, NewInternalError("failed to sign token", err)
	}
	return &AuthResponse{Token: token, User: user}, nil
}

// ===============================
// ACCOUNT SELF-MANAGEMENT
// ===============================

func (s *authService) GetMe(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.getActiveUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *authService) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*models.User, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := validation.Struct(req); err != nil {
		return nil, NewValidationError(validation.FirstError(err), err)
	}
	if !models.ValidPhone(req.Phone) {
		return nil, NewValidationError("phone must match +998XXXXXXXXX", nil)
	}

	user, err := s.getActiveUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	user.FirstName = req.FirstName
	user.LastName = req.LastName
	user.Phone = req.Phone
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, NewInternalError("failed to update profile", err)
	}
	return user, nil
}

func (s *authService) ChangePassword(ctx context.Context, req *ChangePasswordRequest) error {
	if err := validation.Struct(req); err != nil {
		return NewValidationError(validation.FirstError(err), err)
	}
	if !models.ValidPassword(req.NewPassword) {
		return NewValidationError("password must be at least 6 characters and contain a digit", nil)
	}

	user, err := s.getActiveUser(ctx, req.UserID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		return NewUnauthorizedError("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.config.BcryptCost)
	if err != nil {
		return NewInternalError("failed to hash password", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return NewInternalError("failed to update password", err)
	}

	s.logger.Info("password changed", zap.Int64("user_id", user.ID))
	return nil
}

// ForgotPassword issues a reset token and emails it. The response is
// identical whether or not the email exists, so account presence is never
// leaked.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return NewValidationError("email is required", nil)
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return NewInternalError("failed to load user", err)
	}
	if !user.IsActive {
		return nil
	}

	token, err := generateResetToken()
	if err != nil {
		return NewInternalError("failed to generate reset token", err)
	}
	expires := time.Now().Add(s.config.ResetTokenLifetime)
	if err := s.userRepo.SetResetToken(ctx, user.ID, token, expires); err != nil {
		return NewInternalError("failed to store reset token", err)
	}

	body := fmt.Sprintf(
		"Hello %s,\n\nUse the token below to reset your password. It expires in %s.\n\n%s\n\nIf you did not request this, ignore this message.",
		user.FirstName, s.config.ResetTokenLifetime, token,
	)
	if err := s.email.Send(ctx, user.Email, "Password reset", body); err != nil {
		s.logger.Error("reset email delivery failed",
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
		return NewInternalError("failed to send reset email", err)
	}

	s.logger.Info("password reset requested", zap.Int64("user_id", user.ID))
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, req *ResetPasswordRequest) error {
	if err := validation.Struct(req); err != nil {
		return NewValidationError(validation.FirstError(err), err)
	}
	if !models.ValidPassword(req.NewPassword) {
		return NewValidationError("password must be at least 6 characters and contain a digit", nil)
	}

	user, err := s.userRepo.GetByResetToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewValidationError("reset token is invalid or expired", nil)
		}
		return NewInternalError("failed to load reset token", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.config.BcryptCost)
	if err != nil {
		return NewInternalError("failed to hash password", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, string(hash)); err != nil {
		return NewInternalError("failed to update password", err)
	}
	if err := s.userRepo.ClearResetToken(ctx, user.ID); err != nil {
		s.logger.Warn("reset token cleanup failed",
			zap.Int64("user_id", user.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("password reset completed", zap.Int64("user_id", user.ID))
	return nil
}

func (s *authService) UploadAvatar(ctx context.Context, userID int64, file io.Reader, filename string) (string, error) {
	user, err := s.getActiveUser(ctx, userID)
	if err != nil {
		return "", err
	}

	url, err := s.files.Upload(ctx, file, filename)
	if err != nil {
		return "", NewInternalError("failed to upload avatar", err)
	}
	if err := s.userRepo.UpdateAvatar(ctx, user.ID, url); err != nil {
		return "", NewInternalError("failed to store avatar url", err)
	}

	s.logger.Info("avatar updated", zap.Int64("user_id", userID))
	return url, nil
}

// ===============================
// HELPERS
// ===============================

func (s *authService) getActiveUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewNotFoundError("user")
		}
		return nil, NewInternalError("failed to load user", err)
	}
	if !user.IsActive {
		return nil, NewNotFoundError("user")
	}
	return user, nil
}

func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
