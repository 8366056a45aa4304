package services

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"zudlik/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedEmail struct {
	to      string
	subject string
	body    string
}

type fakeEmailService struct {
	sent []capturedEmail
}

func (f *fakeEmailService) Send(ctx context.Context, to, subject, body string) error {
	f.sent = append(f.sent, capturedEmail{to: to, subject: subject, body: body})
	return nil
}

type fakeFileService struct {
	uploads []string
}

func (f *fakeFileService) Upload(ctx context.Context, file io.Reader, filename string) (string, error) {
	f.uploads = append(f.uploads, filename)
	return "https://cdn.example.com/" + filename, nil
}

func newAuthTestService(t *testing.T) (AuthService, *fakeUserRepo, *fakeEmailService, *fakeFileService) {
	t.Helper()
	users := newFakeUserRepo()
	email := &fakeEmailService{}
	files := &fakeFileService{}
	cfg := config.AuthConfig{
		JWTSecret:          "test-secret-which-is-long-enough!!",
		JWTExpiration:      time.Hour,
		ResetTokenLifetime: time.Hour,
		BcryptCost:         4, // minimum cost keeps the tests fast
	}
	return NewAuthService(users, email, files, cfg, zap.NewNop()), users, email, files
}

func registerTestUser(t *testing.T, svc AuthService) *AuthResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), &RegisterRequest{
		FirstName: "Aziz",
		LastName:  "Karimov",
		Email:     "Aziz@Example.com",
		Phone:     "+998901234567",
		Password:  "sekret1",
	})
	require.NoError(t, err)
	return resp
}

func TestRegister_IssuesVerifiableToken(t *testing.T) {
	svc, _, _, _ := newAuthTestService(t)
	resp := registerTestUser(t, svc)

	assert.NotZero(t, resp.User.ID)
	assert.Equal(t, "aziz@example.com", resp.User.Email)

	claims := &AuthClaims{}
	token, err := jwt.ParseWithClaims(resp.Token, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret-which-is-long-enough!!"), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, resp.User.ID, claims.UserID)
}

func TestRegister_RejectsDuplicateEmailAndWeakInput(t *testing.T) {
	svc, _, _, _ := newAuthTestService(t)
	registerTestUser(t, svc)

	_, err := svc.Register(context.Background(), &RegisterRequest{
		FirstName: "Other",
		LastName:  "Person",
		Email:     "aziz@example.com",
		Phone:     "+998901234568",
		Password:  "sekret1",
	})
	require.Error(t, err)
	se := GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, ErrTypeConflict, se.Type)

	_, err = svc.Register(context.Background(), &RegisterRequest{
		FirstName: "Other",
		LastName:  "Person",
		Email:     "other@example.com",
		Phone:     "+998901234568",
		Password:  "nodigits",
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = svc.Register(context.Background(), &RegisterRequest{
		FirstName: "Other",
		LastName:  "Person",
		Email:     "other@example.com",
		Phone:     "998901234568", // missing the +998 prefix
		Password:  "sekret1",
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestLogin_VerifiesPassword(t *testing.T) {
	svc, _, _, _ := newAuthTestService(t)
	registerTestUser(t, svc)

	resp, err := svc.Login(context.Background(), &LoginRequest{
		Email:    "aziz@example.com",
		Password: "sekret1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)

	_, err = svc.Login(context.Background(), &LoginRequest{
		Email:    "aziz@example.com",
		Password: "wrong-password",
	})
	require.Error(t, err)
	se := GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, ErrTypeAuthentication, se.Type)

	// Unknown accounts fail with the same message as bad passwords.
	_, err = svc.Login(context.Background(), &LoginRequest{
		Email:    "ghost@example.com",
		Password: "sekret1",
	})
	require.Error(t, err)
	assert.Equal(t, ErrTypeAuthentication, GetServiceError(err).Type)
}

func TestChangePassword_RequiresCurrentPassword(t *testing.T) {
	svc, _, _, _ := newAuthTestService(t)
	resp := registerTestUser(t, svc)

	err := svc.ChangePassword(context.Background(), &ChangePasswordRequest{
		UserID:      resp.User.ID,
		OldPassword: "wrong",
		NewPassword: "newsekret2",
	})
	require.Error(t, err)

	require.NoError(t, svc.ChangePassword(context.Background(), &ChangePasswordRequest{
		UserID:      resp.User.ID,
		OldPassword: "sekret1",
		NewPassword: "newsekret2",
	}))

	_, err = svc.Login(context.Background(), &LoginRequest{
		Email:    "aziz@example.com",
		Password: "newsekret2",
	})
	require.NoError(t, err)
}

func TestForgotPassword_FlowResetsPassword(t *testing.T) {
	svc, users, email, _ := newAuthTestService(t)
	resp := registerTestUser(t, svc)

	require.NoError(t, svc.ForgotPassword(context.Background(), "aziz@example.com"))
	require.Len(t, email.sent, 1)
	assert.Equal(t, "aziz@example.com", email.sent[0].to)

	stored, err := users.GetByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PasswordResetToken)
	assert.Contains(t, email.sent[0].body, *stored.PasswordResetToken)

	require.NoError(t, svc.ResetPassword(context.Background(), &ResetPasswordRequest{
		Token:       *stored.PasswordResetToken,
		NewPassword: "brandnew3",
	}))

	// The token is single use.
	err = svc.ResetPassword(context.Background(), &ResetPasswordRequest{
		Token:       *stored.PasswordResetToken,
		NewPassword: "another4",
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = svc.Login(context.Background(), &LoginRequest{
		Email:    "aziz@example.com",
		Password: "brandnew3",
	})
	require.NoError(t, err)
}

func TestForgotPassword_UnknownEmailLeaksNothing(t *testing.T) {
	svc, _, email, _ := newAuthTestService(t)

	require.NoError(t, svc.ForgotPassword(context.Background(), "ghost@example.com"))
	assert.Empty(t, email.sent)
}

func TestUploadAvatar_StoresURL(t *testing.T) {
	svc, users, _, files := newAuthTestService(t)
	resp := registerTestUser(t, svc)

	url, err := svc.UploadAvatar(context.Background(), resp.User.ID, strings.NewReader("fake image"), "me.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/me.png", url)
	assert.Equal(t, []string{"me.png"}, files.uploads)

	stored, err := users.GetByID(context.Background(), resp.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.AvatarURL)
	assert.Equal(t, url, *stored.AvatarURL)
}
