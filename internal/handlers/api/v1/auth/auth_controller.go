package auth

import (
	"encoding/json"
	"net/http"

	"zudlik/internal/middleware"
	"zudlik/internal/response"
	"zudlik/internal/services"

	"go.uber.org/zap"
)

const maxAvatarSize = 5 << 20 // 5MB

// AuthController handles registration, login, and account self-management.
type AuthController struct {
	auth    services.AuthService
	logger  *zap.Logger
	builder *response.Builder
}

// NewAuthController creates the auth controller.
func NewAuthController(auth services.AuthService, logger *zap.Logger, builder *response.Builder) *AuthController {
	return &AuthController{
		auth:    auth,
		logger:  logger,
		builder: builder,
	}
}

// Register handles POST /api/v1/auth/register.
func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var req services.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.builder.WriteValidationError(w, r, "invalid request body")
		return
	}

	result, err := c.auth.Register(r.Context(), &req)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteCreated(w, r, "account created", result)
}

// Login handles POST /api/v1/auth/login.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.builder.WriteValidationError(w, r, "invalid request body")
		return
	}

	result, err := c.auth.Login(r.Context(), &req)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "logged in", result)
}

// GetMe handles GET /api/v1/auth/me.
func (c *AuthController) GetMe(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}

	user, err := c.auth.GetMe(r.Context(), authCtx.UserID)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "profile loaded", user)
}

// UpdateProfile handles PUT /api/v1/auth/profile.
func (c *AuthController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}

	var req services.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.builder.WriteValidationError(w, r, "invalid request body")
		return
	}
	req.UserID = authCtx.UserID

	user, err := c.auth.UpdateProfile(r.Context(), &req)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "profile updated", user)
}

// ChangePassword handles PUT /api/v1/auth/password.
func (c *AuthController) ChangePassword(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}

	var req services.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.builder.WriteValidationError(w, r, "invalid request body")
		return
	}
	req.UserID = authCtx.UserID

	if err := c.auth.ChangePassword(r.Context(), &req); err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "password changed", nil)
}

// ForgotPassword handles POST /api/v1/auth/forgot-password.
func (c *AuthController) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.builder.WriteValidationError(w, r, "invalid request body")
		return
	}

	if err := c.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "if the account exists, a reset email was sent", nil)
}

// ResetPassword handles POST /api/v1/auth/reset-password.
func (c *AuthController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req services.ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.builder.WriteValidationError(w, r, "invalid request body")
		return
	}

	if err := c.auth.ResetPassword(r.Context(), &req); err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "password reset", nil)
}

// UploadAvatar handles POST /api/v1/auth/avatar.
func (c *AuthController) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := middleware.GetAuthContext(r.Context())
	if !ok {
		c.builder.WriteError(w, r, services.NewUnauthorizedError("authentication required"))
		return
	}

	if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
		c.builder.WriteValidationError(w, r, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		c.builder.WriteValidationError(w, r, "avatar file is required")
		return
	}
	defer file.Close()

	url, err := c.auth.UploadAvatar(r.Context(), authCtx.UserID, file, header.Filename)
	if err != nil {
		c.builder.WriteError(w, r, err)
		return
	}
	c.builder.WriteSuccess(w, r, "avatar uploaded", map[string]string{"avatar_url": url})
}
