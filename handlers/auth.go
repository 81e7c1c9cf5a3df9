package handlers

import (
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/media-gallery/backend/middleware"
	"github.com/media-gallery/backend/models"
	"github.com/media-gallery/backend/service"
	"github.com/media-gallery/backend/store"
	"github.com/media-gallery/backend/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Session tokens are valid for 30 days; expiry is enforced by the claim and
// re-checked in the auth middleware.
const tokenTTL = 30 * 24 * time.Hour

const resetTokenValidity = 10 * time.Minute

type AuthHandler struct {
	Users     UserStore
	Mail      service.Sender
	Log       *zap.Logger
	JWTSecret string
	ClientURL string
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success bool              `json:"success"`
	Token   string            `json:"token"`
	User    models.PublicUser `json:"user"`
}

// validateRegistration checks the registration input before anything is
// persisted. Returns a client-facing message when invalid.
func validateRegistration(req RegisterRequest) string {
	if strings.TrimSpace(req.Name) == "" {
		return "Name is required"
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return "A valid email is required"
	}
	if len(req.Password) < 6 {
		return "Password must be at least 6 characters"
	}
	return ""
}

// Register creates an unverified user and emails a 6-digit OTP. If the
// email cannot be dispatched the new user is rolled back.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := validateRegistration(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	existing, err := h.Users.UserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error in registration")
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error in registration")
		return
	}
	user := &models.User{
		Name:      strings.TrimSpace(req.Name),
		Email:     req.Email,
		Password:  string(hash),
		Role:      models.RoleUser,
		Verified:  false,
		CreatedAt: time.Now().UTC(),
	}
	id, err := h.Users.CreateUser(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error in registration")
		return
	}
	user.ID = id

	if err := h.issueOTP(r, user); err != nil {
		// Best-effort rollback; an orphaned unverified user is acceptable
		// if the delete itself fails.
		if delErr := h.Users.DeleteUser(r.Context(), id); delErr != nil {
			h.Log.Error("rollback of unverified user failed",
				zap.Error(delErr), zap.String("user_id", id.Hex()))
		}
		writeError(w, http.StatusInternalServerError, "Failed to send verification email. Please try again.")
		return
	}

	writeMessage(w, http.StatusCreated, "Registration successful. Please verify your email.")
}

// issueOTP generates, stores and dispatches a verification OTP, superseding
// any prior pending one.
func (h *AuthHandler) issueOTP(r *http.Request, user *models.User) error {
	otp, err := service.GenerateOTP()
	if err != nil {
		return err
	}
	expiresAt := time.Now().Add(service.OTPValidity)
	if err := h.Users.SetOTP(r.Context(), user.ID, otp, expiresAt); err != nil {
		return err
	}
	subject, body := service.OTPMessage(otp)
	if err := h.Mail.Send(user.Email, subject, body); err != nil {
		return err
	}
	h.logEmail(r, user, models.EmailKindVerification)
	return nil
}

func (h *AuthHandler) logEmail(r *http.Request, user *models.User, kind string) {
	err := h.Users.InsertEmailLog(r.Context(), &models.EmailLog{
		UserID:  user.ID,
		ToEmail: user.Email,
		Kind:    kind,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		h.Log.Warn("failed to record email dispatch", zap.Error(err), zap.String("user_id", user.ID.Hex()))
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.Users.UserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error in login")
		return
	}
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !user.Verified {
		writeError(w, http.StatusUnauthorized, "Please verify your email first")
		return
	}
	token, err := h.createToken(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error in login")
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Success: true, Token: token, User: user.Public()})
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP checks a pending verification code and, on match, marks the
// user verified and issues a session token.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.Users.UserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error in OTP verification")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if user.OTP == nil || !service.VerifyOTP(user.OTP.Code, req.OTP, user.OTP.ExpiresAt) {
		writeError(w, http.StatusBadRequest, "Invalid or expired OTP")
		return
	}
	if err := h.Users.MarkVerified(r.Context(), user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "Error in OTP verification")
		return
	}
	token, err := h.createToken(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error in OTP verification")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email verified successfully",
		"token":   token,
	})
}

type EmailRequest struct {
	Email string `json:"email"`
}

// ResendOTP issues a fresh code, invalidating any prior one. Unlike
// Register, a dispatch failure does not delete the user.
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.Users.UserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error in resending OTP")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err := h.issueOTP(r, user); err != nil {
		h.Log.Warn("resend OTP dispatch failed", zap.Error(err), zap.String("email", user.Email))
		writeError(w, http.StatusInternalServerError, "Failed to send verification email. Please try again.")
		return
	}
	writeMessage(w, http.StatusOK, "OTP resent successfully")
}

// ForgotPassword stores the hash of a fresh reset token and emails the raw
// token inside a reset link. A dispatch failure rolls the stored hash back.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	user, err := h.Users.UserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error in forgot password")
		return
	}
	if user == nil {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	raw, hash, err := utils.NewResetToken()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error in forgot password")
		return
	}
	if err := h.Users.SetResetToken(r.Context(), user.ID, hash, time.Now().Add(resetTokenValidity)); err != nil {
		writeError(w, http.StatusInternalServerError, "Error in forgot password")
		return
	}
	subject, body := service.ResetMessage(h.ClientURL, raw)
	if err := h.Mail.Send(user.Email, subject, body); err != nil {
		if clearErr := h.Users.ClearResetToken(r.Context(), user.ID); clearErr != nil {
			h.Log.Error("rollback of reset token failed",
				zap.Error(clearErr), zap.String("user_id", user.ID.Hex()))
		}
		writeError(w, http.StatusInternalServerError, "Failed to send reset email. Please try again.")
		return
	}
	h.logEmail(r, user, models.EmailKindReset)
	writeMessage(w, http.StatusOK, "Password reset email sent")
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetPassword consumes a reset token: the stored hash must match and be
// unexpired. The token is single use; the matching write clears it.
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}
	user, err := h.Users.UserByResetTokenHash(r.Context(), utils.HashToken(req.Token))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error in password reset")
		return
	}
	if user == nil || time.Now().After(user.ResetTokenExpiry) {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error in password reset")
		return
	}
	if err := h.Users.ResetPassword(r.Context(), user.ID, string(hash)); err != nil {
		writeError(w, http.StatusInternalServerError, "Error in password reset")
		return
	}
	writeMessage(w, http.StatusOK, "Password reset successful")
}

// Profile returns the authenticated user's public fields, re-fetched by the
// auth middleware on every request.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "User not authenticated")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"user": user.Public()},
	})
}

// ListUsers returns every account without secrets. Admin only.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error fetching users")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"users": users},
	})
}

// CreateAdmin creates a pre-verified admin account. Admin only.
func (h *AuthHandler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if msg := validateRegistration(req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	existing, err := h.Users.UserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error creating admin user")
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error creating admin user")
		return
	}
	admin := &models.User{
		Name:      strings.TrimSpace(req.Name),
		Email:     req.Email,
		Password:  string(hash),
		Role:      models.RoleAdmin,
		Verified:  true,
		CreatedAt: time.Now().UTC(),
	}
	id, err := h.Users.CreateUser(r.Context(), admin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Error creating admin user")
		return
	}
	admin.ID = id
	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data":    map[string]any{"user": admin.Public()},
	})
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// UpdateUserRole sets a user's role to user or admin. Admin only.
func (h *AuthHandler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	var req UpdateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	valid := false
	for _, role := range models.ValidRoles {
		if req.Role == role {
			valid = true
			break
		}
	}
	if !valid {
		writeError(w, http.StatusBadRequest, "Invalid role")
		return
	}
	if err := h.Users.UpdateUserRole(r.Context(), userID, req.Role); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Error updating user role")
		return
	}
	user, err := h.Users.UserByID(r.Context(), userID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "Error updating user role")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"user": user.Public()},
	})
}

func (h *AuthHandler) createToken(userID primitive.ObjectID) (string, error) {
	return signSessionToken(h.JWTSecret, userID)
}

// signSessionToken issues the session JWT. The only claim of interest is
// the subject id; everything else about the user is re-fetched per request.
func signSessionToken(secret string, userID primitive.ObjectID) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID.Hex(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
