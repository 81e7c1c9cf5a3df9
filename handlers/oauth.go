package handlers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const oauthStateCookie = "oauth_state"

// GoogleHandler runs the Google OAuth login flow. This is a user-facing
// redirect flow: failures send the browser back to the frontend with an
// error flag, never a JSON error.
type GoogleHandler struct {
	Users        UserStore
	Log          *zap.Logger
	JWTSecret    string
	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g. "https://api.example.com/auth/google/callback"
	ClientURL    string // frontend origin for the final redirect
}

func (h *GoogleHandler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *GoogleHandler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

// Login redirects the browser to Google's consent screen. The CSRF state
// is kept in a short-lived cookie.
func (h *GoogleHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		h.redirectWithError(w, r)
		return
	}
	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		h.redirectWithError(w, r)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.oauth2Config().AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// Callback exchanges the authorization code, fetches the Google profile,
// upserts the account by email and redirects to the frontend with a
// session token in the query string.
func (h *GoogleHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error", zap.String("error", errParam))
		h.redirectWithError(w, r)
		return
	}

	state := r.URL.Query().Get("state")
	cookie, err := r.Cookie(oauthStateCookie)
	if state == "" || err != nil || cookie.Value != state {
		h.Log.Warn("invalid or missing OAuth state")
		h.redirectWithError(w, r)
		return
	}
	// State is single use.
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		h.redirectWithError(w, r)
		return
	}
	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		h.redirectWithError(w, r)
		return
	}

	profile, err := fetchGoogleUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		h.redirectWithError(w, r)
		return
	}

	// OAuth-only accounts get a random unusable password placeholder.
	placeholder, err := randomPassword()
	if err != nil {
		h.Log.Error("failed to generate password placeholder", zap.Error(err))
		h.redirectWithError(w, r)
		return
	}
	user, created, err := h.Users.UpsertOAuthUser(ctx, profile.Name, profile.Email, profile.ID, profile.Picture, placeholder)
	if err != nil {
		h.Log.Error("failed to upsert OAuth user", zap.Error(err))
		h.redirectWithError(w, r)
		return
	}

	sessionToken, err := signSessionToken(h.JWTSecret, user.ID)
	if err != nil {
		h.Log.Error("failed to sign session token", zap.Error(err))
		h.redirectWithError(w, r)
		return
	}

	h.Log.Info("user logged in via Google OAuth",
		zap.String("user_id", user.ID.Hex()),
		zap.Bool("created", created))

	http.Redirect(w, r, fmt.Sprintf("%s/auth/callback?token=%s", h.ClientURL, sessionToken), http.StatusSeeOther)
}

func (h *GoogleHandler) redirectWithError(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, h.ClientURL+"/auth/callback?error=true", http.StatusSeeOther)
}

// googleUserInfo represents user info returned from Google.
type googleUserInfo struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

// fetchGoogleUserInfo retrieves user information from Google's userinfo endpoint.
func fetchGoogleUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	resp, err := client.Get("https://www.googleapis.com/oauth2/v2/userinfo")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode user info: %w", err)
	}
	return &info, nil
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// randomPassword returns a bcrypt hash of random bytes, stored on
// OAuth-only accounts so password login can never succeed against it.
func randomPassword() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(b)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
