package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/media-gallery/backend/models"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

type fakeLoader struct {
	users map[primitive.ObjectID]*models.User
}

func (f *fakeLoader) UserByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return f.users[id], nil
}

func signToken(t *testing.T, secret string, subject string, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func serveAuth(t *testing.T, users []*models.User, decorate func(*http.Request)) (*httptest.ResponseRecorder, *models.User) {
	t.Helper()
	loader := &fakeLoader{users: map[primitive.ObjectID]*models.User{}}
	for _, u := range users {
		loader.users[u.ID] = u
	}
	var seen *models.User
	handler := Auth(testSecret, loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func verifiedUser() *models.User {
	return &models.User{
		ID:       primitive.NewObjectID(),
		Name:     "Verified",
		Email:    "verified@example.com",
		Role:     models.RoleUser,
		Verified: true,
	}
}

func TestAuth_ValidBearerToken(t *testing.T) {
	user := verifiedUser()
	token := signToken(t, testSecret, user.ID.Hex(), time.Hour)

	rec, seen := serveAuth(t, []*models.User{user}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	require.Equal(t, user.ID, seen.ID)
}

func TestAuth_CookieToken(t *testing.T) {
	user := verifiedUser()
	token := signToken(t, testSecret, user.ID.Hex(), time.Hour)

	rec, seen := serveAuth(t, []*models.User{user}, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, user.ID, seen.ID)
}

func TestAuth_MissingToken(t *testing.T) {
	rec, _ := serveAuth(t, nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

// Rejections carry the same JSON envelope as handler errors.
func TestAuth_RejectionIsJSONEnvelope(t *testing.T) {
	rec, _ := serveAuth(t, nil, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Message)
}

func TestAuth_ExpiredToken(t *testing.T) {
	user := verifiedUser()
	token := signToken(t, testSecret, user.ID.Hex(), -time.Minute)

	rec, _ := serveAuth(t, []*models.User{user}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_WrongSecret(t *testing.T) {
	user := verifiedUser()
	token := signToken(t, "other-secret", user.ID.Hex(), time.Hour)

	rec, _ := serveAuth(t, []*models.User{user}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_UnknownUser(t *testing.T) {
	token := signToken(t, testSecret, primitive.NewObjectID().Hex(), time.Hour)

	rec, _ := serveAuth(t, nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_UnverifiedUserRejected(t *testing.T) {
	user := verifiedUser()
	user.Verified = false
	token := signToken(t, testSecret, user.ID.Hex(), time.Hour)

	rec, _ := serveAuth(t, []*models.User{user}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "verify your email")
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	admin := verifiedUser()
	admin.Role = models.RoleAdmin
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(WithUser(req.Context(), admin))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin", nil)
	req = req.WithContext(WithUser(req.Context(), verifiedUser()))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
