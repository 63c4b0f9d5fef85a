package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradedesk/internal/domain"
	"tradedesk/internal/repository/memory"
)

func newUser(t *testing.T, store *memory.Store, role, status string) *domain.User {
	t.Helper()
	u := &domain.User{
		ID:        uuid.New(),
		Username:  "user-" + uuid.NewString()[:8],
		Role:      role,
		Status:    status,
		KYCStatus: domain.KYCNone,
		Balance:   decimal.Zero,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u
}

func serve(t *testing.T, store *memory.Store, issuer *TokenIssuer, req *http.Request, mws ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	handler := func(c echo.Context) error {
		user, err := GetUser(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, user.Username)
	}
	e.GET("/", handler, append([]echo.MiddlewareFunc{AuthMiddleware(issuer, store.Users())}, mws...)...)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func bearer(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	return req
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	id := uuid.New()

	token, err := issuer.Generate(id, domain.RoleAdmin)
	require.NoError(t, err)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestTokenIssuer_RejectsExpiredAndForeignTokens(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Hour)
	issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, err := issuer.Generate(uuid.New(), domain.RoleUser)
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(expired)
	assert.Error(t, err)

	other, err := NewTokenIssuer("other-secret", time.Hour).Generate(uuid.New(), domain.RoleUser)
	require.NoError(t, err)
	_, err = issuer.Parse(other)
	assert.Error(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &JWTClaims{UserID: uuid.New()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(unsigned)
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	store := memory.NewStore()
	issuer := NewTokenIssuer("secret", time.Hour)

	active := newUser(t, store, domain.RoleUser, domain.UserStatusActive)
	suspended := newUser(t, store, domain.RoleUser, domain.UserStatusSuspended)
	banned := newUser(t, store, domain.RoleUser, domain.UserStatusBanned)

	token := func(u *domain.User) string {
		tok, err := issuer.Generate(u.ID, u.Role)
		require.NoError(t, err)
		return tok
	}

	t.Run("active user passes", func(t *testing.T) {
		rec := serve(t, store, issuer, bearer(token(active)))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, active.Username, rec.Body.String())
	})

	t.Run("cookie is accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token(active)})
		rec := serve(t, store, issuer, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := serve(t, store, issuer, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(echo.HeaderAuthorization, "Token abc")
		rec := serve(t, store, issuer, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("suspended and banned users are rejected", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, serve(t, store, issuer, bearer(token(suspended))).Code)
		assert.Equal(t, http.StatusForbidden, serve(t, store, issuer, bearer(token(banned))).Code)
	})

	t.Run("deleted account", func(t *testing.T) {
		tok, err := issuer.Generate(uuid.New(), domain.RoleUser)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, serve(t, store, issuer, bearer(tok)).Code)
	})
}

func TestAdminMiddleware_UsesStoredRole(t *testing.T) {
	store := memory.NewStore()
	issuer := NewTokenIssuer("secret", time.Hour)

	user := newUser(t, store, domain.RoleUser, domain.UserStatusActive)
	admin := newUser(t, store, domain.RoleAdmin, domain.UserStatusActive)
	master := newUser(t, store, domain.RoleMaster, domain.UserStatusActive)

	// A token claiming admin does not elevate a plain user
	forged, err := issuer.Generate(user.ID, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(t, store, issuer, bearer(forged), AdminMiddleware).Code)

	for _, u := range []*domain.User{admin, master} {
		tok, err := issuer.Generate(u.ID, u.Role)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, serve(t, store, issuer, bearer(tok), AdminMiddleware).Code, u.Role)
	}
}
