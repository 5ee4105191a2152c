package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, secret []byte, subject, role string, expiry time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
		},
	})
	raw, err := token.SignedString(secret)
	require.NoError(t, err)
	return raw
}

func invoke(t *testing.T, mw echo.MiddlewareFunc, decorate func(*http.Request)) (*httptest.ResponseRecorder, echo.Context, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if decorate != nil {
		decorate(req)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return rec, c, handler(c)
}

func TestRequireAuth(t *testing.T) {
	auth := NewAuth(testSecret)
	subject := uuid.NewString()

	t.Run("bearer token", func(t *testing.T) {
		token := signToken(t, testSecret, subject, "customer", time.Hour)
		_, c, err := invoke(t, auth.RequireAuth, func(r *http.Request) {
			r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		})
		require.NoError(t, err)
		assert.Equal(t, subject, c.Get("user_id"))
		assert.Equal(t, "customer", c.Get("role"))
	})

	t.Run("cookie token", func(t *testing.T) {
		token := signToken(t, testSecret, subject, "customer", time.Hour)
		_, c, err := invoke(t, auth.RequireAuth, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "accessToken", Value: token})
		})
		require.NoError(t, err)
		assert.Equal(t, subject, c.Get("user_id"))
	})

	rejections := []struct {
		name     string
		decorate func(*http.Request)
	}{
		{name: "no token", decorate: nil},
		{
			name: "wrong secret",
			decorate: func(r *http.Request) {
				r.Header.Set(echo.HeaderAuthorization,
					"Bearer "+signToken(t, []byte("other"), subject, "customer", time.Hour))
			},
		},
		{
			name: "expired",
			decorate: func(r *http.Request) {
				r.Header.Set(echo.HeaderAuthorization,
					"Bearer "+signToken(t, testSecret, subject, "customer", -time.Hour))
			},
		},
		{
			name: "empty subject",
			decorate: func(r *http.Request) {
				r.Header.Set(echo.HeaderAuthorization,
					"Bearer "+signToken(t, testSecret, "", "customer", time.Hour))
			},
		},
		{
			name: "garbage token",
			decorate: func(r *http.Request) {
				r.Header.Set(echo.HeaderAuthorization, "Bearer not.a.jwt")
			},
		},
	}

	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := invoke(t, auth.RequireAuth, tt.decorate)
			var httpErr *echo.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
		})
	}
}

func TestRequireAuth_RejectsUnexpectedAlg(t *testing.T) {
	auth := NewAuth(testSecret)

	// alg=none must never pass, whatever the claims say.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, _, err = invoke(t, auth.RequireAuth, func(r *http.Request) {
		r.Header.Set(echo.HeaderAuthorization, "Bearer "+raw)
	})
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestRequireAdmin(t *testing.T) {
	auth := NewAuth(testSecret)

	t.Run("admin passes", func(t *testing.T) {
		token := signToken(t, testSecret, uuid.NewString(), "admin", time.Hour)
		_, _, err := invoke(t, auth.RequireAdmin, func(r *http.Request) {
			r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		})
		require.NoError(t, err)
	})

	t.Run("customer forbidden", func(t *testing.T) {
		token := signToken(t, testSecret, uuid.NewString(), "customer", time.Hour)
		_, _, err := invoke(t, auth.RequireAdmin, func(r *http.Request) {
			r.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		})
		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})
}
