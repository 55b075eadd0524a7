package middleware

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eco13rus/checkout-saga/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func generateAuthTestKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func signAuthTestToken(t *testing.T, key *rsa.PrivateKey, userID, tenantID, role string) string {
	t.Helper()
	now := time.Now()
	claims := jwt.Claims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "checkout-saga",
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(time.Hour)),
		},
		UserID:   userID,
		TenantID: tenantID,
		Role:     role,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func newAuthTestManager(t *testing.T, key *rsa.PrivateKey) *jwt.Manager {
	t.Helper()

	pubBytes, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes})

	path := filepath.Join(t.TempDir(), "public.pem")
	require.NoError(t, os.WriteFile(path, pemBytes, 0600))

	manager, err := jwt.NewManager(jwt.Config{PublicKeyPath: path, Issuer: "checkout-saga"})
	require.NoError(t, err)
	return manager
}

func runAuthMiddleware(t *testing.T, mw *AuthMiddleware, authHeader string) (*httptest.ResponseRecorder, *gin.Context) {
	t.Helper()
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/complete", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	c.Request = req

	mw.Handle()(c)
	return recorder, c
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	key := generateAuthTestKey(t)
	mw := NewAuthMiddleware(newAuthTestManager(t, key), nil)

	recorder, c := runAuthMiddleware(t, mw, "")

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.True(t, c.IsAborted())
}

func TestAuthMiddleware_ValidToken_SetsPrincipal(t *testing.T) {
	key := generateAuthTestKey(t)
	mw := NewAuthMiddleware(newAuthTestManager(t, key), nil)
	token := signAuthTestToken(t, key, "u1", "t1", "CUSTOMER")

	_, c := runAuthMiddleware(t, mw, "Bearer "+token)

	require.False(t, c.IsAborted())
	principal, ok := PrincipalFromContext(c)
	require.True(t, ok)
	assert.Equal(t, "u1", principal.UserID)
	assert.Equal(t, "t1", principal.TenantID)
	assert.Equal(t, "CUSTOMER", principal.Role)
	assert.Equal(t, token, principal.Token)
}

func TestAuthMiddleware_InvalidSignature(t *testing.T) {
	key := generateAuthTestKey(t)
	otherKey := generateAuthTestKey(t)
	mw := NewAuthMiddleware(newAuthTestManager(t, key), nil)
	token := signAuthTestToken(t, otherKey, "u1", "t1", "CUSTOMER")

	recorder, c := runAuthMiddleware(t, mw, "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.True(t, c.IsAborted())
}

func TestAuthMiddleware_RoleNotAllowed(t *testing.T) {
	key := generateAuthTestKey(t)
	mw := NewAuthMiddleware(newAuthTestManager(t, key), []string{"ADMIN"})
	token := signAuthTestToken(t, key, "u1", "t1", "CUSTOMER")

	recorder, c := runAuthMiddleware(t, mw, "Bearer "+token)

	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.True(t, c.IsAborted())
}

func TestAuthMiddleware_RoleAllowed(t *testing.T) {
	key := generateAuthTestKey(t)
	mw := NewAuthMiddleware(newAuthTestManager(t, key), []string{"ADMIN", "CUSTOMER"})
	token := signAuthTestToken(t, key, "u1", "t1", "CUSTOMER")

	_, c := runAuthMiddleware(t, mw, "Bearer "+token)

	assert.False(t, c.IsAborted())
}
