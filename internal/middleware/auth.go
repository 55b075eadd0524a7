// Package middleware содержит HTTP middleware оркестратора: аутентификацию,
// трассировку, rate limiting, CORS и заголовки безопасности.
package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/eco13rus/checkout-saga/internal/domain"
	"github.com/eco13rus/checkout-saga/internal/httputil"
	"github.com/eco13rus/checkout-saga/pkg/jwt"
	"github.com/eco13rus/checkout-saga/pkg/logger"
)

const principalContextKey = "principal"

// AuthMiddleware проверяет bearer-токен через pkg/jwt.Manager напрямую
// (верификация подписи — не ответственность этого сервиса вне этой
// границы, но в отличие от источника здесь нет gRPC похода к User Service:
// оркестратор сам верифицирует RS256 подпись публичным ключом издателя).
type AuthMiddleware struct {
	manager      *jwt.Manager
	allowedRoles []string
}

func NewAuthMiddleware(manager *jwt.Manager, allowedRoles []string) *AuthMiddleware {
	return &AuthMiddleware{manager: manager, allowedRoles: allowedRoles}
}

// Handle возвращает Gin handler, кладущий domain.Principal (с самим
// bearer-токеном) в контекст запроса. Принципал запрос-scoped — никогда не
// кешируется в поле middleware (design notes §9: "global token cache is a bug").
func (m *AuthMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		log := logger.FromContext(ctx)

		token := httputil.ExtractBearerToken(c)
		if token == "" {
			log.Debug().Msg("отсутствует bearer-токен")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "требуется авторизация",
			})
			return
		}

		claims, err := m.manager.ValidateToken(token)
		if err != nil {
			log.Warn().Err(err).Msg("невалидный bearer-токен")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "невалидный токен",
			})
			return
		}

		if len(m.allowedRoles) > 0 && !slices.Contains(m.allowedRoles, claims.Role) {
			log.Debug().Str("role", claims.Role).Msg("роль не допущена к этой операции")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "роль не допущена к этой операции",
			})
			return
		}

		principal := domain.Principal{
			UserID:   claims.UserID,
			TenantID: claims.TenantID,
			Role:     claims.Role,
			Token:    token,
		}
		c.Set(principalContextKey, principal)
		c.Request = c.Request.WithContext(logger.WithPrincipal(ctx, principal.UserID, principal.TenantID))

		log.Debug().Str("user_id", principal.UserID).Str("tenant_id", principal.TenantID).Msg("принципал аутентифицирован")

		c.Next()
	}
}

// PrincipalFromContext извлекает Principal, установленный AuthMiddleware.
func PrincipalFromContext(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := v.(domain.Principal)
	return principal, ok
}
