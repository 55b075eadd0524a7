package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/eco13rus/checkout-saga/pkg/logger"
)

// RateLimitMiddleware ограничивает частоту запросов к /api/v1/checkout/*
// через Redis fixed window counter (INCR + EXPIRE на окно; per-principal, а не per-IP — несколько
// запросов от одного пользователя через разные IP должны делить один лимит).
type RateLimitMiddleware struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

type RateLimitConfig struct {
	Redis  *redis.Client
	Limit  int
	Window time.Duration
}

func NewRateLimitMiddleware(cfg RateLimitConfig) *RateLimitMiddleware {
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}

	return &RateLimitMiddleware{redis: cfg.Redis, limit: cfg.Limit, window: cfg.Window}
}

// Handle возвращает Gin handler для rate limiting.
func (m *RateLimitMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.FromContext(c.Request.Context())

		key := m.limitKey(c)

		allowed, remaining, err := m.checkLimit(c, key)
		if err != nil {
			// Fail-open: Redis недоступен не должен блокировать checkout.
			log.Warn().Err(err).Msg("ошибка проверки rate limit, запрос пропущен (fail-open)")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", fmt.Sprintf("%d", m.limit))
		c.Header("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
		c.Header("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(m.window).Unix()))

		if !allowed {
			log.Warn().Str("key", key).Int("limit", m.limit).Msg("rate limit превышен")
			c.Header("Retry-After", fmt.Sprintf("%d", int(m.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": fmt.Sprintf("превышен лимит запросов, попробуйте через %d секунд", int(m.window.Seconds())),
			})
			return
		}

		c.Next()
	}
}

// limitKey использует userId принципала, если он уже аутентифицирован
// (AuthMiddleware отрабатывает раньше в цепочке), иначе падает обратно на IP.
func (m *RateLimitMiddleware) limitKey(c *gin.Context) string {
	if principal, ok := PrincipalFromContext(c); ok && principal.UserID != "" {
		return fmt.Sprintf("rate:user:%s", principal.UserID)
	}
	return fmt.Sprintf("rate:ip:%s", c.ClientIP())
}

// checkLimit — атомарный INCR+EXPIRE через Lua скрипт.
func (m *RateLimitMiddleware) checkLimit(c *gin.Context, key string) (bool, int, error) {
	ctx := c.Request.Context()

	script := redis.NewScript(`
		local current = redis.call("INCR", KEYS[1])
		if current == 1 then
			redis.call("EXPIRE", KEYS[1], ARGV[1])
		end
		return current
	`)

	windowSec := int(m.window.Seconds())
	result, err := script.Run(ctx, m.redis, []string{key}, windowSec).Int()
	if err != nil {
		return true, m.limit, err
	}

	remaining := m.limit - result
	if remaining < 0 {
		remaining = 0
	}
	return result <= m.limit, remaining, nil
}
