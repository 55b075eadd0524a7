// Package jwt предоставляет верификацию JWT токенов на основе RS256.
// Подпись токенов — забота User Service (issuer), здесь только валидация
// публичным ключом и извлечение Principal для downstream-авторизации.
package jwt

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

// Claims содержит данные JWT токена, необходимые оркестратору для извлечения
// Principal (userId, tenantId, role) перед запуском checkout-саги.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
}

// Manager проверяет подпись RS256 токенов публичным ключом.
// Сервис никогда не подписывает токены сам — подпись проверена уже на
// границе API Gateway; верификация здесь defensive, не замена авторизации.
type Manager struct {
	publicKey *rsa.PublicKey
	issuer    string
}

// Config содержит параметры для создания Manager.
type Config struct {
	PublicKeyPath string
	Issuer        string
}

// NewManager создаёт менеджер верификации JWT токенов.
func NewManager(cfg Config) (*Manager, error) {
	publicKey, err := LoadPublicKey(cfg.PublicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки публичного ключа: %w", err)
	}

	return &Manager{publicKey: publicKey, issuer: cfg.Issuer}, nil
}

// ValidateToken проверяет подпись и срок действия токена, возвращает claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("неожиданный алгоритм подписи: %v", token.Header["alg"])
		}
		return m.publicKey, nil
	}, jwt.WithIssuer(m.issuer))

	if err != nil {
		return nil, fmt.Errorf("ошибка валидации токена: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("невалидные claims токена")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("токен не содержит user_id")
	}

	return claims, nil
}

// LoadPublicKey загружает RSA публичный ключ из PEM файла.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла %s: %w", path, err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("не удалось декодировать PEM блок из %s", path)
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return x509.ParsePKCS1PublicKey(block.Bytes)
	}

	rsaKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("ключ не является RSA публичным ключом")
	}

	return rsaKey, nil
}
