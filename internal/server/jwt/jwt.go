// Package jwt выпускает и проверяет токены доступа устройств.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken возвращается, когда токен не проходит проверку подписи,
// срока или структуры claims.
var ErrInvalidToken = errors.New("invalid token")

// Claims токена доступа устройства.
type Claims struct {
	DeviceID string `json:"device_id"`
	jwt.RegisteredClaims
}

// Service выпускает HS256-токены для аутентификации устройств.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService создает сервис токенов.
// secret должен быть криптографически стойкой случайной строкой.
func NewService(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetNow переопределяет источник времени. Используется в тестах.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// Issue выпускает токен для устройства. Возвращает токен и срок жизни
// в секундах.
func (s *Service) Issue(deviceID string) (string, int64, error) {
	issuedAt := s.now()

	claims := Claims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   deviceID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, int64(s.ttl.Seconds()), nil
}

// Verify проверяет токен и возвращает claims устройства.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.DeviceID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
