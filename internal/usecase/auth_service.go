package usecase

import (
	"github.com/golang-jwt/jwt/v5"

	"bakery-backend/internal/domain"
)

// AuthService verifies bearer tokens issued by the identity service.
// Token issuance lives outside this backend.
type AuthService struct {
	JWTSecret string
}

func (s *AuthService) Verify(token string) (*domain.User, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrForbidden("unexpected signing method")
		}
		return []byte(s.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrForbidden("invalid token")
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrForbidden("invalid token claims")
	}
	uid, _ := claims["user_id"].(string)
	if uid == "" {
		uid, _ = claims["sub"].(string)
	}
	if uid == "" {
		return nil, ErrForbidden("token missing user id")
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return &domain.User{ID: uid, Email: email, Role: role}, nil
}
