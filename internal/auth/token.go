package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/PrasangJhawar/storefront/internal/domain"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const (
	purposeAccess  = "access"
	purposeRefresh = "refresh"
	purposeReset   = "password_reset"
)

type tokenClaims struct {
	Role    string `json:"role,omitempty"`
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Identity is what a validated access token proves about the caller.
type Identity struct {
	UserID uuid.UUID
	Role   domain.UserRole
}

// TokenManager issues and validates the three token kinds: access, refresh
// and password reset. All are HS256 over the same secret; the purpose claim
// keeps them from being swapped for one another.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		resetTTL:   time.Hour,
	}
}

func (tm *TokenManager) CreateAccessToken(userID uuid.UUID, role domain.UserRole) (string, error) {
	return tm.sign(userID.String(), string(role), purposeAccess, tm.accessTTL)
}

func (tm *TokenManager) CreateRefreshToken(userID uuid.UUID, role domain.UserRole) (string, error) {
	return tm.sign(userID.String(), string(role), purposeRefresh, tm.refreshTTL)
}

func (tm *TokenManager) CreateResetToken(email string) (string, error) {
	return tm.sign(email, "", purposeReset, tm.resetTTL)
}

func (tm *TokenManager) sign(subject, role, purpose string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Role:    role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (tm *TokenManager) ParseAccessToken(tokenString string) (*Identity, error) {
	return tm.parseIdentity(tokenString, purposeAccess)
}

func (tm *TokenManager) ParseRefreshToken(tokenString string) (*Identity, error) {
	return tm.parseIdentity(tokenString, purposeRefresh)
}

// ParseResetToken returns the email the reset token was issued for.
func (tm *TokenManager) ParseResetToken(tokenString string) (string, error) {
	claims, err := tm.parse(tokenString, purposeReset)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (tm *TokenManager) parseIdentity(tokenString, purpose string) (*Identity, error) {
	claims, err := tm.parse(tokenString, purpose)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidToken
	}
	role := domain.UserRole(claims.Role)
	if !role.Valid() {
		return nil, ErrInvalidToken
	}

	return &Identity{UserID: userID, Role: role}, nil
}

func (tm *TokenManager) parse(tokenString, purpose string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Purpose != purpose {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
