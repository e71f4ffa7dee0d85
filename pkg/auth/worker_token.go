package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/flashflow/flashflow/pkg/model"
)

var ErrInvalidToken = errors.New("invalid token")

// WorkerClaims identify who is acting on the pipeline and in what capacity.
// The API middleware trusts these claims after signature verification; the
// engine re-checks leases and roles on every operation regardless.
type WorkerClaims struct {
	jwt.RegisteredClaims
	ActorID string `json:"actor_id"`
	Role    string `json:"role"`
	Admin   bool   `json:"admin"`
}

type WorkerTokenManager struct {
	signingKey []byte
	ttl        time.Duration
}

func NewWorkerTokenManager(signingKey []byte, ttl time.Duration) *WorkerTokenManager {
	return &WorkerTokenManager{signingKey: signingKey, ttl: ttl}
}

func (m *WorkerTokenManager) Generate(actorID string, role model.Role, admin bool) (string, error) {
	claims := WorkerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   actorID,
			Issuer:    "flashflow",
		},
		ActorID: actorID,
		Role:    string(role),
		Admin:   admin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.signingKey)
}

func (m *WorkerTokenManager) Validate(tokenString string) (*WorkerClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &WorkerClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.signingKey, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*WorkerClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
