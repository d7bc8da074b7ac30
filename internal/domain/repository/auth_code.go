package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
)

// AuthorizationCode representa un authorization code pendiente de canje.
// Se guarda por hash, nunca en claro.
type AuthorizationCode struct {
	CodeHash        string
	ClientID        types.ClientID
	ResourceOwnerID types.ResourceOwnerID
	RedirectURI     string
	Scope           []string
	Nonce           string
	CodeChallenge   string
	ChallengeMethod string
	Extra           databag.Bag
	IssuedAt        time.Time
	ExpiresAt       time.Time
}

// AuthorizationCodeRepository define el ciclo de vida de authorization codes.
type AuthorizationCodeRepository interface {
	// Create persiste un code recién emitido.
	Create(ctx context.Context, code *AuthorizationCode) error

	// Consume busca el code por hash y lo elimina en la misma operación
	// (un solo uso). Retorna ErrNotFound si no existe o ya fue consumido.
	Consume(ctx context.Context, codeHash string) (*AuthorizationCode, error)
}
