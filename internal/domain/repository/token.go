package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
)

// AccessToken representa un access token emitido. Nunca se muta tras creación,
// salvo por revocación explícita (registrada por el repositorio).
type AccessToken struct {
	ID               types.AccessTokenID
	ClientID         types.ClientID
	ResourceOwnerID  types.ResourceOwnerID
	ResourceServerID types.ResourceServerID
	Parameters       databag.Bag // scope, token_type, etc.
	Metadata         databag.Bag // datos contribuidos por extensiones
	IssuedAt         time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
}

// HasExpired es función pura de now vs expiry.
func (t *AccessToken) HasExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Scope retorna el scope emitido (space-delimited en Parameters).
func (t *AccessToken) Scope() string {
	return t.Parameters.String("scope")
}

// AccessTokenRepository define operaciones sobre access tokens.
type AccessTokenRepository interface {
	// Find busca un token por ID. Retorna ErrNotFound si no existe.
	Find(ctx context.Context, id types.AccessTokenID) (*AccessToken, error)

	// Create persiste un token recién emitido.
	Create(ctx context.Context, t *AccessToken) error

	// Save actualiza un token existente (ej: marca de revocación).
	Save(ctx context.Context, t *AccessToken) error

	// Revoke marca el token como revocado. Idempotente: revocar un token ya
	// revocado o inexistente no es error.
	Revoke(ctx context.Context, id types.AccessTokenID) error
}

// RefreshToken representa un token de refresco (opaco, guardado por hash).
type RefreshToken struct {
	ID              string
	ClientID        types.ClientID
	ResourceOwnerID types.ResourceOwnerID
	TokenHash       string
	Scope           []string
	IssuedAt        time.Time
	ExpiresAt       time.Time
	RotatedFrom     *string
	RevokedAt       *time.Time
}

// CreateRefreshTokenInput contiene los datos para crear un refresh token.
type CreateRefreshTokenInput struct {
	ClientID        types.ClientID
	ResourceOwnerID types.ResourceOwnerID
	TokenHash       string
	Scope           []string
	TTL             time.Duration
	RotatedFrom     *string
}

// RefreshTokenRepository define operaciones sobre refresh tokens.
type RefreshTokenRepository interface {
	// Create crea un refresh token y retorna su ID.
	Create(ctx context.Context, input CreateRefreshTokenInput) (string, error)

	// GetByHash busca por hash. Retorna ErrNotFound si no existe.
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// Revoke revoca por ID. Idempotente.
	Revoke(ctx context.Context, tokenID string) error
}
