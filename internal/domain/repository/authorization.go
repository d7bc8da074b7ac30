package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
)

// Authorization es una autorización aprobada sin emisión inmediata de tokens
// (response_type=none, patrón pre-configured authorization de OIDC).
type Authorization struct {
	ClientID        types.ClientID
	UserAccountID   types.UserAccountID
	Scope           []string
	QueryParameters databag.Bag
	ApprovedAt      time.Time
}

// AuthorizationStorage persiste autorizaciones diferidas.
type AuthorizationStorage interface {
	Save(ctx context.Context, a *Authorization) error
}
