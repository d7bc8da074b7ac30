package grant

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/scope"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
	tokens "github.com/dropDatabas3/authkernel/internal/security/token"
)

// RefreshToken canjea y rota un refresh token (RFC 6749 §6): el token viejo se
// revoca y el pipeline emite un sucesor ligado al original.
type RefreshToken struct {
	Tokens repository.RefreshTokenRepository
	Now    func() time.Time
}

func (g *RefreshToken) Name() string { return TypeRefreshToken }

func (g *RefreshToken) AssociatedResponseTypes() []string { return nil }

func (g *RefreshToken) CheckRequest(r *Request) error {
	if r.Param("refresh_token") == "" {
		return oauth2.InvalidRequest("refresh_token parameter is missing")
	}
	return nil
}

// PrepareResponse carga el token y valida que el scope solicitado sea subset
// del scope original, antes de cualquier emisión.
func (g *RefreshToken) PrepareResponse(ctx context.Context, r *Request, d *Data) error {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth.grant.refresh"))

	rt, err := g.Tokens.GetByHash(ctx, tokens.SHA256Base64URL(r.Param("refresh_token")))
	if err != nil {
		if repository.IsNotFound(err) {
			log.Warn("refresh token not found")
			return oauth2.InvalidGrant("refresh token is invalid")
		}
		return oauth2.ServerError(err)
	}

	now := g.now()
	if rt.RevokedAt != nil || !now.Before(rt.ExpiresAt) {
		log.Warn("refresh token revoked or expired")
		return oauth2.InvalidGrant("refresh token is revoked or expired")
	}
	if rt.ClientID != d.Client.ID {
		log.Warn("refresh token client mismatch", logger.ClientID(d.Client.ID.String()))
		return oauth2.InvalidGrant("refresh token was issued to another client")
	}

	if requested := strings.Fields(r.Param("scope")); len(requested) > 0 {
		if !scope.IsSubset(requested, rt.Scope) {
			return oauth2.InvalidScope("requested scope exceeds the scope of the refresh token")
		}
	}

	d.RefreshToken = rt
	d.AvailableScope = rt.Scope
	return nil
}

func (g *RefreshToken) Grant(ctx context.Context, r *Request, d *Data) error {
	rt := d.RefreshToken
	if rt == nil {
		return oauth2.ServerError(errMissingPreparedToken)
	}

	// Rotación: el viejo queda revocado pase lo que pase después; un token
	// canjeado nunca debe poder canjearse dos veces.
	if err := g.Tokens.Revoke(ctx, rt.ID); err != nil {
		return oauth2.ServerError(err)
	}

	d.ResourceOwnerID = rt.ResourceOwnerID
	if requested := strings.Fields(r.Param("scope")); len(requested) > 0 {
		d.Scope = requested
	} else {
		d.Scope = rt.Scope
	}
	d.IssueRefreshToken = true
	return nil
}

func (g *RefreshToken) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now().UTC()
}
