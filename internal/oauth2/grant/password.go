package grant

import (
	"context"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
)

// Password: resource owner password credentials (RFC 6749 §4.3). La
// verificación de credenciales vive en el repositorio; el core nunca ve hashes.
type Password struct {
	Users repository.UserAccountRepository
}

func (g *Password) Name() string { return TypePassword }

func (g *Password) AssociatedResponseTypes() []string { return nil }

func (g *Password) CheckRequest(r *Request) error {
	if r.Param("username") == "" {
		return oauth2.InvalidRequest("username parameter is missing")
	}
	if r.Param("password") == "" {
		return oauth2.InvalidRequest("password parameter is missing")
	}
	return nil
}

func (g *Password) PrepareResponse(_ context.Context, _ *Request, _ *Data) error {
	return nil
}

func (g *Password) Grant(ctx context.Context, r *Request, d *Data) error {
	user, err := g.Users.FindByCredentials(ctx, r.Param("username"), r.Param("password"))
	if err != nil {
		if repository.IsNotFound(err) {
			logger.From(ctx).Warn("resource owner credential verification failed",
				logger.Layer("service"),
				logger.ClientID(d.Client.ID.String()),
			)
			return oauth2.InvalidGrant("invalid resource owner credentials")
		}
		return oauth2.ServerError(err)
	}
	d.ResourceOwnerID = types.ResourceOwnerID(user.ID)
	d.IssueRefreshToken = d.Client.IsGrantTypeAllowed(TypeRefreshToken)
	return nil
}
