package grant

import (
	"context"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
)

// ClientCredentials: M2M (RFC 6749 §4.4). Solo clients confidenciales; el
// client actúa como su propio resource owner (no existe usuario final en este
// flujo, por diseño).
type ClientCredentials struct{}

func (ClientCredentials) Name() string { return TypeClientCredentials }

func (ClientCredentials) AssociatedResponseTypes() []string { return nil }

func (ClientCredentials) CheckRequest(_ *Request) error { return nil }

func (ClientCredentials) PrepareResponse(_ context.Context, _ *Request, _ *Data) error {
	return nil
}

func (ClientCredentials) Grant(ctx context.Context, _ *Request, d *Data) error {
	if d.Client.IsPublic() {
		logger.From(ctx).Warn("client_credentials requires a confidential client",
			logger.Layer("service"),
			logger.ClientID(d.Client.ID.String()),
		)
		return oauth2.InvalidClient("the client_credentials grant requires a confidential client")
	}
	d.ResourceOwnerID = types.ResourceOwnerID(d.Client.ID)
	d.IssueRefreshToken = false
	return nil
}
