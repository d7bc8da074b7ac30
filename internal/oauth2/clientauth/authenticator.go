package clientauth

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
)

// Authenticator ejecuta el protocolo de autenticación del token endpoint:
//
//  1. pregunta a cada método registrado si reconoce credenciales en el request;
//  2. más de un método reclama → invalid_request (ambiguo);
//  3. exactamente uno → carga el client, exige que su método registrado
//     coincida, y delega la verificación;
//  4. ninguno → fallback al método "none" solo si el client lo tiene registrado.
//
// Todo rechazo de credenciales es invalid_client 401 con WWW-Authenticate.
type Authenticator struct {
	Methods *Manager
	Clients repository.ClientRepository
}

// Authenticate resuelve y verifica el client del request.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (*client.Client, Method, error) {
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth.clientauth"))

	var (
		claimed   Method
		claimedID types.ClientID
		creds     *Credentials
		claims    int
	)
	for _, m := range a.Methods.All() {
		if id, cr, ok := m.FindClientIDAndCredentials(r); ok {
			claims++
			claimed, claimedID, creds = m, id, cr
		}
	}

	if claims > 1 {
		return nil, nil, oauth2.InvalidRequest("only one authentication method may be used")
	}

	if claims == 0 {
		// Fallback "none": solo para clients registrados sin credenciales.
		id := r.PostFormValue("client_id")
		if id == "" {
			id = r.URL.Query().Get("client_id")
		}
		if id == "" {
			return nil, nil, a.invalidClient("client authentication required")
		}
		c, err := a.loadClient(ctx, types.ClientID(id))
		if err != nil {
			return nil, nil, err
		}
		if c.TokenEndpointAuthMethod() != client.AuthMethodNone {
			log.Warn("credentials missing for confidential client", logger.ClientID(id))
			return nil, nil, a.invalidClient("client authentication failed")
		}
		none, err := a.Methods.Get(client.AuthMethodNone)
		if err != nil {
			return nil, nil, oauth2.ServerError(err)
		}
		return c, none, nil
	}

	c, err := a.loadClient(ctx, claimedID)
	if err != nil {
		return nil, nil, err
	}
	if c.TokenEndpointAuthMethod() != claimed.Name() {
		log.Warn("auth method mismatch",
			logger.ClientID(claimedID.String()),
			logger.String("presented", claimed.Name()),
			logger.String("registered", c.TokenEndpointAuthMethod()),
		)
		return nil, nil, a.invalidClient("client authentication failed")
	}
	if !claimed.IsClientAuthenticated(c, creds, r) {
		log.Warn("credential verification failed", logger.ClientID(claimedID.String()))
		return nil, nil, a.invalidClient("client authentication failed")
	}
	return c, claimed, nil
}

func (a *Authenticator) loadClient(ctx context.Context, id types.ClientID) (*client.Client, error) {
	c, err := a.Clients.Find(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, a.invalidClient("unknown client")
		}
		return nil, oauth2.ServerError(err)
	}
	return c, nil
}

func (a *Authenticator) invalidClient(desc string) *oauth2.Error {
	return oauth2.InvalidClient(desc).WithHeader("WWW-Authenticate", a.Methods.WWWAuthenticate())
}
