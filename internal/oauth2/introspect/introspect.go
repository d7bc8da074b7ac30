// Package introspect implementa token introspection (RFC 7662).
package introspect

import (
	"context"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/tokenhint"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
)

// Deps contiene las dependencias del servicio.
type Deps struct {
	Hints           *tokenhint.Manager
	ResourceServers repository.ResourceServerRepository
}

// Service responde consultas de introspection de resource servers autenticados.
//
// La respuesta nunca distingue entre token inexistente, expirado o revocado:
// todos producen {"active": false}.
type Service struct {
	deps Deps
}

// NewService crea el servicio.
func NewService(d Deps) *Service {
	return &Service{deps: d}
}

// Authenticate valida las credenciales Basic del resource server que llama.
func (s *Service) Authenticate(ctx context.Context, r *http.Request) (*repository.ResourceServer, *oauth2.Error) {
	id, secret, ok := r.BasicAuth()
	if !ok || id == "" {
		return nil, unauthorized()
	}
	rs, err := s.deps.ResourceServers.Find(ctx, types.ResourceServerID(id))
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, unauthorized()
		}
		return nil, oauth2.ServerError(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(rs.SecretHash), []byte(secret)) != nil {
		return nil, unauthorized()
	}
	return rs, nil
}

// Introspect resuelve el estado de un token. Prueba primero la estrategia del
// hint (si lo hay) y después el resto en orden de registro; el primer match
// gana. Un token desconocido, expirado o revocado produce el body inactivo
// mínimo; un fallo del repositorio es server_error, nunca {"active": false}.
func (s *Service) Introspect(ctx context.Context, tokenValue, hint string) (map[string]any, *oauth2.Error) {
	if tokenValue == "" {
		return inactive(), nil
	}
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth.introspect"))

	for _, h := range s.deps.Hints.Ordered(hint) {
		info, err := h.Find(ctx, tokenValue)
		if err != nil {
			if repository.IsNotFound(err) {
				continue
			}
			log.Error("introspection lookup failed", logger.Err(err))
			return nil, oauth2.ServerError(err)
		}
		if !info.Active {
			return inactive(), nil
		}
		resp := map[string]any{
			"active":     true,
			"client_id":  info.ClientID.String(),
			"token_type": info.TokenType,
			"iat":        info.IssuedAt.Unix(),
			"exp":        info.ExpiresAt.Unix(),
		}
		if info.Scope != "" {
			resp["scope"] = info.Scope
		}
		if info.Subject != "" {
			resp["sub"] = info.Subject
		}
		return resp, nil
	}
	return inactive(), nil
}

func inactive() map[string]any {
	return map[string]any{"active": false}
}

func unauthorized() *oauth2.Error {
	return oauth2.InvalidClient("resource server authentication failed").
		WithHeader("WWW-Authenticate", `Basic realm="introspection"`)
}
