// Package revoke implementa token revocation (RFC 7009).
package revoke

import (
	"context"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
	"github.com/dropDatabas3/authkernel/internal/oauth2/tokenhint"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
)

// Deps contiene las dependencias del servicio.
type Deps struct {
	Hints *tokenhint.Manager
}

// Service revoca tokens en nombre del cliente autenticado.
//
// La operación es idempotente y deliberadamente opaca: revocar un token
// inexistente, ya revocado o ajeno retorna éxito igual, para que el endpoint
// no sirva como oráculo de existencia de tokens.
type Service struct {
	deps Deps
}

// NewService crea el servicio.
func NewService(d Deps) *Service {
	return &Service{deps: d}
}

// Revoke procesa una petición de revocación del cliente c. Solo un fallo de
// infraestructura produce error; todos los demás caminos son éxito silencioso.
func (s *Service) Revoke(ctx context.Context, c *client.Client, tokenValue, hint string) *oauth2.Error {
	if tokenValue == "" {
		return nil
	}
	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("oauth.revoke"))

	for _, h := range s.deps.Hints.Ordered(hint) {
		info, err := h.Find(ctx, tokenValue)
		if err != nil {
			if repository.IsNotFound(err) {
				continue
			}
			log.Error("revocation lookup failed", logger.Err(err))
			return oauth2.ServerError(err)
		}
		// Un cliente solo puede revocar sus propios tokens; un valor ajeno
		// se ignora sin delatar que existe.
		if info.ClientID != c.ID {
			log.Warn("revocation attempt on foreign token",
				logger.ClientID(c.ID.String()),
			)
			return nil
		}
		if err := h.Revoke(ctx, tokenValue); err != nil {
			log.Error("revocation failed", logger.Err(err))
			return oauth2.ServerError(err)
		}
		log.Info("token revoked",
			logger.ClientID(c.ID.String()),
			logger.String("hint", h.Hint()),
		)
		return nil
	}
	return nil
}
