// Package command implementa el ciclo de vida administrativo de clients:
// creación, actualización, baja y cambio de dueño, con la cadena de reglas
// aplicada antes de cada escritura.
package command

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
	"github.com/dropDatabas3/authkernel/internal/observability/logger"
)

// Deps contiene las dependencias del servicio.
type Deps struct {
	Clients repository.ClientRepository
	Rules   client.RuleChain
	IDs     types.Generator
}

// Service ejecuta los comandos administrativos sobre clients.
type Service struct {
	deps Deps
}

// NewService crea el servicio.
func NewService(d Deps) *Service {
	return &Service{deps: d}
}

// Create registra un client nuevo. Si la metadata trae un client_secret en
// claro, se reemplaza por su hash bcrypt antes de persistir.
func (s *Service) Create(ctx context.Context, metadata databag.Bag, owner types.UserAccountID) (*client.Client, error) {
	c := &client.Client{
		ID:       s.deps.IDs.NewClientID(),
		Metadata: metadata,
		OwnerID:  owner,
	}
	if err := s.deps.Rules.Validate(ctx, c); err != nil {
		return nil, err
	}
	if err := s.hashSecret(c); err != nil {
		return nil, err
	}
	if err := s.deps.Clients.Create(ctx, c); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("client created",
		logger.Component("oauth.client.command"),
		logger.ClientID(c.ID.String()),
	)
	return c, nil
}

// Update reemplaza la metadata de un client existente.
func (s *Service) Update(ctx context.Context, id types.ClientID, metadata databag.Bag) (*client.Client, error) {
	c, err := s.deps.Clients.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	c.Metadata = metadata
	if err := s.deps.Rules.Validate(ctx, c); err != nil {
		return nil, err
	}
	if err := s.hashSecret(c); err != nil {
		return nil, err
	}
	if err := s.deps.Clients.Save(ctx, c); err != nil {
		return nil, err
	}
	logger.From(ctx).Info("client updated",
		logger.Component("oauth.client.command"),
		logger.ClientID(c.ID.String()),
	)
	return c, nil
}

// Delete da de baja un client.
func (s *Service) Delete(ctx context.Context, id types.ClientID) error {
	if err := s.deps.Clients.Delete(ctx, id); err != nil {
		return err
	}
	logger.From(ctx).Info("client deleted",
		logger.Component("oauth.client.command"),
		logger.ClientID(id.String()),
	)
	return nil
}

// ChangeOwner transfiere un client a otro usuario.
func (s *Service) ChangeOwner(ctx context.Context, id types.ClientID, newOwner types.UserAccountID) (*client.Client, error) {
	c, err := s.deps.Clients.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	c.OwnerID = newOwner
	if err := s.deps.Clients.Save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) hashSecret(c *client.Client) error {
	secret := c.Metadata.String(client.KeyClientSecret)
	if secret == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return oauth2.ServerError(err)
	}
	c.Metadata = c.Metadata.
		Without(client.KeyClientSecret).
		With(client.KeyClientSecretHash, string(hash))
	return nil
}
