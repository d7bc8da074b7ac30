package repository

import (
	"context"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
)

// ClientRepository define operaciones sobre OAuth2 clients. El core solo lee y
// valida; la entidad es propiedad exclusiva del repositorio.
type ClientRepository interface {
	// Find obtiene un client por su client_id público.
	// Retorna ErrNotFound si no existe.
	Find(ctx context.Context, id types.ClientID) (*client.Client, error)

	// Create persiste un client nuevo.
	// Retorna ErrConflict si el client_id ya existe.
	Create(ctx context.Context, c *client.Client) error

	// Save actualiza un client existente.
	Save(ctx context.Context, c *client.Client) error

	// Delete elimina un client.
	Delete(ctx context.Context, id types.ClientID) error
}
