package repository

import (
	"context"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
)

// ResourceServer representa un resource server autorizado a llamar
// introspection/revocation.
type ResourceServer struct {
	ID         types.ResourceServerID
	Name       string
	SecretHash string // bcrypt del secret compartido
}

// ResourceServerRepository define lookup de resource servers.
type ResourceServerRepository interface {
	// Find busca por ID. Retorna ErrNotFound si no existe.
	Find(ctx context.Context, id types.ResourceServerID) (*ResourceServer, error)
}
