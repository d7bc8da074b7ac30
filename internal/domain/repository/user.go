package repository

import (
	"context"

	"github.com/dropDatabas3/authkernel/internal/domain/types"
	"github.com/dropDatabas3/authkernel/internal/oauth2/databag"
)

// UserAccount representa una cuenta de usuario final.
type UserAccount struct {
	ID       types.UserAccountID
	Username string
	Claims   databag.Bag // claims OIDC (name, email, ...) para id_token/userinfo
}

// UserAccountRepository define operaciones sobre cuentas de usuario.
type UserAccountRepository interface {
	// Find busca por ID. Retorna ErrNotFound si no existe.
	Find(ctx context.Context, id types.UserAccountID) (*UserAccount, error)

	// FindByCredentials valida username+password y retorna la cuenta.
	// Retorna ErrNotFound tanto para usuario inexistente como para password
	// incorrecto (el core no distingue, por diseño del grant password).
	FindByCredentials(ctx context.Context, username, password string) (*UserAccount, error)
}
