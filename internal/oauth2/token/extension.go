package token

import (
	"context"

	"github.com/dropDatabas3/authkernel/internal/domain/repository"
	"github.com/dropDatabas3/authkernel/internal/oauth2/client"
	"github.com/dropDatabas3/authkernel/internal/oauth2/grant"
)

// ExtensionContext es lo que ve cada extensión antes de ensamblar la respuesta:
// el client, el grant data, el token recién emitido y el mapa de respuesta
// (accumulator mutable de dueño único).
type ExtensionContext struct {
	Client      *client.Client
	Data        *grant.Data
	AccessToken *repository.AccessToken
	// TokenValue es el valor que viaja en access_token (para at_hash).
	TokenValue string
	// Response es el body JSON en construcción; las extensiones agregan campos.
	Response map[string]any
}

// Extension es un hook middleware-style del token endpoint: puede inyectar
// campos extra (ej: id_token) antes de llamar next, o cortocircuitar no
// llamándolo.
type Extension func(ctx context.Context, ec *ExtensionContext, next func() error) error

// ExtensionChain es la lista ordenada de extensiones, compuesta explícitamente
// en startup.
type ExtensionChain []Extension

// Run ejecuta la cadena en orden.
func (chain ExtensionChain) Run(ctx context.Context, ec *ExtensionContext) error {
	var exec func(i int) error
	exec = func(i int) error {
		if i >= len(chain) {
			return nil
		}
		return chain[i](ctx, ec, func() error { return exec(i + 1) })
	}
	return exec(0)
}
