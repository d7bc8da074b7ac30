package grant

import (
	"context"

	"github.com/dropDatabas3/authkernel/internal/oauth2"
)

// Implicit existe solo para la asociación grant/response type: el flujo
// implícito emite en el authorization endpoint, nunca aquí.
type Implicit struct{}

func (Implicit) Name() string { return TypeImplicit }

func (Implicit) AssociatedResponseTypes() []string { return []string{"token", "id_token"} }

func (Implicit) CheckRequest(_ *Request) error { return nil }

func (Implicit) PrepareResponse(_ context.Context, _ *Request, _ *Data) error { return nil }

func (Implicit) Grant(_ context.Context, _ *Request, _ *Data) error {
	return oauth2.InvalidGrant("the implicit grant type must be used through the authorization endpoint")
}
